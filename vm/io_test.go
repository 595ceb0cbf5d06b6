package vm

import (
	"bytes"
	"context"
	goIO "io"
	"log"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestIO() *io {
	h := newIO(log.New(goIO.Discard, "", 0))
	h.stdoutWriter = &bytes.Buffer{}
	return h
}

func TestTranslateKey(t *testing.T) {
	cases := []struct {
		in   byte
		want byte
		ok   bool
	}{
		{'a', 0xC1, true},
		{'Z', 0xDA, true},
		{'0', 0xB0, true},
		{'\n', 0x8D, true},
		{'\r', 0x8D, true},
		{0x7F, 0xDF, true},
		{0x08, 0xDF, true},
		{0x1B, 0x9B, true},
		{0x01, 0, false},
		{0xE9, 0, false},
	}
	for _, c := range cases {
		got, ok := TranslateKey(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("TranslateKey(0x%02X) = 0x%02X,%v expected 0x%02X,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestProcessKeyboardWaitsForStrobe(t *testing.T) {
	h := newTestIO()
	kbd := NewKeyboard()
	kbd.WriteControl(0xA7)

	h.keyBuffer <- 0xC1
	h.processKeyboard(kbd)
	if !kbd.Pending() || kbd.ReadData() != 0xC1 {
		t.Fatal("buffered key was not pressed")
	}

	h.keyBuffer <- 0xC2
	h.processKeyboard(kbd)
	if kbd.ReadData() != 0xC1 {
		t.Fatal("second key pressed before the first strobe was consumed")
	}

	kbd.ReadControl()
	h.processKeyboard(kbd)
	if kbd.ReadData() != 0xC2 {
		t.Fatalf("data = 0x%02X, expected 0xC2", kbd.ReadData())
	}
}

func TestPollKeyboard(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	h := newTestIO()
	h.stdin = r
	done := make(chan error, 1)
	go func() { done <- h.pollKeyboard(context.Background()) }()

	w.Write([]byte("a\x01\n"))
	w.Close()

	for _, want := range []byte{0xC1, 0x8D} {
		select {
		case got := <-h.keyBuffer:
			if got != want {
				t.Fatalf("key 0x%02X, expected 0x%02X", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for 0x%02X", want)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("poller: %v", err)
	}
}

func TestRenderDrawsFrame(t *testing.T) {
	h := newTestIO()
	out := h.stdoutWriter.(*bytes.Buffer)
	scr := NewScreen()
	scr.OnRefresh(h.notify)
	for _, c := range []byte("HELLO") {
		scr.Write(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*renderInterval)
	defer cancel()
	if err := h.render(ctx, scr); err != nil {
		t.Fatalf("render: %v", err)
	}

	s := out.String()
	if !strings.HasPrefix(s, "\x1b[H") || !strings.Contains(s, "HELLO\x1b[K\r\n") {
		t.Fatalf("unexpected output %q", s)
	}
	if !strings.HasSuffix(s, "\x1b[1;6H") {
		t.Fatalf("cursor not placed after HELLO: %q", s)
	}
}
