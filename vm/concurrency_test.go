package vm

import (
	"sync"
	"testing"
	"time"
)

// Keyboard and screen traffic through the bus from two goroutines must not
// disturb each other.
func TestPeripheralsAreIndependent(t *testing.T) {
	kbd := NewKeyboard()
	scr := NewScreen()
	as := NewAddressSpace(kbd, scr)
	if err := as.mapStandard(); err != nil {
		t.Fatalf("mapStandard: %v", err)
	}

	const rounds = 5000
	var wg sync.WaitGroup
	errs := make(chan string, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			v := byte(i)
			if err := as.Write(KBD, v); err != nil {
				errs <- err.Error()
				return
			}
			if got, _ := as.Read(KBD); got != v {
				errs <- "keyboard data changed under the keyboard goroutine"
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			x, y := i%Columns, (i/Columns)%(Lines-1)
			scr.SetCursor(x, y)
			if err := as.Write(DSP, 'A'+byte(i%26)); err != nil {
				errs <- err.Error()
				return
			}
			if got := scr.Snapshot().Grid[y][x]; got != 'A'+byte(i%26) {
				errs <- "screen cell changed under the screen goroutine"
				return
			}
		}
	}()
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Fatal(e)
	}
	if kbd.InterruptMode() || kbd.Pending() {
		t.Fatal("screen traffic touched the keyboard control state")
	}
	if f := scr.Snapshot(); f.OutputEnabled || f.Control != 0 {
		t.Fatal("keyboard traffic touched the screen control state")
	}
}

func TestKeyboardDoesNotWaitForScreen(t *testing.T) {
	kbd := NewKeyboard()
	scr := NewScreen()
	as := NewAddressSpace(kbd, scr)
	if err := as.mapStandard(); err != nil {
		t.Fatalf("mapStandard: %v", err)
	}

	scr.mu.Lock()
	defer scr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		as.Write(KBDCR, 0xA7)
		kbd.Press(0xC1)
		as.Read(KBDCR)
		as.Read(KBD)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keyboard access blocked while the screen was locked")
	}
}
