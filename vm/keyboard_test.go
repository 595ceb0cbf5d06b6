package vm

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestKeyboardStrobeSequence(t *testing.T) {
	kbd := NewKeyboard()

	kbd.WriteControl(0x90)
	if !kbd.InterruptMode() {
		t.Fatal("first write with bit 7 set should enable interrupt mode")
	}
	if got := kbd.ReadControl(); got != 0 {
		t.Fatalf("control after mode switch = 0x%02X, expected 0", got)
	}

	kbd.WriteControl(0x90)
	if got := kbd.ReadControl(); got != keyReady {
		t.Fatalf("strobe read = 0x%02X, expected 0x%02X", got, keyReady)
	}
	if got := kbd.ReadControl(); got != 0 {
		t.Fatalf("second read = 0x%02X, strobe must be consumed once", got)
	}
}

func TestKeyboardControlWithoutInterruptMode(t *testing.T) {
	kbd := NewKeyboard()

	kbd.WriteControl(0x27)
	if kbd.InterruptMode() {
		t.Fatal("bit 7 clear must not enable interrupt mode")
	}
	for i := 0; i < 2; i++ {
		if got := kbd.ReadControl(); got != 0x27 {
			t.Fatalf("read %d = 0x%02X, expected stored 0x27", i, got)
		}
	}
}

func TestKeyboardDataIsNotDestructive(t *testing.T) {
	kbd := NewKeyboard()
	kbd.WriteControl(0xA7)

	kbd.WriteData(0xC1)
	if kbd.Pending() {
		t.Fatal("data write alone must not raise the strobe")
	}
	for i := 0; i < 3; i++ {
		if got := kbd.ReadData(); got != 0xC1 {
			t.Fatalf("read %d = 0x%02X, expected 0xC1", i, got)
		}
	}
	if got := kbd.ReadControl(); got != 0 {
		t.Fatalf("control = 0x%02X, expected 0", got)
	}
}

func TestKeyboardPress(t *testing.T) {
	kbd := NewKeyboard()

	// before the firmware enables interrupt mode the strobe is swallowed
	kbd.Press(0xC1)
	if kbd.Pending() {
		t.Fatal("press before interrupt mode should not leave a strobe")
	}
	if !kbd.InterruptMode() {
		t.Fatal("press should have enabled interrupt mode")
	}

	kbd.Press(0xC2)
	if !kbd.Pending() {
		t.Fatal("expected a pending strobe")
	}
	if got := kbd.ReadControl(); got != keyReady {
		t.Fatalf("control = 0x%02X, expected 0x%02X", got, keyReady)
	}
	if kbd.Pending() {
		t.Fatal("strobe still pending after read")
	}
	if got := kbd.ReadData(); got != 0xC2 {
		t.Fatalf("data = 0x%02X, expected 0xC2", got)
	}
}

func TestKeyboardPort(t *testing.T) {
	kbd := NewKeyboard()
	port := keyboardPort{kbd}

	port.Write(controlRegister, 0xA7)
	port.Write(dataRegister, 0xC8)
	port.Write(controlRegister, 0x80)

	if got, _ := port.Read(controlRegister); got != keyReady {
		t.Fatalf("control = 0x%02X, expected 0x%02X", got, keyReady)
	}
	if got, _ := port.Read(dataRegister); got != 0xC8 {
		t.Fatalf("data = 0x%02X, expected 0xC8", got)
	}
}

func TestKeyboardTryPress(t *testing.T) {
	kbd := NewKeyboard()
	kbd.WriteControl(0xA7)

	if !kbd.TryPress(0xC1) {
		t.Fatal("TryPress refused an idle keyboard")
	}
	if kbd.TryPress(0xC2) {
		t.Fatal("TryPress accepted a key over a pending strobe")
	}
	if got := kbd.ReadData(); got != 0xC1 {
		t.Fatalf("data = 0x%02X, expected 0xC1", got)
	}
	kbd.ReadControl()
	if !kbd.TryPress(0xC2) {
		t.Fatal("TryPress refused after the strobe was consumed")
	}
	if got := kbd.ReadData(); got != 0xC2 {
		t.Fatalf("data = 0x%02X, expected 0xC2", got)
	}
}

// Two sources pressing at once must not lose keys.
func TestKeyboardTryPressConcurrentSources(t *testing.T) {
	kbd := NewKeyboard()
	kbd.WriteControl(0xA7)

	const perSource = 2000
	var wg sync.WaitGroup
	for _, key := range []byte{0xC1, 0xC2} {
		wg.Add(1)
		go func(key byte) {
			defer wg.Done()
			for i := 0; i < perSource; i++ {
				for !kbd.TryPress(key) {
					runtime.Gosched()
				}
			}
		}(key)
	}

	counts := map[byte]int{}
	deadline := time.Now().Add(10 * time.Second)
	for counts[0xC1]+counts[0xC2] < 2*perSource {
		if time.Now().After(deadline) {
			t.Fatalf("only %d keys received", counts[0xC1]+counts[0xC2])
		}
		if !kbd.Pending() {
			runtime.Gosched()
			continue
		}
		counts[kbd.ReadData()]++
		kbd.ReadControl()
	}
	wg.Wait()

	if counts[0xC1] != perSource || counts[0xC2] != perSource {
		t.Fatalf("received %v, expected %d of each key", counts, perSource)
	}
}
