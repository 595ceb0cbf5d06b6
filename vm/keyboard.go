package vm

import "sync"

const (
	strobeBit = 0x80

	// keyReady is what the control register reads as while a key is waiting.
	keyReady = 0xA7
)

// Keyboard emulates the keyboard side of the PIA: a data register and a
// control register whose high bit is a one-shot "key ready" strobe.
type Keyboard struct {
	mu            sync.Mutex
	data          byte
	control       byte
	interruptMode bool
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

func (k *Keyboard) WriteData(b byte) {
	k.mu.Lock()
	k.data = b
	k.mu.Unlock()
}

func (k *Keyboard) ReadData() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data
}

// WriteControl stores b, except for the first write with bit 7 set, which
// only switches interrupt mode on.
func (k *Keyboard) WriteControl(b byte) {
	k.mu.Lock()
	k.writeControlLocked(b)
	k.mu.Unlock()
}

func (k *Keyboard) writeControlLocked(b byte) {
	if !k.interruptMode && b&strobeBit != 0 {
		k.interruptMode = true
		return
	}
	k.control = b
}

// ReadControl consumes a pending strobe: it returns 0xA7 once and clears the
// register.
func (k *Keyboard) ReadControl() byte {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.interruptMode && k.control&strobeBit != 0 {
		k.control = 0
		return keyReady
	}
	return k.control
}

// Press latches b and raises the strobe in one step, overwriting a key that
// has not been read yet. Tests use it to stand in for a typist; key sources
// that share the keyboard use TryPress.
func (k *Keyboard) Press(b byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data = b
	k.writeControlLocked(strobeBit | k.control)
}

// TryPress presses b unless a strobe is still waiting to be read, in which
// case it leaves the registers alone and returns false. Sources that share
// the keyboard use it so one key never overwrites another.
func (k *Keyboard) TryPress(b byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.control&strobeBit != 0 {
		return false
	}
	k.data = b
	k.writeControlLocked(strobeBit | k.control)
	return true
}

// Pending reports whether a strobe has been raised and not yet read. It is a
// test hook: acting on it races with other sources, so callers press with
// TryPress instead.
func (k *Keyboard) Pending() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.control&strobeBit != 0
}

// InterruptMode reports whether firmware has enabled the strobe. Only tests
// read it.
func (k *Keyboard) InterruptMode() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.interruptMode
}

// keyboardPort exposes the keyboard to the bus.
type keyboardPort struct {
	k *Keyboard
}

func (p keyboardPort) Len() int { return 2 }

func (p keyboardPort) Read(offset uint16) (byte, error) {
	if offset == dataRegister {
		return p.k.ReadData(), nil
	}
	return p.k.ReadControl(), nil
}

func (p keyboardPort) Write(offset uint16, value byte) error {
	if offset == dataRegister {
		p.k.WriteData(value)
	} else {
		p.k.WriteControl(value)
	}
	return nil
}
