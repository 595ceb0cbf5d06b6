package vm

import "fmt"

// Bank is a fixed-capacity byte store backing one or more address windows.
type Bank struct {
	name string
	data []byte
}

func newBank(name string, size int) *Bank {
	return &Bank{name: name, data: make([]byte, size)}
}

func (b *Bank) Len() int {
	return len(b.data)
}

// Load copies image into the bank starting at offset. It is meant for
// initialization only; the bus never calls it.
func (b *Bank) Load(offset int, image []byte) error {
	if offset < 0 || offset+len(image) > len(b.data) {
		return fmt.Errorf("load %d bytes at %s+0x%04X (capacity %d): %w",
			len(image), b.name, offset, len(b.data), ErrImageTooLarge)
	}
	copy(b.data[offset:], image)
	return nil
}

// Peek reads a byte without going through the bus.
func (b *Bank) Peek(offset int) byte {
	return b.data[offset]
}

// ramWindow maps a region onto a slice of a shared bank. Two windows share
// the RAM bank, the high one displaced by the size of the low one.
type ramWindow struct {
	bank *Bank
	base int
	size int
}

// newRAMWindow refuses a window that does not fit inside bank.
func newRAMWindow(bank *Bank, base, size int) (*ramWindow, error) {
	if base < 0 || size < 0 || base+size > bank.Len() {
		return nil, fmt.Errorf("%s window at %d+%d: %w", bank.name, base, size, ErrInvalidRegion)
	}
	return &ramWindow{bank: bank, base: base, size: size}, nil
}

func (w *ramWindow) Len() int {
	return w.size
}

func (w *ramWindow) Read(offset uint16) (byte, error) {
	return w.bank.data[w.base+int(offset)], nil
}

func (w *ramWindow) Write(offset uint16, value byte) error {
	w.bank.data[w.base+int(offset)] = value
	return nil
}

type romWindow struct {
	bank *Bank
}

func (w *romWindow) Len() int {
	return w.bank.Len()
}

func (w *romWindow) Read(offset uint16) (byte, error) {
	return w.bank.data[offset], nil
}

func (w *romWindow) Write(offset uint16, value byte) error {
	return fmt.Errorf("0x%02X to %s+0x%02X: %w", value, w.bank.name, offset, ErrReadOnlyViolation)
}
