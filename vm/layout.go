package vm

// address windows
const (
	RAMLowStart = 0x0000 /* zero page, stack, general RAM */
	RAMLowEnd   = 0x0FFF
	RAMLowSize  = RAMLowEnd - RAMLowStart + 1

	RAMHighStart = 0xE000
	RAMHighEnd   = 0xEFFF
	RAMHighSize  = RAMHighEnd - RAMHighStart + 1

	ROMStart = 0xFF00
	ROMEnd   = 0xFFFF
	ROMSize  = ROMEnd - ROMStart + 1

	RAMBankSize = RAMLowSize + RAMHighSize
)

// memory mapped register addresses
const (
	KBD   = 0xD010 /* keyboard data register */
	KBDCR = 0xD011 /* keyboard control register */
	DSP   = 0xD012 /* display data register */
	DSPCR = 0xD013 /* display control register */
)

// register offsets inside a 2-byte peripheral window
const (
	dataRegister    = 0x0
	controlRegister = 0x1
)

const (
	ResetVector = 0xFFFC

	// BASICOffset is where a second image lands in the RAM bank. It is the
	// first byte of the high window, so the image appears at 0xE000.
	BASICOffset = RAMLowSize
)
