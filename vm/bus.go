package vm

import "fmt"

// Handler serves the accesses of one region. Offsets are region-local and
// always below Len.
type Handler interface {
	Read(offset uint16) (byte, error)
	Write(offset uint16, value byte) error
	Len() int
}

// MemoryRegion binds the inclusive range [Start, End] to a handler.
type MemoryRegion struct {
	Name    string
	Start   uint16
	End     uint16
	Handler Handler
}

func (r MemoryRegion) contains(addr uint16) bool {
	return r.Start <= addr && addr <= r.End
}

func (r MemoryRegion) overlaps(o MemoryRegion) bool {
	return r.Start <= o.End && o.Start <= r.End
}

func (r MemoryRegion) String() string {
	return fmt.Sprintf("$%04X-$%04X %s", r.Start, r.End, r.Name)
}

// AddressSpace is the CPU-facing bus. Regions never overlap, so the first
// match during lookup is the only one.
type AddressSpace struct {
	regions []MemoryRegion

	ram      *Bank
	rom      *Bank
	keyboard *Keyboard
	screen   *Screen
}

func NewAddressSpace(kbd *Keyboard, scr *Screen) *AddressSpace {
	return &AddressSpace{
		ram:      newBank("ram", RAMBankSize),
		rom:      newBank("rom", ROMSize),
		keyboard: kbd,
		screen:   scr,
	}
}

// AddRegion registers region. Nothing is registered when it fails.
func (as *AddressSpace) AddRegion(region MemoryRegion) error {
	if region.Handler == nil {
		return fmt.Errorf("%v: no handler: %w", region, ErrInvalidRegion)
	}
	if region.Start > region.End {
		return fmt.Errorf("%v: start after end: %w", region, ErrInvalidRegion)
	}
	if span := int(region.End-region.Start) + 1; span > region.Handler.Len() {
		return fmt.Errorf("%v: spans %d bytes, handler holds %d: %w",
			region, span, region.Handler.Len(), ErrInvalidRegion)
	}
	for _, r := range as.regions {
		if r.overlaps(region) {
			return fmt.Errorf("%v intersects %v: %w", region, r, ErrOverlappingRegion)
		}
	}
	as.regions = append(as.regions, region)
	return nil
}

func (as *AddressSpace) lookup(addr uint16) (MemoryRegion, bool) {
	for _, r := range as.regions {
		if r.contains(addr) {
			return r, true
		}
	}
	return MemoryRegion{}, false
}

func (as *AddressSpace) Read(addr uint16) (byte, error) {
	r, ok := as.lookup(addr)
	if !ok {
		return 0, fmt.Errorf("read $%04X: %w", addr, ErrUnmappedAddress)
	}
	v, err := r.Handler.Read(addr - r.Start)
	if err != nil {
		return 0, fmt.Errorf("read $%04X: %w", addr, err)
	}
	return v, nil
}

func (as *AddressSpace) Write(addr uint16, value byte) error {
	r, ok := as.lookup(addr)
	if !ok {
		return fmt.Errorf("write $%04X: %w", addr, ErrUnmappedAddress)
	}
	if err := r.Handler.Write(addr-r.Start, value); err != nil {
		return fmt.Errorf("write $%04X: %w", addr, err)
	}
	return nil
}

// Regions returns the registered regions in registration order.
func (as *AddressSpace) Regions() []MemoryRegion {
	out := make([]MemoryRegion, len(as.regions))
	copy(out, as.regions)
	return out
}

func (as *AddressSpace) RAM() *Bank { return as.ram }
func (as *AddressSpace) ROM() *Bank { return as.rom }

// mapStandard registers the fixed Apple-1 windows.
func (as *AddressSpace) mapStandard() error {
	low, err := newRAMWindow(as.ram, 0, RAMLowSize)
	if err != nil {
		return err
	}
	high, err := newRAMWindow(as.ram, RAMLowSize, RAMHighSize)
	if err != nil {
		return err
	}
	regions := []MemoryRegion{
		{"ram low", RAMLowStart, RAMLowEnd, low},
		{"ram high", RAMHighStart, RAMHighEnd, high},
		{"rom", ROMStart, ROMEnd, &romWindow{bank: as.rom}},
		{"keyboard", KBD, KBDCR, keyboardPort{as.keyboard}},
		{"display", DSP, DSPCR, screenPort{as.screen}},
	}
	for _, r := range regions {
		if err := as.AddRegion(r); err != nil {
			return err
		}
	}
	return nil
}
