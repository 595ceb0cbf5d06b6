package vm

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/beevik/go6502/cpu"
)

// openBus is what a faulted read hands back to the 6502 core.
const openBus = 0xFF

// busMemory adapts the AddressSpace to the 6502 core, which has no way to
// return an error from a load or a store. The first fault of an instruction
// is kept until the step is over.
type busMemory struct {
	bus   *AddressSpace
	fault error
}

func (m *busMemory) record(err error) {
	if err != nil && m.fault == nil {
		m.fault = err
	}
}

func (m *busMemory) LoadByte(addr uint16) byte {
	v, err := m.bus.Read(addr)
	if err != nil {
		m.record(err)
		return openBus
	}
	return v
}

func (m *busMemory) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = m.LoadByte(addr + uint16(i))
	}
}

func (m *busMemory) LoadAddress(addr uint16) uint16 {
	lo := uint16(m.LoadByte(addr))
	hi := uint16(m.LoadByte(addr + 1))
	return hi<<8 | lo
}

func (m *busMemory) StoreByte(addr uint16, v byte) {
	m.record(m.bus.Write(addr, v))
}

func (m *busMemory) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		m.StoreByte(addr+uint16(i), v)
	}
}

func (m *busMemory) StoreAddress(addr uint16, v uint16) {
	m.StoreByte(addr, byte(v))
	m.StoreByte(addr+1, byte(v>>8))
}

// CPU drives the bus with an NMOS 6502.
type CPU struct {
	core   *cpu.CPU
	memory *busMemory
	strict bool
	logger *log.Logger

	// faults counts the bus faults Run logged and stepped over.
	faults atomic.Uint64

	// beforeStep runs on the CPU goroutine ahead of every instruction.
	beforeStep func()
}

func newCPU(bus *AddressSpace, strict bool, logger *log.Logger) *CPU {
	mem := &busMemory{bus: bus}
	return &CPU{
		core:   cpu.NewCPU(cpu.NMOS, mem),
		memory: mem,
		strict: strict,
		logger: logger,
	}
}

// Reset points the program counter at the address held in the reset vector.
func (c *CPU) Reset() error {
	c.memory.fault = nil
	pc := c.memory.LoadAddress(ResetVector)
	if err := c.memory.fault; err != nil {
		c.memory.fault = nil
		return fmt.Errorf("reset vector: %w", err)
	}
	c.core.SetPC(pc)
	c.logger.Printf("reset: pc=$%04X", pc)
	return nil
}

// Faults returns how many bus faults Run has tolerated so far.
func (c *CPU) Faults() uint64 {
	return c.faults.Load()
}

func (c *CPU) PC() uint16 {
	return c.core.Reg.PC
}

// Step executes one instruction and returns the first bus fault it raised.
func (c *CPU) Step() error {
	pc := c.core.Reg.PC
	c.memory.fault = nil
	c.core.Step()
	if err := c.memory.fault; err != nil {
		c.memory.fault = nil
		return fmt.Errorf("pc=$%04X: %w", pc, err)
	}
	return nil
}

// Run steps until ctx is cancelled or a fault stops the machine. Unmapped
// accesses always stop it; the other faults are logged unless strict.
func (c *CPU) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.beforeStep != nil {
			c.beforeStep()
		}
		if err := c.Step(); err != nil {
			if c.strict || fatal(err) {
				return err
			}
			c.faults.Add(1)
			c.logger.Printf("bus fault ignored: %v", err)
		}
	}
}
