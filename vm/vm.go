package vm

import (
	"context"
	"fmt"
	goIO "io"
	"log"
)

// Config carries the run options of a machine.
type Config struct {
	// Strict stops the CPU on every bus fault instead of logging the
	// recoverable ones.
	Strict bool

	// Logger defaults to one that discards everything.
	Logger *log.Logger
}

// VM is an Apple-1 style machine: the bus with its standard windows, the two
// peripherals and the CPU that drives them.
type VM struct {
	Bus      *AddressSpace
	Keyboard *Keyboard
	Screen   *Screen

	cpu    *CPU
	io     *io
	logger *log.Logger
}

func NewVM(cfg Config) (*VM, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(goIO.Discard, "", 0)
	}

	kbd := NewKeyboard()
	scr := NewScreen()
	bus := NewAddressSpace(kbd, scr)
	if err := bus.mapStandard(); err != nil {
		return nil, fmt.Errorf("map address space: %w", err)
	}

	return &VM{
		Bus:      bus,
		Keyboard: kbd,
		Screen:   scr,
		cpu:      newCPU(bus, cfg.Strict, logger),
		logger:   logger,
	}, nil
}

// LoadROM places a raw firmware image at the start of the ROM bank.
func (vm *VM) LoadROM(image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("rom image is empty")
	}
	vm.logger.Printf("rom: %d bytes", len(image))
	return vm.Bus.ROM().Load(0, image)
}

// LoadBASIC places a raw image in the RAM bank at BASICOffset.
func (vm *VM) LoadBASIC(image []byte) error {
	vm.logger.Printf("basic: %0.2f KB", float32(len(image))/1024)
	return vm.Bus.RAM().Load(BASICOffset, image)
}

func (vm *VM) CPU() *CPU {
	return vm.cpu
}

// Run resets the CPU and executes until ctx is cancelled or the CPU halts on
// a fault.
func (vm *VM) Run(ctx context.Context) error {
	if err := vm.cpu.Reset(); err != nil {
		return err
	}
	return vm.cpu.Run(ctx)
}

// AttachTerminal makes the process terminal the keyboard and display. The
// returned functions are the input poller and the renderer; both run until
// ctx is done. Call DetachTerminal to restore the terminal.
func (vm *VM) AttachTerminal() (poll, render func(context.Context) error) {
	vm.io = newIO(vm.logger)
	vm.io.enableRawMode()
	vm.Screen.OnRefresh(vm.io.notify)
	vm.cpu.beforeStep = func() {
		vm.io.processKeyboard(vm.Keyboard)
	}

	poll = vm.io.pollKeyboard
	render = func(ctx context.Context) error {
		return vm.io.render(ctx, vm.Screen)
	}
	return poll, render
}

func (vm *VM) DetachTerminal() {
	if vm.io == nil {
		return
	}
	vm.io.disableRawMode()
}
