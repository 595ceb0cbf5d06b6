package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/aryanA101a/apple1-vm-go/display"
	"github.com/aryanA101a/apple1-vm-go/script"
	"github.com/aryanA101a/apple1-vm-go/vm"
)

func main() {
	romPath := flag.String("rom", "", "firmware image loaded at $FF00 (required)")
	basicPath := flag.String("basic", "", "image loaded at $E000")
	displayMode := flag.String("display", "terminal", "terminal, window or none")
	scriptPath := flag.String("script", "", "Lua script that types into the keyboard")
	strict := flag.Bool("strict", false, "halt on every bus fault")
	logPath := flag.String("log", "", "write the log to this file")
	showMap := flag.Bool("map", false, "print the address map and exit")
	flag.Parse()

	logger, closeLog, err := openLog(*logPath, *displayMode)
	if err != nil {
		log.Fatalf("error opening log: %v", err)
	}
	defer closeLog()

	machine, err := vm.NewVM(vm.Config{Strict: *strict, Logger: logger})
	if err != nil {
		log.Fatalf("failed to build machine: %v", err)
	}

	if *showMap {
		printMap(machine, *romPath)
		return
	}

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "apple1 -rom <image> [-basic <image>] ...")
		os.Exit(2)
	}
	if err := loadImage(*romPath, machine.LoadROM); err != nil {
		log.Fatalf("failed to load rom: %v", err)
	}
	if *basicPath != "" {
		if err := loadImage(*basicPath, machine.LoadBASIC); err != nil {
			log.Fatalf("failed to load basic: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, stop, machine, *displayMode, *scriptPath, logger)
	if n := machine.CPU().Faults(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d bus faults ignored, see the log\n", n)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "halted at $%04X: %v\n", machine.CPU().PC(), err)
		closeLog()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, machine *vm.VM, mode, scriptPath string, logger *log.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	var window *display.Window
	switch mode {
	case "terminal":
		poll, render := machine.AttachTerminal()
		defer machine.DetachTerminal()
		g.Go(func() error { return render(ctx) })
		// stdin reads block, so the poller stays outside the group
		go func() {
			if err := poll(ctx); err != nil {
				logger.Printf("keyboard poller: %v", err)
			}
		}()
	case "window":
		window = display.NewWindow(machine.Keyboard, machine.Screen, logger)
	case "none":
	default:
		return fmt.Errorf("unknown display %q", mode)
	}

	g.Go(func() error { return machine.Run(ctx) })

	if scriptPath != "" {
		g.Go(func() error {
			return script.RunFile(ctx, scriptPath, machine.Keyboard, machine.Screen)
		})
	}

	if window != nil {
		go func() {
			<-ctx.Done()
			window.Close()
		}()
		if err := window.Run("Apple-1"); err != nil {
			logger.Printf("window: %v", err)
		}
		stop()
	}

	return g.Wait()
}

// printMap prints the region table and, when a rom is given, the reset
// vector it holds.
func printMap(machine *vm.VM, romPath string) {
	for _, r := range machine.Bus.Regions() {
		fmt.Println(r)
	}
	if romPath == "" {
		return
	}
	if err := loadImage(romPath, machine.LoadROM); err != nil {
		log.Fatalf("failed to load rom: %v", err)
	}
	rom := machine.Bus.ROM()
	lo := rom.Peek(vm.ResetVector - vm.ROMStart)
	hi := rom.Peek(vm.ResetVector - vm.ROMStart + 1)
	fmt.Printf("reset vector $%04X\n", uint16(hi)<<8|uint16(lo))
}

func loadImage(path string, load func([]byte) error) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return load(image)
}

// defaultLogFile receives the log in terminal mode when -log is not given.
const defaultLogFile = "logs.log"

// openLog picks the log destination. The terminal display owns stdout and
// stderr, so without -log it writes to defaultLogFile.
func openLog(path, mode string) (*log.Logger, func(), error) {
	if path == "" {
		if mode != "terminal" {
			return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
		}
		path = defaultLogFile
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "", log.LstdFlags|log.Lmicroseconds), func() { f.Close() }, nil
}
