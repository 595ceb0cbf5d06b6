package vm

import (
	"bufio"
	"context"
	"fmt"
	goIO "io"
	"log"
	"os"
	"time"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	pollInterval   = 5 * time.Millisecond
	renderInterval = 33 * time.Millisecond
)

// TranslateKey turns a host byte into what the Apple-1 keyboard would send:
// upper case ASCII with bit 7 set, CR for enter and '_' for backspace.
// ok is false for bytes the keyboard cannot produce.
func TranslateKey(b byte) (key byte, ok bool) {
	switch {
	case b == '\n' || b == '\r':
		b = charReturn
	case b == 0x08 || b == charDelete:
		b = charErase
	case b == 0x1B:
	case b >= 'a' && b <= 'z':
		b -= 'a' - 'A'
	case b < 0x20 || b > 0x7E:
		return 0, false
	}
	return b | strobeBit, true
}

// io is the terminal host: it feeds stdin to the keyboard and paints the
// screen onto stdout.
type io struct {
	originalTerminalConfig unix.Termios
	rawMode                bool
	stdin                  *os.File
	stdoutWriter           goIO.Writer
	keyBuffer              chan byte
	refresh                chan struct{}
	logger                 *log.Logger

	// held is a key taken from keyBuffer that the keyboard has not accepted yet.
	held    byte
	holding bool
}

func newIO(logger *log.Logger) *io {
	return &io{
		stdin:        os.Stdin,
		stdoutWriter: goIO.Writer(os.Stdout),
		keyBuffer:    make(chan byte, 1),
		refresh:      make(chan struct{}, 1),
		logger:       logger,
	}
}

// processKeyboard hands one buffered key to the keyboard, but only once the
// previous strobe has been consumed. A key that cannot be pressed yet is held
// for the next call.
func (io *io) processKeyboard(kbd *Keyboard) {
	if !io.holding {
		select {
		case io.held = <-io.keyBuffer:
			io.holding = true
		default:
			return
		}
	}
	if kbd.TryPress(io.held) {
		io.holding = false
	}
}

// pollKeyboard reads stdin until ctx is done. Reads block, so the goroutine
// may outlive ctx by one keystroke.
func (io *io) pollKeyboard(ctx context.Context) error {
	reader := bufio.NewReader(io.stdin)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			if err == goIO.EOF {
				return nil
			}
			return fmt.Errorf("read stdin: %w", err)
		}
		key, ok := TranslateKey(b)
		if !ok {
			continue
		}
		select {
		case io.keyBuffer <- key:
		case <-ctx.Done():
			return nil
		}
	}
}

// notify is the screen refresh callback; it never blocks the CPU.
func (io *io) notify() {
	select {
	case io.refresh <- struct{}{}:
	default:
	}
}

// render repaints the grid after refresh notifications, at most once per
// tick.
func (io *io) render(ctx context.Context, scr *Screen) error {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	dirty := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-io.refresh:
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if err := io.draw(scr.Snapshot()); err != nil {
				return err
			}
		}
	}
}

func (io *io) draw(f Frame) error {
	w := bufio.NewWriter(io.stdoutWriter)
	w.WriteString("\x1b[H")
	for _, line := range f.Lines() {
		w.WriteString(line)
		w.WriteString("\x1b[K\r\n")
	}
	fmt.Fprintf(w, "\x1b[%d;%dH", f.CursorY+1, f.CursorX+1)
	return w.Flush()
}

// this configures the terminal to run in raw mode
func (io *io) enableRawMode() {
	fd := io.stdin.Fd()
	if !term.IsTerminal(int(fd)) {
		io.logger.Printf("stdin is not a terminal, leaving it alone")
		return
	}
	io.logger.Printf("enabling raw mode...")
	if err := termios.Tcgetattr(fd, &io.originalTerminalConfig); err != nil {
		io.logger.Printf("tcgetattr: %v", err)
		return
	}
	newTermios := io.originalTerminalConfig
	newTermios.Lflag &^= unix.ICANON | unix.ECHO
	if err := termios.Tcsetattr(fd, termios.TCSANOW, &newTermios); err != nil {
		io.logger.Printf("tcsetattr: %v", err)
		return
	}
	io.rawMode = true
	io.stdoutWriter.Write([]byte("\x1b[2J"))
}

func (io *io) disableRawMode() {
	if !io.rawMode {
		return
	}
	io.logger.Printf("disabling raw mode...")
	termios.Tcsetattr(io.stdin.Fd(), termios.TCSANOW, &io.originalTerminalConfig)
	io.rawMode = false
	io.stdoutWriter.Write([]byte("\r\n"))
}
