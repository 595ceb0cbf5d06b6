package vm

import (
	"fmt"
	"strings"
	"sync"
)

const (
	Columns = 40
	Lines   = 24
)

const (
	charErase  = 0x5F /* '_' backs the cursor up and clears the cell */
	charDelete = 0x7F
	charReturn = 0x0D
)

// Frame is a copy of the screen state handed to display collaborators.
type Frame struct {
	Grid          [Lines][Columns]byte
	CursorX       int
	CursorY       int
	Control       byte
	OutputEnabled bool
}

// Lines renders each row as text. Empty cells become spaces and trailing
// spaces are dropped.
func (f Frame) Lines() []string {
	out := make([]string, Lines)
	for y := range f.Grid {
		row := make([]byte, Columns)
		for x, c := range f.Grid[y] {
			if c == 0 {
				c = ' '
			}
			row[x] = c
		}
		out[y] = strings.TrimRight(string(row), " ")
	}
	return out
}

// Screen emulates the 40x24 character output port and its control register.
type Screen struct {
	mu            sync.Mutex
	grid          [Lines][Columns]byte
	x, y          int
	control       byte
	outputEnabled bool

	onRefresh func()
}

func NewScreen() *Screen {
	return &Screen{}
}

// OnRefresh registers fn to be called after every change to the grid. It
// runs outside the screen lock, so fn may call Snapshot.
func (s *Screen) OnRefresh(fn func()) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

// Write feeds one character to the display. Bit 7 is not wired to the
// display and is ignored.
func (s *Screen) Write(c byte) error {
	s.mu.Lock()
	err := s.writeLocked(c & 0x7F)
	refresh := s.onRefresh
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if refresh != nil {
		refresh()
	}
	return nil
}

func (s *Screen) writeLocked(c byte) error {
	switch {
	case c == charErase:
		if s.x == 0 {
			if s.y == 0 {
				return fmt.Errorf("erase at (0,0): %w", ErrCursorUnderflow)
			}
			s.y--
			s.x = Columns - 1
		} else {
			s.x--
		}
		s.grid[s.y][s.x] = 0
	case c == charDelete:
		return nil
	case c == charReturn:
		s.x = 0
		s.y++
	case c >= 0x20:
		s.grid[s.y][s.x] = c
		s.x++
	default:
		return fmt.Errorf("0x%02X: %w", c, ErrUnsupportedCharacter)
	}

	if s.x == Columns {
		s.x = 0
		s.y++
	}
	if s.y == Lines {
		s.y = Lines - 1
		s.scrollLocked()
	}
	return nil
}

// scrollLocked moves every row up by one and blanks the last row.
func (s *Screen) scrollLocked() {
	copy(s.grid[:], s.grid[1:])
	s.grid[Lines-1] = [Columns]byte{}
}

// WriteControl latches output enable on the first write with bit 7 set and
// stores every other value.
func (s *Screen) WriteControl(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.outputEnabled && b&strobeBit != 0 {
		s.outputEnabled = true
		return
	}
	s.control = b
}

func (s *Screen) Control() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.control
}

func (s *Screen) Clear() {
	s.mu.Lock()
	s.grid = [Lines][Columns]byte{}
	s.x, s.y = 0, 0
	refresh := s.onRefresh
	s.mu.Unlock()

	if refresh != nil {
		refresh()
	}
}

// SetCursor moves the cursor without drawing. Firmware has no way to do
// this; it is for tests and tools that prepare a screen.
func (s *Screen) SetCursor(x, y int) error {
	if x < 0 || x >= Columns || y < 0 || y >= Lines {
		return fmt.Errorf("cursor (%d,%d) outside %dx%d grid", x, y, Columns, Lines)
	}
	s.mu.Lock()
	s.x, s.y = x, y
	s.mu.Unlock()
	return nil
}

// Cursor is used by tests; renderers read the cursor from Snapshot.
func (s *Screen) Cursor() (x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

func (s *Screen) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Frame{
		Grid:          s.grid,
		CursorX:       s.x,
		CursorY:       s.y,
		Control:       s.control,
		OutputEnabled: s.outputEnabled,
	}
}

// screenPort exposes the screen to the bus. The port is write-only: both
// registers read as 0, so firmware polling bit 7 never sees the display busy.
type screenPort struct {
	s *Screen
}

func (p screenPort) Len() int { return 2 }

func (p screenPort) Read(uint16) (byte, error) {
	return 0, nil
}

func (p screenPort) Write(offset uint16, value byte) error {
	if offset == dataRegister {
		return p.s.Write(value)
	}
	p.s.WriteControl(value)
	return nil
}
