// Package display renders the machine's screen in a desktop window and turns
// window key events into keyboard presses.
package display

import (
	"image/color"
	"log"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"

	"github.com/aryanA101a/apple1-vm-go/vm"
)

const (
	glyphWidth  = 7
	glyphHeight = 13
	scale       = 2
)

var (
	phosphor   = color.RGBA{0x33, 0xFF, 0x66, 0xFF}
	background = color.Black
)

// Window is an ebiten game showing the grid of a vm.Screen.
type Window struct {
	kbd    *vm.Keyboard
	scr    *vm.Screen
	face   *text.GoXFace
	logger *log.Logger

	clipboardOK bool

	mu      sync.Mutex
	frame   vm.Frame
	pending []byte
	closed  bool
}

func NewWindow(kbd *vm.Keyboard, scr *vm.Screen, logger *log.Logger) *Window {
	w := &Window{
		kbd:    kbd,
		scr:    scr,
		face:   text.NewGoXFace(basicfont.Face7x13),
		logger: logger,
		frame:  scr.Snapshot(),
	}
	if err := clipboard.Init(); err != nil {
		logger.Printf("clipboard unavailable: %v", err)
	} else {
		w.clipboardOK = true
	}
	scr.OnRefresh(w.refresh)
	return w
}

// refresh is the screen's notification; it only copies the frame so the
// CPU goroutine is never held up by drawing.
func (w *Window) refresh() {
	f := w.scr.Snapshot()
	w.mu.Lock()
	w.frame = f
	w.mu.Unlock()
}

// Close makes the next Update end the game loop.
func (w *Window) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Run opens the window and blocks until it is closed. It must be called
// from the main goroutine.
func (w *Window) Run(title string) error {
	ebiten.SetWindowSize(vm.Columns*glyphWidth*scale, vm.Lines*glyphHeight*scale)
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ebiten.Termination
	}

	w.queueInput()
	w.feedKeyboard()
	return nil
}

func (w *Window) queueInput() {
	var keys []byte
	for _, r := range ebiten.AppendInputChars(nil) {
		if r < 0x80 {
			keys = append(keys, byte(r))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		keys = append(keys, '\r')
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		keys = append(keys, 0x08)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		keys = append(keys, 0x1B)
	}
	if w.clipboardOK && ebiten.IsKeyPressed(ebiten.KeyControl) && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		keys = append(keys, clipboard.Read(clipboard.FmtText)...)
	}

	for _, b := range keys {
		if key, ok := vm.TranslateKey(b); ok {
			w.pending = append(w.pending, key)
		}
	}
}

// feedKeyboard presses at most one queued key per frame, and only after the
// firmware has taken the previous one.
func (w *Window) feedKeyboard() {
	if len(w.pending) == 0 || !w.kbd.TryPress(w.pending[0]) {
		return
	}
	w.pending = w.pending[1:]
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	w.mu.Lock()
	f := w.frame
	w.mu.Unlock()

	for y, line := range f.Lines() {
		if line == "" {
			continue
		}
		op := &text.DrawOptions{}
		op.GeoM.Translate(0, float64(y*glyphHeight))
		op.ColorScale.ScaleWithColor(phosphor)
		text.Draw(screen, line, w.face, op)
	}

	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(f.CursorX*glyphWidth), float64(f.CursorY*glyphHeight))
	op.ColorScale.ScaleWithColor(phosphor)
	text.Draw(screen, "@", w.face, op)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return vm.Columns * glyphWidth, vm.Lines * glyphHeight
}
