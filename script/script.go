// Package script drives the keyboard from Lua, for unattended sessions such
// as typing a BASIC program into the machine and waiting for its output.
//
// A script sees these globals:
//
//	type_text(str)         press every character of str
//	press(byte)            press one raw key code
//	wait_for(text, secs)   true once text shows up on screen, false on timeout
//	screen()               table of the current screen lines
//	sleep(secs)
package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/aryanA101a/apple1-vm-go/vm"
)

const pollInterval = 10 * time.Millisecond

// Keyboard is the part of vm.Keyboard a script needs.
type Keyboard interface {
	TryPress(b byte) bool
}

// Screen is the part of vm.Screen a script needs.
type Screen interface {
	Snapshot() vm.Frame
}

type runner struct {
	ctx context.Context
	kbd Keyboard
	scr Screen
}

// RunFile executes the Lua file at path.
func RunFile(ctx context.Context, path string, kbd Keyboard, scr Screen) error {
	return run(ctx, kbd, scr, func(L *lua.LState) error { return L.DoFile(path) })
}

// RunString executes src as a Lua chunk.
func RunString(ctx context.Context, src string, kbd Keyboard, scr Screen) error {
	return run(ctx, kbd, scr, func(L *lua.LState) error { return L.DoString(src) })
}

func run(ctx context.Context, kbd Keyboard, scr Screen, exec func(*lua.LState) error) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	r := &runner{ctx: ctx, kbd: kbd, scr: scr}
	L.SetGlobal("type_text", L.NewFunction(r.typeText))
	L.SetGlobal("press", L.NewFunction(r.press))
	L.SetGlobal("wait_for", L.NewFunction(r.waitFor))
	L.SetGlobal("screen", L.NewFunction(r.screen))
	L.SetGlobal("sleep", L.NewFunction(r.sleep))

	if err := exec(L); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// pressWhenFree waits for the previous strobe to be consumed before pressing.
func (r *runner) pressWhenFree(key byte) bool {
	for !r.kbd.TryPress(key) {
		if !r.pause(pollInterval) {
			return false
		}
	}
	return true
}

func (r *runner) pause(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (r *runner) typeText(L *lua.LState) int {
	s := L.CheckString(1)
	for i := 0; i < len(s); i++ {
		key, ok := vm.TranslateKey(s[i])
		if !ok {
			continue
		}
		if !r.pressWhenFree(key) {
			L.RaiseError("cancelled")
		}
	}
	return 0
}

func (r *runner) press(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 0 || n > 0xFF {
		L.ArgError(1, "key code out of range")
	}
	if !r.pressWhenFree(byte(n)) {
		L.RaiseError("cancelled")
	}
	return 0
}

func (r *runner) contains(text string) bool {
	for _, line := range r.scr.Snapshot().Lines() {
		if strings.Contains(line, text) {
			return true
		}
	}
	return false
}

func (r *runner) waitFor(L *lua.LState) int {
	text := L.CheckString(1)
	timeout := time.Duration(float64(L.OptNumber(2, 5)) * float64(time.Second))
	deadline := time.Now().Add(timeout)

	for {
		if r.contains(text) {
			L.Push(lua.LTrue)
			return 1
		}
		if time.Now().After(deadline) || !r.pause(pollInterval) {
			L.Push(lua.LFalse)
			return 1
		}
	}
}

func (r *runner) screen(L *lua.LState) int {
	tbl := L.NewTable()
	for _, line := range r.scr.Snapshot().Lines() {
		tbl.Append(lua.LString(line))
	}
	L.Push(tbl)
	return 1
}

func (r *runner) sleep(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Second))
	if !r.pause(d) {
		L.RaiseError("cancelled")
	}
	return 0
}
