// Package platform opens the game window with GLFW and feeds its events to
// the engine.
//
// GLFW must be driven from the main OS thread; callers lock it before Open.
package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gpucontext"

	"github.com/djinn-engine/djinn/input"
)

// ErrUnsupportedPlatform is returned by NativeHandles on systems without a
// surface implementation.
var ErrUnsupportedPlatform = errors.New("platform: native surface handles not supported on this system")

// Config describes the window to open.
type Config struct {
	Width     int
	Height    int
	Title     string
	Resizable bool
}

// KeySink receives translated key events.
type KeySink interface {
	HandleKey(key gpucontext.Key, action input.Action, mods gpucontext.Modifiers)
	Reset()
}

// ResizeFunc is called with the new framebuffer size in pixels.
type ResizeFunc func(width, height int)

var initOnce struct {
	sync.Mutex
	refs int
}

// Window is a GLFW window without a client API, ready for a GPU surface.
type Window struct {
	win      *glfw.Window
	keys     KeySink
	onResize []ResizeFunc
	closed   bool
}

// Open initializes GLFW if needed and creates the window.
func Open(cfg Config) (*Window, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("platform: invalid window size %dx%d", cfg.Width, cfg.Height)
	}
	initOnce.Lock()
	defer initOnce.Unlock()
	if initOnce.refs == 0 {
		if err := glfw.Init(); err != nil {
			return nil, fmt.Errorf("platform: init glfw: %w", err)
		}
	}

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, boolHint(cfg.Resizable))
	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		if initOnce.refs == 0 {
			glfw.Terminate()
		}
		return nil, fmt.Errorf("platform: create window: %w", err)
	}
	initOnce.refs++

	w := &Window{win: win}
	win.SetKeyCallback(w.keyCallback)
	win.SetFocusCallback(w.focusCallback)
	win.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	return w, nil
}

func boolHint(v bool) int {
	if v {
		return glfw.True
	}
	return glfw.False
}

// SetKeySink routes key events to sink. Nil drops them.
func (w *Window) SetKeySink(sink KeySink) { w.keys = sink }

// OnResize registers fn to run when the framebuffer size changes.
func (w *Window) OnResize(fn ResizeFunc) {
	if fn != nil {
		w.onResize = append(w.onResize, fn)
	}
}

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (width, height int) {
	if w.closed {
		return 0, 0
	}
	return w.win.GetFramebufferSize()
}

// ShouldClose reports whether the user or the game asked to close.
func (w *Window) ShouldClose() bool {
	return w.closed || w.win.ShouldClose()
}

// SetShouldClose sets the close flag checked by the game loop.
func (w *Window) SetShouldClose(v bool) {
	if !w.closed {
		w.win.SetShouldClose(v)
	}
}

// PollEvents processes pending window events and runs their callbacks.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// Close destroys the window and terminates GLFW once the last window is gone.
func (w *Window) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.win.Destroy()

	initOnce.Lock()
	defer initOnce.Unlock()
	initOnce.refs--
	if initOnce.refs == 0 {
		glfw.Terminate()
	}
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
	if w.keys == nil {
		return
	}
	k, ok := translateKey(key)
	if !ok {
		return
	}
	w.keys.HandleKey(k, translateAction(action), translateMods(mods))
}

func (w *Window) focusCallback(_ *glfw.Window, focused bool) {
	// Release events are lost while unfocused.
	if !focused && w.keys != nil {
		w.keys.Reset()
	}
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	for _, fn := range w.onResize {
		fn(width, height)
	}
}
