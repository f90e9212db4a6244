// Package input tracks keyboard state for the game loop and scripts.
//
// Keys use the gpucontext key codes so any gpucontext.EventSource can feed
// a Manager. The platform layer calls HandleKey directly.
package input

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/gpucontext"
)

// Action is what happened to a key.
type Action uint8

const (
	// Release means the key went up.
	Release Action = iota
	// Press means the key went down.
	Press
	// Repeat means the key is held and the OS generated a repeat.
	Repeat
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Release:
		return "release"
	case Press:
		return "press"
	case Repeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// KeyHandler receives key transitions.
type KeyHandler func(key gpucontext.Key, mods gpucontext.Modifiers)

// Manager holds the last action seen for every key.
// It is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	state     map[gpucontext.Key]Action
	mods      gpucontext.Modifiers
	onPress   []KeyHandler
	onRelease []KeyHandler
}

// NewManager returns a Manager with every key released.
func NewManager() *Manager {
	return &Manager{state: make(map[gpucontext.Key]Action)}
}

// HandleKey records a key transition and notifies handlers.
// Repeats notify press handlers.
func (m *Manager) HandleKey(key gpucontext.Key, action Action, mods gpucontext.Modifiers) {
	m.mu.Lock()
	if action == Release {
		delete(m.state, key)
	} else {
		m.state[key] = action
	}
	m.mods = mods
	var handlers []KeyHandler
	if action == Release {
		handlers = m.onRelease
	} else {
		handlers = m.onPress
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(key, mods)
	}
}

// IsKeyPressed reports whether key is held down, including OS repeats.
func (m *Manager) IsKeyPressed(key gpucontext.Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.state[key]
	return ok && (a == Press || a == Repeat)
}

// State returns the last action for key.
func (m *Manager) State(key gpucontext.Key) Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state[key]
}

// Modifiers returns the modifiers of the last key event.
func (m *Manager) Modifiers() gpucontext.Modifiers {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mods
}

// OnKeyPress registers a handler for presses and repeats.
func (m *Manager) OnKeyPress(fn KeyHandler) {
	m.mu.Lock()
	m.onPress = append(m.onPress, fn)
	m.mu.Unlock()
}

// OnKeyRelease registers a handler for releases.
func (m *Manager) OnKeyRelease(fn KeyHandler) {
	m.mu.Lock()
	m.onRelease = append(m.onRelease, fn)
	m.mu.Unlock()
}

// Reset releases every key without notifying handlers, as after the
// window loses focus.
func (m *Manager) Reset() {
	m.mu.Lock()
	clear(m.state)
	m.mods = 0
	m.mu.Unlock()
}

// Attach feeds the manager from an event source. Losing focus resets
// all keys.
func (m *Manager) Attach(src gpucontext.EventSource) {
	src.OnKeyPress(func(k gpucontext.Key, mods gpucontext.Modifiers) {
		m.HandleKey(k, Press, mods)
	})
	src.OnKeyRelease(func(k gpucontext.Key, mods gpucontext.Modifiers) {
		m.HandleKey(k, Release, mods)
	})
	src.OnFocus(func(focused bool) {
		if !focused {
			m.Reset()
		}
	})
}

// keyNames maps script-facing names to key codes.
var keyNames = map[string]gpucontext.Key{
	"SPACE":       gpucontext.KeySpace,
	"ENTER":       gpucontext.KeyEnter,
	"ESCAPE":      gpucontext.KeyEscape,
	"TAB":         gpucontext.KeyTab,
	"BACKSPACE":   gpucontext.KeyBackspace,
	"LEFT":        gpucontext.KeyLeft,
	"RIGHT":       gpucontext.KeyRight,
	"UP":          gpucontext.KeyUp,
	"DOWN":        gpucontext.KeyDown,
	"LEFT_SHIFT":  gpucontext.KeyLeftShift,
	"RIGHT_SHIFT": gpucontext.KeyRightShift,
	"LEFT_CTRL":   gpucontext.KeyLeftControl,
	"RIGHT_CTRL":  gpucontext.KeyRightControl,
	"LEFT_ALT":    gpucontext.KeyLeftAlt,
	"RIGHT_ALT":   gpucontext.KeyRightAlt,
}

func init() {
	for i := range 26 {
		keyNames[string(rune('A'+i))] = gpucontext.KeyA + gpucontext.Key(i)
	}
	for i := range 10 {
		keyNames[string(rune('0'+i))] = gpucontext.Key0 + gpucontext.Key(i)
	}
	for i := range 12 {
		keyNames["F"+strconv.Itoa(i+1)] = gpucontext.KeyF1 + gpucontext.Key(i)
	}
}

// ParseKey returns the key called name, such as "SPACE", "W" or
// "LEFT_SHIFT". Matching ignores case.
func ParseKey(name string) (gpucontext.Key, bool) {
	k, ok := keyNames[strings.ToUpper(name)]
	return k, ok
}

// KeyName returns the name ParseKey accepts for key, or "" if it has none.
func KeyName(key gpucontext.Key) string {
	for n, k := range keyNames {
		if k == key {
			return n
		}
	}
	return ""
}
