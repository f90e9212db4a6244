// Package script runs gameplay scripts written in Go source with the yaegi
// interpreter.
//
// Scripts are package main files that import "djinn" for the engine API.
// They carry a "djinn" build constraint so the Go toolchain skips them when
// they live inside a module.
// Functions they declare can be called by name from the engine: the entry
// function once per tick, and per-entity functions through the script
// system.
//
//	//go:build djinn
//
//	package main
//
//	import "djinn"
//
//	func Spin(id int, dt float64) {
//		s, _ := djinn.GetSprite(id)
//		s.X += dt
//		djinn.SetSprite(id, s)
//	}
package script

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/djinn-engine/djinn/ecs"
)

// DefaultEntry is the function run once per tick when it is defined.
const DefaultEntry = "UpdateAllSystems"

// BuildTag is set while evaluating scripts.
const BuildTag = "djinn"

// Script errors.
var (
	// ErrScriptNotLoaded is returned when a script file cannot be evaluated.
	ErrScriptNotLoaded = errors.New("script: script not loaded")

	// ErrFunctionNotFound is returned when a called function is not defined.
	ErrFunctionNotFound = errors.New("script: function not found")
)

// Option configures a Manager.
type Option func(*Manager)

// WithEntry sets the per-tick entry function name. An empty name disables it.
func WithEntry(name string) Option {
	return func(m *Manager) {
		m.entry = name
	}
}

// WithPathResolver maps the paths given to LoadScript to files.
func WithPathResolver(resolve func(string) string) Option {
	return func(m *Manager) {
		if resolve != nil {
			m.resolve = resolve
		}
	}
}

// Manager owns one interpreter shared by every loaded script.
// It is driven from the game loop goroutine.
type Manager struct {
	mu      sync.Mutex
	interp  *interp.Interpreter
	api     *api
	entry   string
	resolve func(string) string
	scripts map[string]string // name -> resolved path
	funcs   map[string]reflect.Value
}

// New creates a Manager whose scripts see host through the djinn package.
func New(host Host, opts ...Option) (*Manager, error) {
	m := &Manager{
		api:     &api{host: host},
		entry:   DefaultEntry,
		resolve: func(p string) string { return p },
		scripts: make(map[string]string),
		funcs:   make(map[string]reflect.Value),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.interp = interp.New(interp.Options{BuildTags: []string{BuildTag}})
	if err := m.interp.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: load stdlib symbols: %w", err)
	}
	if err := m.interp.Use(interp.Exports(m.api.symbols())); err != nil {
		return nil, fmt.Errorf("script: load engine symbols: %w", err)
	}
	return m, nil
}

// LoadScript evaluates the file at path and records it under name.
// Loading a name twice logs a warning and does nothing.
func (m *Manager) LoadScript(name, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.scripts[name]; ok {
		slogger().Warn("script: already loaded, ignoring", "name", name, "path", prev)
		return nil
	}

	full := filepath.Clean(m.resolve(path))
	src, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrScriptNotLoaded, name, err)
	}
	if err := m.eval(string(src)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrScriptNotLoaded, name, err)
	}
	m.scripts[name] = full
	clear(m.funcs)
	slogger().Info("script: loaded", "name", name, "path", full)
	return nil
}

// eval runs src, turning a panic during evaluation into an error.
func (m *Manager) eval(src string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = m.interp.Eval(src)
	return err
}

// Scripts returns the loaded script names in sorted order.
func (m *Manager) Scripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.scripts))
	for n := range m.scripts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Has reports whether a function called name is defined.
func (m *Manager) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.lookup(name)
	return err == nil
}

// lookup returns the script function called name. m.mu must be held.
func (m *Manager) lookup(name string) (reflect.Value, error) {
	if fn, ok := m.funcs[name]; ok {
		return fn, nil
	}
	if !token.IsIdentifier(name) {
		return reflect.Value{}, fmt.Errorf("%w: %q is not an identifier", ErrFunctionNotFound, name)
	}
	v, err := m.interp.Eval(name)
	if err != nil || !v.IsValid() || v.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	m.funcs[name] = v
	return v, nil
}

// Call calls the script function name with args and returns its results.
// A panic inside the script is returned as an error.
func (m *Manager) Call(name string, args ...any) ([]any, error) {
	m.mu.Lock()
	fn, err := m.lookup(name)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ft := fn.Type()
	if ft.NumIn() != len(args) && !ft.IsVariadic() {
		return nil, fmt.Errorf("script: %s takes %d arguments, got %d", name, ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v := reflect.ValueOf(a)
		if i < ft.NumIn() && !ft.IsVariadic() {
			want := ft.In(i)
			switch {
			case !v.IsValid():
				v = reflect.Zero(want)
			case v.Type().AssignableTo(want):
			case v.Type().ConvertibleTo(want):
				v = v.Convert(want)
			default:
				return nil, fmt.Errorf("script: %s argument %d: cannot use %s as %s", name, i, v.Type(), want)
			}
		}
		in[i] = v
	}

	out, err := invoke(fn, in)
	if err != nil {
		return nil, fmt.Errorf("script: %s: %w", name, err)
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

func invoke(fn reflect.Value, in []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn.Call(in), nil
}

// Update runs one simulation tick: the entry function if the scripts define
// it, then the script system.
func (m *Manager) Update(dt float64) {
	if m.entry != "" && m.Has(m.entry) {
		if _, err := m.Call(m.entry, dt); err != nil {
			slogger().Error("script: entry failed", "function", m.entry, "error", err)
		}
	}
	m.UpdateScriptSystem(dt)
}

// UpdateScriptSystem calls, for every entity with a script component, the
// function the component names as fn(id int, dt float64). Failures are
// logged and the remaining entities still run.
func (m *Manager) UpdateScriptSystem(dt float64) {
	world := m.api.host.World
	if world == nil {
		return
	}
	// Scripts may spawn and despawn, so snapshot the ids first.
	var ids []ecs.EntityID
	world.ForEach([]string{string(ecs.KindScript)}, func(id ecs.EntityID) {
		ids = append(ids, id)
	})

	for _, id := range ids {
		sc, ok := world.Script(id)
		if !ok {
			continue
		}
		if _, err := m.Call(sc.Function, int(id), dt); err != nil {
			if errors.Is(err, ErrFunctionNotFound) {
				slogger().Warn("script: entity function not defined", "entity", int(id), "function", sc.Function)
				continue
			}
			slogger().Error("script: entity function failed", "entity", int(id), "function", sc.Function, "error", err)
		}
	}
}
