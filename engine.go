package djinn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gogpu/gputypes"

	"github.com/djinn-engine/djinn/audio"
	"github.com/djinn-engine/djinn/config"
	"github.com/djinn-engine/djinn/ecs"
	"github.com/djinn-engine/djinn/input"
	"github.com/djinn-engine/djinn/internal/gpu"
	"github.com/djinn-engine/djinn/internal/loop"
	"github.com/djinn-engine/djinn/internal/platform"
	"github.com/djinn-engine/djinn/script"
)

// ErrShutdown is returned by Run after Shutdown.
var ErrShutdown = errors.New("djinn: engine shut down")

// FrameStats describes one drawn frame.
type FrameStats = gpu.FrameStats

// Engine owns the window, the GPU context and every manager.
type Engine struct {
	cfg   config.Config
	root  string
	clock Clock

	window   Window
	gpu      *gpu.Context
	textures *gpu.TextureCache
	renderer *gpu.SpriteRenderer
	sounds   *audio.Manager
	input    *input.Manager
	scripts  *script.Manager
	world    *ecs.World

	scheduler *loop.Scheduler
	shutdown  bool
}

// New starts the engine: window, graphics context, texture cache, sound,
// input and scripts, in that order. The configured scripts are loaded last.
//
// ctx bounds device acquisition together with the configured timeout.
// On error everything already started is shut down.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := gpu.ValidateShader(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, world: o.world, clock: o.clock}
	if e.world == nil {
		e.world = ecs.NewWorld()
	}
	e.root = cfg.Assets.Root
	if o.assetRoot != "" {
		e.root = o.assetRoot
	}

	if err := e.start(ctx, o); err != nil {
		e.Shutdown()
		return nil, err
	}
	return e, nil
}

func (e *Engine) start(ctx context.Context, o options) error {
	cfg := e.cfg

	e.window = o.window
	if e.window == nil {
		w, err := platform.Open(platform.Config{
			Width:     cfg.Window.Width,
			Height:    cfg.Window.Height,
			Title:     cfg.Window.Title,
			Resizable: cfg.Window.Resizable,
		})
		if err != nil {
			return err
		}
		e.window = w
	}

	gpuOpts, err := e.gpuOptions(o)
	if err != nil {
		return err
	}
	e.gpu, err = gpu.NewContext(ctx, e.window, gpuOpts...)
	if err != nil {
		return fmt.Errorf("djinn: graphics: %w", err)
	}
	e.window.OnResize(func(width, height int) {
		if err := e.gpu.Resize(width, height); err != nil {
			Logger().Warn("djinn: resize failed", "width", width, "height", height, "error", err)
		}
	})

	e.textures = gpu.NewTextureCache(e.gpu)
	e.textures.SetAssetRoot(e.root)
	e.renderer = gpu.NewSpriteRenderer(e.gpu, e.textures, e.world, gpu.WithBackground(cfg.Background()))

	if cfg.Audio.Enabled {
		audioOpts := []audio.Option{
			audio.WithSampleRate(cfg.Audio.SampleRate),
			audio.WithPathResolver(e.resolve),
		}
		if o.audioOut != nil {
			audioOpts = append(audioOpts, audio.WithOutput(o.audioOut))
		}
		e.sounds = audio.New(audioOpts...)
		if err := e.sounds.Startup(); err != nil {
			// A machine without a sound device still runs the game.
			Logger().Warn("djinn: audio disabled", "error", err)
			e.sounds = nil
		}
	}

	e.input = input.NewManager()
	e.window.SetKeySink(e.input)

	host := script.Host{
		World:    e.world,
		Keys:     e.input,
		Textures: e.textures,
		Quit:     e.Quit,
	}
	if e.sounds != nil {
		host.Sounds = e.sounds
	}
	e.scripts, err = script.New(host,
		script.WithEntry(cfg.Scripts.Entry),
		script.WithPathResolver(e.resolve))
	if err != nil {
		return err
	}
	for _, file := range cfg.Scripts.Files {
		name := scriptName(file)
		if err := e.scripts.LoadScript(name, file); err != nil {
			return err
		}
	}

	schedOpts := []loop.Option{
		loop.WithMaxCatchUpSteps(cfg.Loop.MaxCatchUpSteps),
		loop.WithLogger(Logger()),
	}
	if e.clock != nil {
		schedOpts = append(schedOpts, loop.WithClock(e.clock))
	}
	e.scheduler = loop.New(e.window, schedOpts...)

	Logger().Info("djinn: engine started",
		"title", cfg.Window.Title,
		"assets", e.root,
		"scripts", len(cfg.Scripts.Files),
		"audio", e.sounds != nil)
	return nil
}

func (e *Engine) gpuOptions(o options) ([]gpu.ContextOption, error) {
	mode, err := e.cfg.PresentMode()
	if err != nil {
		return nil, err
	}
	timeout, err := e.cfg.AcquireTimeout()
	if err != nil {
		return nil, err
	}
	opts := []gpu.ContextOption{gpu.WithPresentMode(mode)}
	if timeout > 0 {
		opts = append(opts, gpu.WithAcquireTimeout(timeout))
	}
	if o.backend != nil {
		return append(opts, gpu.WithBackend(o.backend)), nil
	}
	variant, err := e.cfg.Backend()
	if err != nil {
		return nil, err
	}
	return append(opts, gpu.WithBackendVariant(variant)), nil
}

// resolve maps an asset path to a file, relative to the asset root.
func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) || e.root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(e.root, path)
}

// scriptName is the file name without directory or extension.
func scriptName(file string) string {
	base := filepath.Base(file)
	return base[:len(base)-len(filepath.Ext(base))]
}

// Run drives the game loop until the window closes or Quit is called.
// update receives the fixed step; nil runs RunScripts. A render error ends
// the loop and is returned.
func (e *Engine) Run(update func(dt float64)) error {
	if e.shutdown {
		return ErrShutdown
	}
	if update == nil {
		update = e.RunScripts
	}
	return e.scheduler.Run(update, e.renderer.Draw)
}

// RunScripts is the default simulation tick: the script entry function,
// then the per-entity script system.
func (e *Engine) RunScripts(dt float64) {
	e.scripts.Update(dt)
}

// Quit asks the loop to stop after the current iteration.
func (e *Engine) Quit() {
	if e.window != nil {
		e.window.SetShouldClose(true)
	}
}

// Shutdown releases everything in reverse startup order. It is safe to
// call more than once.
func (e *Engine) Shutdown() {
	if e.shutdown {
		return
	}
	e.shutdown = true
	if e.input != nil {
		e.input.Reset()
	}
	if e.sounds != nil {
		e.sounds.Shutdown()
	}
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.textures != nil {
		e.textures.Destroy()
	}
	if e.gpu != nil {
		e.gpu.Destroy()
	}
	if e.window != nil {
		e.window.Close()
	}
	Logger().Info("djinn: engine stopped")
}

// Config returns the settings the engine started with.
func (e *Engine) Config() config.Config { return e.cfg }

// World returns the entity store.
func (e *Engine) World() *ecs.World { return e.world }

// Input returns the keyboard state.
func (e *Engine) Input() *input.Manager { return e.input }

// Sounds returns the sound manager, or nil when audio is disabled.
func (e *Engine) Sounds() *audio.Manager { return e.sounds }

// Scripts returns the script manager.
func (e *Engine) Scripts() *script.Manager { return e.scripts }

// LoadImage loads an image from the asset root as a named texture.
func (e *Engine) LoadImage(name, path string) error {
	return e.textures.Load(name, path)
}

// SetBackgroundColor sets the clear color from the next frame on.
// Components are in [0, 1].
func (e *Engine) SetBackgroundColor(r, g, b, a float64) {
	e.renderer.SetBackgroundColor(gputypes.Color{R: r, G: g, B: b, A: a})
}

// Stats describes the last drawn frame.
func (e *Engine) Stats() FrameStats { return e.renderer.Stats() }

// Ticks returns the number of simulation ticks run so far.
func (e *Engine) Ticks() uint64 { return e.scheduler.Ticks() }
