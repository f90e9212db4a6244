package djinn

import (
	"log/slog"
	"time"

	"github.com/gogpu/wgpu/hal"

	"github.com/djinn-engine/djinn/audio"
	"github.com/djinn-engine/djinn/config"
	"github.com/djinn-engine/djinn/ecs"
	"github.com/djinn-engine/djinn/internal/gpu"
	"github.com/djinn-engine/djinn/internal/loop"
	"github.com/djinn-engine/djinn/internal/platform"
)

// KeySink receives key events from a Window.
type KeySink = platform.KeySink

// ResizeFunc is called with the new framebuffer size in pixels.
type ResizeFunc = platform.ResizeFunc

// Clock supplies the time that drives the game loop.
type Clock interface {
	Now() time.Time
}

// Window is the platform window the engine renders into.
// The GLFW window from internal/platform is used unless WithWindow is given.
type Window interface {
	gpu.SurfaceTarget
	loop.Platform
	SetShouldClose(bool)
	SetKeySink(KeySink)
	OnResize(ResizeFunc)
	Close()
}

// Option configures an Engine during New.
//
// Example:
//
//	e, err := djinn.New(ctx,
//	    djinn.WithConfig(cfg),
//	    djinn.WithLogger(slog.Default()),
//	)
type Option func(*options)

type options struct {
	cfg       config.Config
	world     *ecs.World
	logger    *slog.Logger
	window    Window
	backend   hal.Backend
	audioOut  audio.Output
	clock     Clock
	assetRoot string
}

func defaultOptions() options {
	return options{cfg: config.Default()}
}

// WithConfig sets the engine settings. The default is config.Default.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithWorld uses an existing world instead of a new empty one.
func WithWorld(w *ecs.World) Option {
	return func(o *options) {
		o.world = w
	}
}

// WithLogger calls SetLogger with l before startup.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWindow renders into w instead of opening a GLFW window.
// The engine takes ownership and closes it on Shutdown.
func WithWindow(w Window) Option {
	return func(o *options) {
		o.window = w
	}
}

// WithGPUBackend forces a HAL backend, overriding the configured one.
//
// Example:
//
//	import "github.com/gogpu/wgpu/hal/noop"
//
//	e, err := djinn.New(ctx, djinn.WithGPUBackend(noop.API{}))
func WithGPUBackend(b hal.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithAudioOutput plays sound into out instead of the system speaker.
func WithAudioOutput(out audio.Output) Option {
	return func(o *options) {
		o.audioOut = out
	}
}

// WithClock drives the game loop from c instead of the system clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithAssetRoot overrides the configured asset directory.
func WithAssetRoot(root string) Option {
	return func(o *options) {
		o.assetRoot = root
	}
}
