// Package config loads the engine settings file.
//
// The file is TOML. Every key is optional: Load starts from Default and
// overlays whatever the file sets.
//
//	[window]
//	width = 1280
//	height = 720
//	title = "enDjinn"
//
//	[render]
//	background = [0.1, 0.1, 0.1, 1.0]
//	present_mode = "fifo"
//
//	[scripts]
//	files = ["scripts/main.go"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned for settings that cannot be used.
var ErrInvalidConfig = errors.New("config: invalid config")

// Window holds the window settings.
type Window struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	Title     string `toml:"title"`
	Resizable bool   `toml:"resizable"`
}

// Render holds the GPU settings.
type Render struct {
	// Background is the clear color as r, g, b, a in [0, 1].
	Background [4]float64 `toml:"background"`
	// PresentMode is fifo, fifo_relaxed, mailbox or immediate.
	PresentMode string `toml:"present_mode"`
	// Backend is auto, vulkan, metal, dx12 or gl.
	Backend string `toml:"backend"`
	// AcquireTimeout bounds device acquisition, as a Go duration string.
	AcquireTimeout string `toml:"acquire_timeout"`
}

// Assets holds the asset directory.
type Assets struct {
	Root string `toml:"root"`
}

// Scripts lists the gameplay scripts.
type Scripts struct {
	Files []string `toml:"files"`
	Entry string   `toml:"entry"`
}

// Audio holds the sound settings.
type Audio struct {
	Enabled    bool `toml:"enabled"`
	SampleRate int  `toml:"sample_rate"`
}

// Loop holds the scheduler settings.
type Loop struct {
	// MaxCatchUpSteps bounds updates per frame. Zero means unbounded.
	MaxCatchUpSteps int `toml:"max_catch_up_steps"`
}

// Log holds the logging settings.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
}

// Config is the engine settings file.
type Config struct {
	Window  Window  `toml:"window"`
	Render  Render  `toml:"render"`
	Assets  Assets  `toml:"assets"`
	Scripts Scripts `toml:"scripts"`
	Audio   Audio   `toml:"audio"`
	Loop    Loop    `toml:"loop"`
	Log     Log     `toml:"log"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Window: Window{Width: 1280, Height: 720, Title: "enDjinn"},
		Render: Render{
			Background:     [4]float64{0.1, 0.1, 0.1, 1},
			PresentMode:    "fifo",
			Backend:        "auto",
			AcquireTimeout: "5s",
		},
		Assets:  Assets{Root: "assets"},
		Scripts: Scripts{Entry: "UpdateAllSystems"},
		Audio:   Audio{Enabled: true, SampleRate: 44100},
		Log:     Log{Level: "info"},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("%w: line %d column %d: %s", ErrInvalidConfig, row, col, derr.Error())
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d", c.Window.Width, c.Window.Height))
	}
	for i, v := range c.Render.Background {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("background component %d = %g outside [0, 1]", i, v))
		}
	}
	if _, err := c.PresentMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Backend(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AcquireTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio sample rate %d", c.Audio.SampleRate))
	}
	if c.Loop.MaxCatchUpSteps < 0 {
		errs = append(errs, fmt.Errorf("max catch-up steps %d", c.Loop.MaxCatchUpSteps))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

var presentModes = map[string]gputypes.PresentMode{
	"fifo":         gputypes.PresentModeFifo,
	"fifo_relaxed": gputypes.PresentModeFifoRelaxed,
	"mailbox":      gputypes.PresentModeMailbox,
	"immediate":    gputypes.PresentModeImmediate,
}

// PresentMode returns the configured present mode. Empty means fifo.
func (c Config) PresentMode() (gputypes.PresentMode, error) {
	name := strings.ToLower(c.Render.PresentMode)
	if name == "" {
		return gputypes.PresentModeFifo, nil
	}
	m, ok := presentModes[name]
	if !ok {
		return gputypes.PresentModeUndefined, fmt.Errorf("unknown present mode %q", c.Render.PresentMode)
	}
	return m, nil
}

var backends = map[string]gputypes.Backend{
	"auto":   gputypes.BackendEmpty,
	"vulkan": gputypes.BackendVulkan,
	"metal":  gputypes.BackendMetal,
	"dx12":   gputypes.BackendDX12,
	"gl":     gputypes.BackendGL,
}

// Backend returns the requested GPU backend. BackendEmpty means pick the
// best one available.
func (c Config) Backend() (gputypes.Backend, error) {
	name := strings.ToLower(c.Render.Backend)
	if name == "" {
		return gputypes.BackendEmpty, nil
	}
	b, ok := backends[name]
	if !ok {
		return gputypes.BackendEmpty, fmt.Errorf("unknown backend %q", c.Render.Backend)
	}
	return b, nil
}

// AcquireTimeout returns the device acquisition deadline. Empty means the
// GPU package default.
func (c Config) AcquireTimeout() (time.Duration, error) {
	if c.Render.AcquireTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Render.AcquireTimeout)
	if err != nil {
		return 0, fmt.Errorf("acquire timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("acquire timeout %s must be positive", d)
	}
	return d, nil
}

// Background returns the clear color.
func (c Config) Background() gputypes.Color {
	b := c.Render.Background
	return gputypes.Color{R: b[0], G: b[1], B: b[2], A: b[3]}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// LogLevel returns the configured log level.
func (c Config) LogLevel() (slog.Level, error) {
	name := strings.ToLower(c.Log.Level)
	if name == "" {
		return slog.LevelInfo, nil
	}
	if !slices.Contains(logLevels, name) {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Marshal encodes c as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
