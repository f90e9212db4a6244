package djinn

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/djinn-engine/djinn/audio"
	"github.com/djinn-engine/djinn/internal/gpu"
	"github.com/djinn-engine/djinn/script"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for the engine and its sub-packages.
// By default nothing is logged. Pass nil to restore silence.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame diagnostics (skipped frames, catch-up limits)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, assets and scripts loaded)
//   - [slog.LevelWarn]: recoverable problems (missing textures, unknown sounds)
//   - [slog.LevelError]: script failures
//
// Script Print output is logged at Info with source=script.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
	audio.SetLogger(l)
	script.SetLogger(l)
}

// Logger returns the current engine logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
