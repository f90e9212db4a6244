// Command djinn runs a game from a settings file and its scripts.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/djinn-engine/djinn"
	"github.com/djinn-engine/djinn/config"
)

func init() {
	// GLFW and the GPU surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		configPath = flag.String("config", "djinn.toml", "engine settings file")
		assets     = flag.String("assets", "", "asset directory, overrides the settings file")
		verbose    = flag.Bool("v", false, "log debug messages")
	)
	flag.Parse()

	if err := run(*configPath, *assets, *verbose); err != nil {
		slog.Error("djinn: fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath, assets string, verbose bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := []djinn.Option{djinn.WithConfig(cfg), djinn.WithLogger(logger)}
	if assets != "" {
		opts = append(opts, djinn.WithAssetRoot(assets))
	}
	e, err := djinn.New(context.Background(), opts...)
	if err != nil {
		return err
	}
	defer e.Shutdown()
	return e.Run(nil)
}

// loadConfig reads path, falling back to the defaults when the file is
// missing.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("djinn: settings file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return cfg, err
}
