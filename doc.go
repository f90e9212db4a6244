// Package djinn is a small 2D sprite engine shell.
//
// An Engine opens a window, acquires a GPU device through gogpu/wgpu, and
// runs a fixed-timestep loop. Gameplay lives in Go-source scripts executed
// by an embedded interpreter; scripts create entities and give them sprite
// and script components in an ecs.World. Every loop iteration runs zero or
// more 1/60 s simulation ticks and then draws all sprites once, back to
// front by depth, as instanced textured quads.
//
// # Quick Start
//
//	cfg, err := config.Load("djinn.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	e, err := djinn.New(context.Background(), djinn.WithConfig(cfg))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer e.Shutdown()
//	if err := e.Run(nil); err != nil {
//		log.Fatal(err)
//	}
//
// Passing nil to Run uses RunScripts as the per-tick update.
//
// # Threading
//
// GLFW requires the main OS thread. Programs lock it in an init function
// and call New, Run and Shutdown from main.
//
// # Logging
//
// The engine is silent by default. SetLogger installs a slog.Logger for the
// engine and its GPU, audio and script layers.
package djinn
