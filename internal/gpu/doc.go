//go:build !nogpu

// Package gpu draws the sprite world through the gogpu/wgpu hardware
// abstraction layer.
//
// # Architecture
//
//	Context        device, queue and surface of one window
//	TextureCache   named GPU textures decoded from image files
//	SpriteRenderer per-frame sprite pass over an ecs.World
//
// A frame collects every entity carrying a sprite component, sorts the
// sprites back to front by depth, packs one 20-byte instance record per
// sprite into a single vertex buffer, and issues one instanced quad draw
// per sprite. Texture bind groups are switched only when consecutive
// sprites use different textures.
//
// # Resource lifetime
//
// Per-frame GPU objects (instance buffer, bind groups, surface view,
// command buffer) are owned by a frame and destroyed once the queue
// reports the frame's submission complete. Textures live in the
// TextureCache until it is destroyed.
//
// # Logging
//
// The package logs through a package-level slog.Logger that is silent by
// default. Use SetLogger to enable output.
package gpu
