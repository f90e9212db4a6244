//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/djinn-engine/djinn/ecs"
)

// SpriteSource is the entity query the renderer draws from.
type SpriteSource interface {
	ForEach(components []string, visit func(id ecs.EntityID))
	Sprite(id ecs.EntityID) (ecs.Sprite, bool)
}

// TextureResolver looks textures up by name.
type TextureResolver interface {
	Resolve(name string) (*Texture, bool)
}

// DefaultBackground is the clear color used when none is configured.
var DefaultBackground = gputypes.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}

// RendererOption configures a SpriteRenderer.
type RendererOption func(*SpriteRenderer)

// WithBackground sets the initial clear color.
func WithBackground(c gputypes.Color) RendererOption {
	return func(r *SpriteRenderer) {
		r.background = c
	}
}

// FrameStats describes the most recent frame.
type FrameStats struct {
	Drawables   int // sprites collected from the world
	Instances   int // sprites with a resolvable texture
	Skipped     int // sprites dropped for a missing texture or bind group
	Draws       int // instanced draw calls issued
	Activations int // bind groups created and bound
	Presented   bool
}

type drawable struct {
	sprite ecs.Sprite
	tex    *Texture
}

// SpriteRenderer draws every sprite in a world once per frame.
//
// Sprites are sorted back to front by depth and drawn as instanced quads,
// one draw per sprite. A new bind group is created only when the texture
// changes between consecutive draws. Ties in depth are drawn in the order
// sort.Slice leaves them, which is not stable across frames.
type SpriteRenderer struct {
	gpu        *Context
	textures   TextureResolver
	world      SpriteSource
	background gputypes.Color

	pipeline *spritePipeline
	projW    uint32
	projH    uint32

	// scratch reused between frames
	drawables []drawable
	instances []Instance
	packed    []byte

	stats FrameStats
}

// NewSpriteRenderer creates a renderer drawing world with textures from
// textures. GPU objects are created on the first Draw.
func NewSpriteRenderer(c *Context, textures TextureResolver, world SpriteSource, opts ...RendererOption) *SpriteRenderer {
	r := &SpriteRenderer{
		gpu:        c,
		textures:   textures,
		world:      spriteSource(world),
		background: DefaultBackground,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetWorld replaces the sprite source. A nil world, including a nil
// *ecs.World, draws nothing.
func (r *SpriteRenderer) SetWorld(world SpriteSource) { r.world = spriteSource(world) }

// spriteSource turns a typed nil world into a nil interface.
func spriteSource(world SpriteSource) SpriteSource {
	if w, ok := world.(*ecs.World); ok && w == nil {
		return nil
	}
	return world
}

// SetBackgroundColor sets the clear color used from the next frame on.
func (r *SpriteRenderer) SetBackgroundColor(c gputypes.Color) { r.background = c }

// BackgroundColor returns the clear color.
func (r *SpriteRenderer) BackgroundColor() gputypes.Color { return r.background }

// Stats returns statistics of the last drawn frame.
func (r *SpriteRenderer) Stats() FrameStats { return r.stats }

// Draw renders one frame.
//
// It returns ErrNotInitialized when the context has no device or queue.
// Missing textures are logged and skipped. A frame that cannot be
// acquired because the window has no area is skipped without error.
func (r *SpriteRenderer) Draw() error {
	if !r.gpu.ready() {
		return ErrNotInitialized
	}
	if err := r.ensurePipeline(); err != nil {
		return err
	}
	r.stats = FrameStats{}

	r.collect()
	r.stats.Drawables = len(r.drawables)
	sortByDepth(r.drawables)
	r.resolve()
	r.buildInstances()
	r.stats.Instances = len(r.instances)

	frame, err := r.gpu.BeginFrame(r.background)
	if errors.Is(err, ErrFrameSkipped) {
		slogger().Debug("gpu: frame skipped", "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	defer frame.Release()

	var instanceBuf hal.Buffer
	if len(r.instances) > 0 {
		r.packed = packInstances(r.packed[:0], r.instances)
		instanceBuf, err = r.gpu.CreateBuffer("sprite_instances", 0, gputypes.BufferUsageVertex, r.packed)
		if err != nil {
			return err
		}
		frame.TrackBuffer(instanceBuf)
	}

	pass := frame.Pass()
	pass.SetPipeline(r.pipeline.pipeline)
	pass.SetVertexBuffer(0, r.pipeline.quad, 0)
	if instanceBuf != nil {
		pass.SetVertexBuffer(1, instanceBuf, 0)
	}

	scope := bindGroupScope{frame: frame, gpu: r.gpu, pipeline: r.pipeline}
	for i, d := range r.drawables {
		if err := scope.bind(pass, d.tex); err != nil {
			slogger().Warn("gpu: skipping sprite", "texture", d.tex.Name, "error", err)
			r.stats.Skipped++
			continue
		}
		pass.Draw(quadVertexCount, 1, 0, uint32(i)) //nolint:gosec // instance count fits uint32
		r.stats.Draws++
	}
	scope.close()
	r.stats.Activations = scope.activations

	if err := frame.End(); err != nil {
		return err
	}
	r.stats.Presented = true
	return nil
}

func (r *SpriteRenderer) ensurePipeline() error {
	if r.pipeline == nil {
		p, err := newSpritePipeline(r.gpu)
		if err != nil {
			return err
		}
		r.pipeline = p
		r.projW, r.projH = 0, 0
	}
	w, h := r.gpu.Size()
	if w == 0 || h == 0 || (w == r.projW && h == r.projH) {
		return nil
	}
	if err := r.pipeline.writeProjection(r.gpu, w, h); err != nil {
		return err
	}
	r.projW, r.projH = w, h
	return nil
}

// collect gathers every entity with a sprite component.
func (r *SpriteRenderer) collect() {
	r.drawables = r.drawables[:0]
	if r.world == nil {
		return
	}
	r.world.ForEach([]string{string(ecs.KindSprite)}, func(id ecs.EntityID) {
		if s, ok := r.world.Sprite(id); ok {
			r.drawables = append(r.drawables, drawable{sprite: s})
		}
	})
}

// sortByDepth orders drawables farthest first.
func sortByDepth(ds []drawable) {
	sort.Slice(ds, func(i, j int) bool {
		return ds[i].sprite.Depth > ds[j].sprite.Depth
	})
}

// resolve drops drawables whose texture is not loaded, keeping order.
func (r *SpriteRenderer) resolve() {
	kept := r.drawables[:0]
	for _, d := range r.drawables {
		var tex *Texture
		var ok bool
		if r.textures != nil {
			tex, ok = r.textures.Resolve(d.sprite.Texture)
		}
		if !ok {
			slogger().Warn("gpu: texture not loaded", "texture", d.sprite.Texture)
			r.stats.Skipped++
			continue
		}
		d.tex = tex
		kept = append(kept, d)
	}
	r.drawables = kept
}

func (r *SpriteRenderer) buildInstances() {
	r.instances = r.instances[:0]
	for _, d := range r.drawables {
		aspect := d.tex.AspectScale()
		s := d.sprite
		r.instances = append(r.instances, Instance{
			Translation: [3]float32{s.Position[0], s.Position[1], s.Depth},
			Scale:       [2]float32{s.Scale[0] * aspect[0], s.Scale[1] * aspect[1]},
		})
	}
}

// Destroy releases the pipeline objects. Textures belong to the cache.
func (r *SpriteRenderer) Destroy() {
	if r.pipeline == nil {
		return
	}
	if device := r.gpu.Device(); device != nil {
		if err := device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle before releasing sprite pipeline", "error", err)
		}
		r.pipeline.destroy(device)
	}
	r.pipeline = nil
}

// bindGroupScope owns the bind group of the texture currently bound in a
// pass. A replaced group is handed to the frame, which releases it after
// the GPU is done with it.
type bindGroupScope struct {
	frame    *Frame
	gpu      *Context
	pipeline *spritePipeline

	current     string
	active      hal.BindGroup
	activations int
}

func (s *bindGroupScope) bind(pass hal.RenderPassEncoder, tex *Texture) error {
	if s.active != nil && tex.Name == s.current {
		return nil
	}
	s.close()
	g, err := s.gpu.CreateBindGroup("sprite_bind_"+tex.Name, s.pipeline.layout, s.pipeline.bindGroupEntries(tex.View()))
	if err != nil {
		return fmt.Errorf("bind texture %q: %w", tex.Name, err)
	}
	s.active = g
	s.current = tex.Name
	pass.SetBindGroup(0, g, nil)
	s.activations++
	return nil
}

func (s *bindGroupScope) close() {
	if s.active != nil {
		s.frame.TrackBindGroup(s.active)
		s.active = nil
		s.current = ""
	}
}
