//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// frameResources holds the transient GPU objects recorded into one frame.
// They stay alive until the queue reports the frame's submission complete.
type frameResources struct {
	buffers    []hal.Buffer
	bindGroups []hal.BindGroup
	views      []hal.TextureView
	textures   []hal.Texture
	cmdBuffers []hal.CommandBuffer
	encoders   []hal.CommandEncoder
}

func (r *frameResources) destroy(device hal.Device) {
	for _, cb := range r.cmdBuffers {
		device.FreeCommandBuffer(cb)
	}
	for _, e := range r.encoders {
		e.Destroy()
	}
	for _, g := range r.bindGroups {
		device.DestroyBindGroup(g)
	}
	for _, b := range r.buffers {
		device.DestroyBuffer(b)
	}
	for _, v := range r.views {
		device.DestroyTextureView(v)
	}
	for _, t := range r.textures {
		device.DestroyTexture(t)
	}
	*r = frameResources{}
}

type retired struct {
	index uint64
	res   *frameResources
}

// retireQueue defers destruction of submitted frame resources until their
// submission index has completed.
type retireQueue struct {
	pending []retired
}

func (q *retireQueue) push(index uint64, res *frameResources) {
	q.pending = append(q.pending, retired{index: index, res: res})
}

// triage destroys every entry whose submission is at or below completed
// and returns how many were released.
func (q *retireQueue) triage(device hal.Device, completed uint64) int {
	n := 0
	for n < len(q.pending) && q.pending[n].index <= completed {
		q.pending[n].res.destroy(device)
		n++
	}
	q.pending = q.pending[n:]
	return n
}

// flush destroys everything. The caller must have waited for the device
// to go idle.
func (q *retireQueue) flush(device hal.Device) {
	for _, r := range q.pending {
		r.res.destroy(device)
	}
	q.pending = nil
}

func (q *retireQueue) len() int { return len(q.pending) }

// retireAfterSubmitted destroys res once the most recent submission has
// completed, or immediately when nothing is in flight.
func (c *Context) retireAfterSubmitted(res *frameResources) {
	if c.device == nil {
		return
	}
	completed := c.queue.PollCompleted()
	if completed >= c.lastSubmit {
		res.destroy(c.device)
		return
	}
	c.retired.push(c.lastSubmit, res)
}

// Frame is one render pass into the current surface texture.
//
// Frames are created by Context.BeginFrame and finished with End. Release
// must always be deferred right after BeginFrame succeeds; it undoes
// whatever End did not complete, so an early return never leaks the
// surface texture or the encoder.
type Frame struct {
	ctx     *Context
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	target  *hal.AcquiredSurfaceTexture
	res     *frameResources

	passEnded bool
	encoded   bool
	submitted bool
	presented bool
	released  bool
}

// BeginFrame acquires the next surface texture and opens a render pass
// that clears it to clear. It returns ErrFrameSkipped when the surface
// has zero area or the acquire timed out.
func (c *Context) BeginFrame(clear gputypes.Color) (*Frame, error) {
	if !c.ready() {
		return nil, ErrNotInitialized
	}
	if c.width == 0 || c.height == 0 {
		return nil, ErrFrameSkipped
	}

	target, err := c.acquireSurfaceTexture()
	if err != nil {
		return nil, err
	}

	f := &Frame{ctx: c, target: target, res: &frameResources{}}
	if err := f.begin(clear); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

func (c *Context) acquireSurfaceTexture() (*hal.AcquiredSurfaceTexture, error) {
	target, err := c.surface.AcquireTexture(nil)
	if errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost) {
		slogger().Debug("gpu: surface outdated, reconfiguring", "error", err)
		if cerr := c.configure(); cerr != nil {
			return nil, cerr
		}
		target, err = c.surface.AcquireTexture(nil)
	}
	switch {
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrZeroArea):
		return nil, fmt.Errorf("%w: %w", ErrFrameSkipped, err)
	case err != nil:
		return nil, fmt.Errorf("gpu: acquire surface texture: %w", err)
	case target == nil || target.Texture == nil:
		return nil, fmt.Errorf("%w: no surface texture", ErrFrameSkipped)
	}
	if target.Suboptimal {
		slogger().Debug("gpu: surface texture suboptimal")
	}
	return target, nil
}

func (f *Frame) begin(clear gputypes.Color) error {
	c := f.ctx
	view, err := c.device.CreateTextureView(f.target.Texture, &hal.TextureViewDescriptor{
		Label:         "djinn_surface_view",
		Format:        c.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("gpu: create surface view: %w", err)
	}
	f.res.views = append(f.res.views, view)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "djinn_frame"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	f.res.encoders = append(f.res.encoders, encoder)
	if err := encoder.BeginEncoding("djinn_frame"); err != nil {
		f.encoded = true
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	f.encoder = encoder

	f.pass = encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "djinn_sprite_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clear,
		}},
	})
	return nil
}

// Pass returns the open render pass encoder.
func (f *Frame) Pass() hal.RenderPassEncoder { return f.pass }

// TrackBuffer ties a buffer's lifetime to the frame.
func (f *Frame) TrackBuffer(b hal.Buffer) {
	if b != nil {
		f.res.buffers = append(f.res.buffers, b)
	}
}

// TrackBindGroup ties a bind group's lifetime to the frame.
func (f *Frame) TrackBindGroup(g hal.BindGroup) {
	if g != nil {
		f.res.bindGroups = append(f.res.bindGroups, g)
	}
}

// End closes the pass, submits the recorded commands and presents the
// surface texture.
func (f *Frame) End() error {
	if f.released || f.submitted {
		return nil
	}
	c := f.ctx
	f.endPass()

	cmd, err := f.encoder.EndEncoding()
	f.encoded = true
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	f.res.cmdBuffers = append(f.res.cmdBuffers, cmd)

	index, err := c.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return fmt.Errorf("gpu: submit frame: %w", err)
	}
	f.submitted = true
	c.frames++
	c.lastSubmit = index
	c.retired.push(index, f.res)

	err = c.queue.Present(c.surface, f.target.Texture, nil)
	f.presented = true
	c.retired.triage(c.device, c.queue.PollCompleted())
	if err != nil {
		return fmt.Errorf("gpu: present: %w", err)
	}
	return nil
}

func (f *Frame) endPass() {
	if f.pass != nil && !f.passEnded {
		f.pass.End()
		f.passEnded = true
	}
}

// Release undoes whatever End did not complete. It is idempotent.
func (f *Frame) Release() {
	if f.released {
		return
	}
	f.released = true
	c := f.ctx

	f.endPass()
	if f.encoder != nil && !f.encoded {
		f.encoder.DiscardEncoding()
		f.encoded = true
	}
	if f.target != nil && !f.presented {
		c.surface.DiscardTexture(f.target.Texture)
	}
	if !f.submitted {
		f.res.destroy(c.device)
	}
}
