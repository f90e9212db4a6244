//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// fakeTarget is a window with fixed handles and size.
type fakeTarget struct {
	width, height int
	err           error
}

func (f fakeTarget) NativeHandles() (uintptr, uintptr, error) { return 1, 2, f.err }
func (f fakeTarget) FramebufferSize() (int, int)              { return f.width, f.height }

// drawCall is one Draw recorded in a pass.
type drawCall struct {
	vertexCount   uint32
	instanceCount uint32
	firstInstance uint32
	view          uintptr // texture view bound when the draw was issued
}

// recorder collects what the renderer asked the device to do. The noop
// backend hands out zero-size resources, so the wrappers below give views
// and bind groups distinct handles to tell them apart.
type recorder struct {
	nextHandle uintptr

	clears      []gputypes.Color
	activations []uintptr // view handle per SetBindGroup
	draws       []drawCall
	vertexSlots []string // "slot:label" per SetVertexBuffer
	passEnds    int
	submits     int
	presents    int
	discards    int

	buffersCreated   []string
	buffersDestroyed []string
	writes           map[string][][]byte

	bindGroupsCreated   int
	bindGroupsDestroyed int
	texturesDestroyed   int
	failBindGroups      map[string]bool

	boundView uintptr
}

func (r *recorder) handle() uintptr {
	r.nextHandle++
	return r.nextHandle
}

// lastWrite returns the most recent upload into the buffer labeled label.
func (r *recorder) lastWrite(label string) []byte {
	w := r.writes[label]
	if len(w) == 0 {
		return nil
	}
	return w[len(w)-1]
}

type recBuffer struct {
	hal.Buffer
	label string
}

type recView struct {
	hal.TextureView
	handle uintptr
}

func (v *recView) NativeHandle() uintptr { return v.handle }

type recBindGroup struct {
	hal.BindGroup
	view uintptr
}

type recDevice struct {
	hal.Device
	rec *recorder
}

func (d *recDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	b, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	d.rec.buffersCreated = append(d.rec.buffersCreated, desc.Label)
	return &recBuffer{Buffer: b, label: desc.Label}, nil
}

func (d *recDevice) DestroyBuffer(b hal.Buffer) {
	if rb, ok := b.(*recBuffer); ok {
		d.rec.buffersDestroyed = append(d.rec.buffersDestroyed, rb.label)
		b = rb.Buffer
	}
	d.Device.DestroyBuffer(b)
}

func (d *recDevice) DestroyTexture(t hal.Texture) {
	d.rec.texturesDestroyed++
	d.Device.DestroyTexture(t)
}

func (d *recDevice) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	v, err := d.Device.CreateTextureView(t, desc)
	if err != nil {
		return nil, err
	}
	return &recView{TextureView: v, handle: d.rec.handle()}, nil
}

func (d *recDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if d.rec.failBindGroups[desc.Label] {
		return nil, errors.New("bind group rejected")
	}
	g, err := d.Device.CreateBindGroup(desc)
	if err != nil {
		return nil, err
	}
	var view uintptr
	for _, e := range desc.Entries {
		if tv, ok := e.Resource.(gputypes.TextureViewBinding); ok {
			view = tv.TextureView
		}
	}
	d.rec.bindGroupsCreated++
	return &recBindGroup{BindGroup: g, view: view}, nil
}

func (d *recDevice) DestroyBindGroup(g hal.BindGroup) {
	d.rec.bindGroupsDestroyed++
	d.Device.DestroyBindGroup(g)
}

func (d *recDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	e, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &recEncoder{CommandEncoder: e, rec: d.rec}, nil
}

type recEncoder struct {
	hal.CommandEncoder
	rec *recorder
}

func (e *recEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	for _, a := range desc.ColorAttachments {
		if a.LoadOp == gputypes.LoadOpClear {
			e.rec.clears = append(e.rec.clears, a.ClearValue)
		}
	}
	return &recPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), rec: e.rec}
}

type recPass struct {
	hal.RenderPassEncoder
	rec *recorder
}

func (p *recPass) SetBindGroup(index uint32, g hal.BindGroup, offsets []uint32) {
	if rg, ok := g.(*recBindGroup); ok {
		p.rec.activations = append(p.rec.activations, rg.view)
		p.rec.boundView = rg.view
	}
	p.RenderPassEncoder.SetBindGroup(index, g, offsets)
}

func (p *recPass) SetVertexBuffer(slot uint32, b hal.Buffer, offset uint64) {
	label := ""
	if rb, ok := b.(*recBuffer); ok {
		label = rb.label
	}
	p.rec.vertexSlots = append(p.rec.vertexSlots, fmt.Sprintf("%d:%s", slot, label))
	p.RenderPassEncoder.SetVertexBuffer(slot, b, offset)
}

func (p *recPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.rec.draws = append(p.rec.draws, drawCall{
		vertexCount:   vertexCount,
		instanceCount: instanceCount,
		firstInstance: firstInstance,
		view:          p.rec.boundView,
	})
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *recPass) End() {
	p.rec.passEnds++
	p.RenderPassEncoder.End()
}

type recQueue struct {
	hal.Queue
	rec *recorder
}

func (q *recQueue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	if rb, ok := b.(*recBuffer); ok {
		if q.rec.writes == nil {
			q.rec.writes = make(map[string][][]byte)
		}
		q.rec.writes[rb.label] = append(q.rec.writes[rb.label], slices.Clone(data))
		b = rb.Buffer
	}
	return q.Queue.WriteBuffer(b, offset, data)
}

func (q *recQueue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	q.rec.submits++
	return q.Queue.Submit(cbs)
}

func (q *recQueue) Present(s hal.Surface, t hal.SurfaceTexture, damage []image.Rectangle) error {
	q.rec.presents++
	return q.Queue.Present(s, t, damage)
}

type recSurface struct {
	hal.Surface
	rec *recorder
}

func (s *recSurface) DiscardTexture(t hal.SurfaceTexture) {
	s.rec.discards++
	s.Surface.DiscardTexture(t)
}

// newTestContext creates a noop-backed Context whose device, queue and
// surface record every call.
func newTestContext(t *testing.T, width, height int) (*Context, *recorder) {
	t.Helper()
	c, err := NewContext(context.Background(), fakeTarget{width: width, height: height}, WithBackend(noop.API{}))
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	rec := &recorder{}
	c.device = &recDevice{Device: c.device, rec: rec}
	c.queue = &recQueue{Queue: c.queue, rec: rec}
	c.surface = &recSurface{Surface: c.surface, rec: rec}
	t.Cleanup(c.Destroy)
	return c, rec
}
