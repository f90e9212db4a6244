//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultAcquireTimeout bounds adapter and device acquisition at startup.
const DefaultAcquireTimeout = 5 * time.Second

// SurfaceTarget is the window a Context presents into.
type SurfaceTarget interface {
	// NativeHandles returns the platform display and window handles.
	NativeHandles() (display, window uintptr, err error)
	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)
}

// ContextOption configures a Context during creation.
type ContextOption func(*contextOptions)

type contextOptions struct {
	backend        hal.Backend
	variant        gputypes.Backend
	presentMode    gputypes.PresentMode
	acquireTimeout time.Duration
}

func defaultContextOptions() contextOptions {
	return contextOptions{
		presentMode:    gputypes.PresentModeFifo,
		acquireTimeout: DefaultAcquireTimeout,
	}
}

// WithBackend uses the given HAL backend instead of the registry.
// Tests pass noop.API{} here.
func WithBackend(b hal.Backend) ContextOption {
	return func(o *contextOptions) {
		o.backend = b
	}
}

// WithBackendVariant selects a registered backend by API, for example
// gputypes.BackendVulkan. The default picks the best registered backend.
func WithBackendVariant(v gputypes.Backend) ContextOption {
	return func(o *contextOptions) {
		o.variant = v
	}
}

// WithPresentMode requests a presentation mode. Unsupported modes fall
// back to Fifo, which every surface supports.
func WithPresentMode(m gputypes.PresentMode) ContextOption {
	return func(o *contextOptions) {
		o.presentMode = m
	}
}

// WithAcquireTimeout bounds adapter and device acquisition.
// Non-positive values keep the default.
func WithAcquireTimeout(d time.Duration) ContextOption {
	return func(o *contextOptions) {
		if d > 0 {
			o.acquireTimeout = d
		}
	}
}

// Context owns the device, queue and surface of one window.
//
// All methods must be called from the goroutine that drives the frame loop.
type Context struct {
	instance hal.Instance
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue
	surface  hal.Surface

	format      gputypes.TextureFormat
	presentMode gputypes.PresentMode
	alphaMode   gputypes.CompositeAlphaMode
	width       uint32
	height      uint32

	retired    retireQueue
	frames     uint64
	lastSubmit uint64
}

// NewContext creates the graphics context for target.
//
// Adapter enumeration and device creation run on a helper goroutine; the
// call blocks until they finish, the acquisition timeout passes, or ctx is
// cancelled. On timeout it returns an error wrapping ErrAcquireTimeout.
func NewContext(ctx context.Context, target SurfaceTarget, opts ...ContextOption) (*Context, error) {
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := selectBackend(o)
	if err != nil {
		return nil, err
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{
		Backends: gputypes.BackendsAll,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	display, window, err := target.NativeHandles()
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: native window handles: %w", err)
	}
	surface, err := instance.CreateSurface(display, window)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: create surface: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, o.acquireTimeout)
	defer cancel()
	exposed, open, err := acquireDevice(actx, instance, surface)
	if err != nil {
		surface.Destroy()
		instance.Destroy()
		return nil, err
	}

	c := &Context{
		instance: instance,
		adapter:  exposed.Adapter,
		info:     exposed.Info,
		device:   open.Device,
		queue:    open.Queue,
		surface:  surface,
	}
	c.chooseSurfaceFormat(o.presentMode)

	w, h := target.FramebufferSize()
	if err := c.Resize(w, h); err != nil {
		c.Destroy()
		return nil, err
	}

	slogger().Info("gpu: context ready",
		"adapter", c.info.Name,
		"type", c.AdapterInfo().Type,
		"backend", backend.Variant().String(),
		"format", c.format.String(),
		"present_mode", c.presentMode.String(),
		"width", c.width, "height", c.height)
	return c, nil
}

func selectBackend(o contextOptions) (hal.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}
	if o.variant != gputypes.BackendEmpty {
		if b, ok := hal.GetBackend(o.variant); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: %s not registered", ErrNoBackend, o.variant.String())
	}
	b, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBackend, err)
	}
	return b, nil
}

type acquisition struct {
	adapter hal.ExposedAdapter
	open    hal.OpenDevice
	err     error
}

// acquireDevice enumerates adapters and opens a device, waiting at most
// until ctx is done. A device that arrives after the deadline is destroyed.
func acquireDevice(ctx context.Context, instance hal.Instance, surface hal.Surface) (hal.ExposedAdapter, hal.OpenDevice, error) {
	done := make(chan acquisition, 1)
	go func() {
		adapters := instance.EnumerateAdapters(surface)
		if len(adapters) == 0 {
			done <- acquisition{err: ErrNoAdapter}
			return
		}
		selected := selectAdapter(adapters)
		open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
		if err != nil {
			err = fmt.Errorf("gpu: open device on %q: %w", selected.Info.Name, err)
		}
		done <- acquisition{adapter: *selected, open: open, err: err}
	}()

	select {
	case r := <-done:
		return r.adapter, r.open, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				r.open.Device.Destroy()
			}
		}()
		return hal.ExposedAdapter{}, hal.OpenDevice{}, fmt.Errorf("%w: %w", ErrAcquireTimeout, ctx.Err())
	}
}

// selectAdapter prefers a discrete GPU, then an integrated one, then
// whatever came first.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

func (c *Context) chooseSurfaceFormat(wantMode gputypes.PresentMode) {
	c.format = gputypes.TextureFormatBGRA8Unorm
	c.presentMode = gputypes.PresentModeFifo
	c.alphaMode = gputypes.CompositeAlphaModeOpaque

	caps := c.adapter.SurfaceCapabilities(c.surface)
	if caps == nil {
		return
	}
	if len(caps.Formats) > 0 {
		c.format = caps.Formats[0]
		for _, f := range caps.Formats {
			if f == gputypes.TextureFormatBGRA8Unorm || f == gputypes.TextureFormatRGBA8Unorm {
				c.format = f
				break
			}
		}
	}
	for _, m := range caps.PresentModes {
		if m == wantMode {
			c.presentMode = m
			break
		}
	}
	if len(caps.AlphaModes) > 0 {
		c.alphaMode = caps.AlphaModes[0]
		for _, a := range caps.AlphaModes {
			if a == gputypes.CompositeAlphaModeOpaque {
				c.alphaMode = a
				break
			}
		}
	}
}

// Resize reconfigures the surface for a new framebuffer size.
// A zero dimension, as reported for minimized windows, is recorded but
// leaves the surface unconfigured until the next non-zero size.
func (c *Context) Resize(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("gpu: invalid surface size %dx%d", width, height)
	}
	w, h := uint32(width), uint32(height)
	if w == c.width && h == c.height {
		return nil
	}
	c.width, c.height = w, h
	if w == 0 || h == 0 {
		return nil
	}
	return c.configure()
}

func (c *Context) configure() error {
	err := c.surface.Configure(c.device, &hal.SurfaceConfiguration{
		Width:       c.width,
		Height:      c.height,
		Format:      c.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: c.presentMode,
		AlphaMode:   c.alphaMode,
	})
	if err != nil {
		return fmt.Errorf("gpu: configure surface %dx%d: %w", c.width, c.height, err)
	}
	slogger().Debug("gpu: surface configured", "width", c.width, "height", c.height)
	return nil
}

// Size returns the configured surface size in pixels.
func (c *Context) Size() (width, height uint32) { return c.width, c.height }

// Format returns the surface texture format.
func (c *Context) Format() gputypes.TextureFormat { return c.format }

// PresentMode returns the negotiated presentation mode.
func (c *Context) PresentMode() gputypes.PresentMode { return c.presentMode }

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// AdapterInfo describes the selected adapter.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	t := gpucontext.AdapterTypeUnknown
	switch c.info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		t = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		t = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		t = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: t}
}

// Frames returns the number of frames submitted so far.
func (c *Context) Frames() uint64 { return c.frames }

// ready reports whether device and queue are available.
func (c *Context) ready() bool {
	return c != nil && c.device != nil && c.queue != nil
}

// CreateBuffer creates a buffer of len(data) bytes, or size bytes when data
// is nil, and uploads data if present.
func (c *Context) CreateBuffer(label string, size uint64, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	if data != nil {
		size = uint64(len(data))
		usage |= gputypes.BufferUsageCopyDst
	}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s: %w", label, err)
	}
	if data != nil {
		if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
			c.device.DestroyBuffer(buf)
			return nil, fmt.Errorf("gpu: upload %s: %w", label, err)
		}
	}
	return buf, nil
}

// WriteBuffer enqueues a write of data into buf at offset.
func (c *Context) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	if err := c.queue.WriteBuffer(buf, offset, data); err != nil {
		return fmt.Errorf("gpu: write buffer: %w", err)
	}
	return nil
}

// CreateBindGroup creates a bind group for layout.
func (c *Context) CreateBindGroup(label string, layout hal.BindGroupLayout, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	g, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group %s: %w", label, err)
	}
	return g, nil
}

// Destroy waits for the GPU to go idle and releases everything the
// context owns. It is safe to call more than once.
func (c *Context) Destroy() {
	if c.device != nil {
		if err := c.device.WaitIdle(); err != nil && !errors.Is(err, hal.ErrDeviceLost) {
			slogger().Warn("gpu: wait idle on destroy", "error", err)
		}
		c.retired.flush(c.device)
		if c.surface != nil {
			c.surface.Unconfigure(c.device)
		}
		c.device.Destroy()
		c.device = nil
		c.queue = nil
	}
	if c.surface != nil {
		c.surface.Destroy()
		c.surface = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}
