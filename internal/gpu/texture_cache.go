//go:build !nogpu

package gpu

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/djinn-engine/djinn/internal/image"
)

// Texture is a sampled RGBA8 texture owned by a TextureCache.
type Texture struct {
	Name   string
	Path   string
	Width  uint32
	Height uint32

	texture hal.Texture
	view    hal.TextureView
}

// View returns the texture view bound by sprite draws.
func (t *Texture) View() hal.TextureView { return t.view }

// AspectScale returns the scale that keeps the texture undistorted on a
// unit quad: the longer side maps to 1.
func (t *Texture) AspectScale() [2]float32 { return aspectScale(t.Width, t.Height) }

// TextureCache maps names to GPU textures.
//
// Textures stay alive until they are replaced, removed, or the cache is
// destroyed. Replaced textures are released once every frame that may
// still sample them has completed.
type TextureCache struct {
	mu        sync.RWMutex
	gpu       *Context
	root      string
	textures  map[string]*Texture
	destroyed bool
}

// NewTextureCache creates an empty cache uploading through c.
func NewTextureCache(c *Context) *TextureCache {
	return &TextureCache{
		gpu:      c,
		textures: make(map[string]*Texture),
	}
}

// SetAssetRoot sets the directory relative paths are resolved against.
func (tc *TextureCache) SetAssetRoot(root string) {
	tc.mu.Lock()
	tc.root = root
	tc.mu.Unlock()
}

// AssetRoot returns the current asset root.
func (tc *TextureCache) AssetRoot() string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.root
}

// ResolvePath joins a relative path with the asset root. Absolute paths
// are returned cleaned but otherwise unchanged.
func (tc *TextureCache) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(tc.AssetRoot(), path)
}

// Load decodes the image at path and stores it under name.
func (tc *TextureCache) Load(name, path string) error {
	full := tc.ResolvePath(path)
	px, err := image.Load(full)
	if err != nil {
		return fmt.Errorf("gpu: load texture %q from %s: %w", name, full, err)
	}
	if err := tc.upload(name, full, px); err != nil {
		return err
	}
	slogger().Info("gpu: texture loaded", "name", name, "path", full, "width", px.Width, "height", px.Height)
	return nil
}

// LoadImage uploads already decoded pixels under name.
func (tc *TextureCache) LoadImage(name string, px *image.Pixels) error {
	return tc.upload(name, "", px)
}

func (tc *TextureCache) upload(name, path string, px *image.Pixels) error {
	if px == nil || px.Width <= 0 || px.Height <= 0 {
		return fmt.Errorf("%w: %q", ErrEmptyTexture, name)
	}
	if !tc.gpu.ready() {
		return ErrNotInitialized
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.destroyed {
		return ErrCacheDestroyed
	}

	tex, err := tc.createTexture(name, px)
	if err != nil {
		return err
	}
	tex.Path = path

	if old, ok := tc.textures[name]; ok {
		slogger().Debug("gpu: replacing texture", "name", name)
		tc.gpu.retireAfterSubmitted(&frameResources{
			views:    []hal.TextureView{old.view},
			textures: []hal.Texture{old.texture},
		})
	}
	tc.textures[name] = tex
	return nil
}

func (tc *TextureCache) createTexture(name string, px *image.Pixels) (*Texture, error) {
	device, queue := tc.gpu.device, tc.gpu.queue
	w, h := uint32(px.Width), uint32(px.Height) //nolint:gosec // checked positive above

	texture, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "sprite_" + name,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture %q: %w", name, err)
	}

	err = queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Aspect:   gputypes.TextureAspectAll,
		},
		px.Data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(px.BytesPerRow()), //nolint:gosec // width fits uint32
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		device.DestroyTexture(texture)
		return nil, fmt.Errorf("gpu: upload texture %q: %w", name, err)
	}

	view, err := device.CreateTextureView(texture, &hal.TextureViewDescriptor{
		Label:         "sprite_" + name + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(texture)
		return nil, fmt.Errorf("gpu: create texture view %q: %w", name, err)
	}

	return &Texture{Name: name, Width: w, Height: h, texture: texture, view: view}, nil
}

// Resolve returns the texture stored under name.
func (tc *TextureCache) Resolve(name string) (*Texture, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	t, ok := tc.textures[name]
	return t, ok
}

// Names returns the stored texture names in sorted order.
func (tc *TextureCache) Names() []string {
	tc.mu.RLock()
	names := make([]string, 0, len(tc.textures))
	for n := range tc.textures {
		names = append(names, n)
	}
	tc.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Len returns the number of stored textures.
func (tc *TextureCache) Len() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.textures)
}

// Remove releases the texture stored under name.
func (tc *TextureCache) Remove(name string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	t, ok := tc.textures[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTextureNotFound, name)
	}
	delete(tc.textures, name)
	tc.gpu.retireAfterSubmitted(&frameResources{
		views:    []hal.TextureView{t.view},
		textures: []hal.Texture{t.texture},
	})
	return nil
}

// Destroy waits for the device to go idle and releases every texture.
// It is safe to call more than once.
func (tc *TextureCache) Destroy() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.destroyed {
		return
	}
	tc.destroyed = true
	if device := tc.gpu.Device(); device != nil {
		if err := device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle before releasing textures", "error", err)
		}
		for _, t := range tc.textures {
			device.DestroyTextureView(t.view)
			device.DestroyTexture(t.texture)
		}
	}
	tc.textures = nil
}
