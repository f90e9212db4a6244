//go:build !nogpu

package gpu

import "errors"

// Graphics errors.
var (
	// ErrNotInitialized is returned when drawing without a device and queue.
	// It is a configuration error, not a per-frame condition.
	ErrNotInitialized = errors.New("gpu: graphics context not initialized")

	// ErrNoBackend is returned when no registered HAL backend can be used.
	ErrNoBackend = errors.New("gpu: no usable graphics backend")

	// ErrNoAdapter is returned when the backend exposes no adapter.
	ErrNoAdapter = errors.New("gpu: no GPU adapter found")

	// ErrAcquireTimeout is returned when device acquisition does not finish
	// before the deadline.
	ErrAcquireTimeout = errors.New("gpu: device acquisition timed out")

	// ErrTextureNotFound is returned for names the texture cache does not hold.
	ErrTextureNotFound = errors.New("gpu: texture not found")

	// ErrEmptyTexture is returned when uploading an image with no pixels.
	ErrEmptyTexture = errors.New("gpu: texture has zero size")

	// ErrCacheDestroyed is returned when loading into a destroyed cache.
	ErrCacheDestroyed = errors.New("gpu: texture cache destroyed")

	// ErrFrameSkipped is returned by BeginFrame when there is nothing to
	// present into, for example while the window is minimized.
	ErrFrameSkipped = errors.New("gpu: frame skipped")

	// ErrInvalidShader is returned when the sprite shader fails validation.
	ErrInvalidShader = errors.New("gpu: invalid shader")
)
