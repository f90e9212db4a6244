//go:build !windows && !(linux && !wayland)

package platform

// NativeHandles reports ErrUnsupportedPlatform.
func (w *Window) NativeHandles() (display, window uintptr, err error) {
	return 0, 0, ErrUnsupportedPlatform
}
