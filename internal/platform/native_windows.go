//go:build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// NativeHandles returns the module instance and HWND for surface creation.
func (w *Window) NativeHandles() (display, window uintptr, err error) {
	var module windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
		return 0, 0, fmt.Errorf("platform: module handle: %w", err)
	}
	return uintptr(module), uintptr(unsafe.Pointer(w.win.GetWin32Window())), nil
}
