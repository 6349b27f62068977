//go:build windows

package vm

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func reserve(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func commit(b []byte) error {
	_, err := windows.VirtualAlloc(addrOf(b), uintptr(len(b)), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

func decommit(b []byte) error {
	return windows.VirtualFree(addrOf(b), uintptr(len(b)), windows.MEM_DECOMMIT)
}

func release(b []byte) error {
	return windows.VirtualFree(addrOf(b), 0, windows.MEM_RELEASE)
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
