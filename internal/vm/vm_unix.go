//go:build unix

package vm

import (
	"golang.org/x/sys/unix"
)

// reserve maps an inaccessible anonymous range; no physical pages back it yet.
func reserve(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func commit(b []byte) error {
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
}

// decommit drops the physical pages, then revokes access so stray writes fault.
func decommit(b []byte) error {
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(b, unix.PROT_NONE)
}

func release(b []byte) error {
	return unix.Munmap(b)
}
