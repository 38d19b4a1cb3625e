//go:build unix

package emulator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Guest memory is backed by an anonymous private mapping so that large,
// sparsely used apertures only cost the pages that are touched
func allocGuestMemory(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("memory: zero sized mapping")
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("memory: mmap %d bytes: %w", size, err)
	}
	return data, nil
}

func freeGuestMemory(data []byte) error {
	return unix.Munmap(data)
}
