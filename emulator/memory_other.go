//go:build !unix

package emulator

import "fmt"

func allocGuestMemory(size uint64) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("memory: zero sized mapping")
	}
	return make([]byte, size), nil
}

func freeGuestMemory(data []byte) error {
	return nil
}
