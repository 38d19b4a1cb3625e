package emulator

import (
	"encoding/binary"
)

// Guest memory as seen by the command processor. Addresses are guest GPU
// addresses; translating them to host memory is the implementation's concern
type Memory interface {
	Read32(addr uint64) uint32
	Write32(addr uint64, val uint32)
}

// A contiguous block of guest memory mapped at a fixed guest address.
// Implements Memory
type GuestMemory struct {
	Range Range  // Guest addresses covered by Data
	Data  []byte // Host backing store
}

// Maps `size` bytes of zeroed host memory at guest address `base`
func NewGuestMemory(base, size uint64) (*GuestMemory, error) {
	data, err := allocGuestMemory(size)
	if err != nil {
		return nil, err
	}
	mem := &GuestMemory{
		Range: NewRange(base, size),
		Data:  data,
	}
	return mem, nil
}

// Releases the host backing store
func (mem *GuestMemory) Close() error {
	if mem.Data == nil {
		return nil
	}
	err := freeGuestMemory(mem.Data)
	mem.Data = nil
	return err
}

// Returns the host bytes backing `size` bytes at `addr`. Panics if the range
// is not mapped
func (mem *GuestMemory) slice(addr uint64, size uint64) []byte {
	if !mem.Range.Contains(addr, size) {
		panicFmt("memory: unmapped access of %d bytes at 0x%x", size, addr)
	}
	offset := mem.Range.Offset(addr)
	return mem.Data[offset : offset+size]
}

// Load a 32 bit little endian word at `addr`
func (mem *GuestMemory) Read32(addr uint64) uint32 {
	return binary.LittleEndian.Uint32(mem.slice(addr, 4))
}

// Store a 32 bit little endian word `val` into `addr`
func (mem *GuestMemory) Write32(addr uint64, val uint32) {
	binary.LittleEndian.PutUint32(mem.slice(addr, 4), val)
}

// Load a 64 bit little endian value at `addr`
func (mem *GuestMemory) Read64(addr uint64) uint64 {
	return binary.LittleEndian.Uint64(mem.slice(addr, 8))
}

// Store a 64 bit little endian value `val` into `addr`
func (mem *GuestMemory) Write64(addr uint64, val uint64) {
	binary.LittleEndian.PutUint64(mem.slice(addr, 8), val)
}

// Stores consecutive words starting at `addr`
func writeWords(mem Memory, addr uint64, words []uint32) {
	for i, w := range words {
		mem.Write32(addr+uint64(i)*4, w)
	}
}

// Stores a 64 bit value as two little endian words
func write64(mem Memory, addr uint64, val uint64) {
	mem.Write32(addr, uint32(val))
	mem.Write32(addr+4, uint32(val>>32))
}
