package emulator

import (
	"fmt"
)

// Formatted panic()
func panicFmt(format string, a ...interface{}) {
	panic(fmt.Sprintf(format, a...))
}

// Extracts `width` bits of `val` starting at bit `shift`
func bitField(val uint32, shift, width uint) uint32 {
	return (val >> shift) & (1<<width - 1)
}

// Returns true if bit `bit` of `val` is set
func bitSet(val uint32, bit uint) bool {
	return (val>>bit)&1 != 0
}

// Joins the two halves of a 64 bit guest address
func makeAddress(lo, hi uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}
