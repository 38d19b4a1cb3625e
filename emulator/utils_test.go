package emulator

import (
	"testing"
)

func TestBitField(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	assert(bitField(0xc0000000, 30, 2) == 3)
	assert(bitField(0x00003f00, 8, 8) == 0x3f)
	assert(bitField(0x3fff0000, 16, 14) == 0x3fff)
	assert(bitField(0xffffffff, 0, 3) == 7)
	assert(bitField(0x00000010, 4, 1) == 1)
	assert(bitField(0x00000000, 31, 1) == 0)
}

func TestBitSet(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	assert(bitSet(0x10000, 16))
	assert(!bitSet(0x10000, 15))
	assert(bitSet(0x80000000, 31))
}

func TestMakeAddress(t *testing.T) {
	assert := func(v bool) {
		if !v {
			t.Error("assert failed")
		}
	}

	assert(makeAddress(0xdeadbeef, 0) == 0xdeadbeef)
	assert(makeAddress(0, 1) == 0x100000000)
	assert(makeAddress(0x1000, 0xff) == 0xff00001000)
}
