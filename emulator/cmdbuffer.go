package emulator

import (
	"encoding/binary"
	"fmt"
)

// A command buffer submitted to the processor. Words is a view into memory
// owned by the producer; the processor reads it during one processing cycle
// and never keeps it afterwards
type CommandBuffer struct {
	ID    uint64   // Submission sequence number, starting at 1
	Words []uint32 // Packet stream
}

// Returns the size of the buffer in bytes
func (cmdbuf CommandBuffer) SizeBytes() uint32 {
	return uint32(len(cmdbuf.Words)) * 4
}

func (cmdbuf CommandBuffer) IsEmpty() bool {
	return len(cmdbuf.Words) == 0
}

// Converts a little endian byte stream into command words
func WordsFromBytes(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cmdbuffer: %d bytes is not a whole number of words", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words, nil
}

// Converts command words into a little endian byte stream
func BytesFromWords(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}
