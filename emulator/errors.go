package emulator

import (
	"errors"
	"fmt"
)

// Protocol violations. All of them are fatal for the command processor: the
// stream is either malformed or uses a feature that is not emulated, and
// carrying on would leave the device state silently wrong
var (
	ErrEmptyCommandBuffer     = errors.New("empty command buffer")
	ErrInvalidPacketType      = errors.New("invalid packet type")
	ErrUnknownOpcode          = errors.New("unknown type 3 opcode")
	ErrPacketOverrun          = errors.New("packet overruns command buffer")
	ErrShortPacket            = errors.New("packet payload too short")
	ErrRegisterRange          = errors.New("register write out of range")
	ErrUnsupportedDestination = errors.New("unsupported destination select")
	ErrUnsupportedAddressing  = errors.New("unsupported addressing mode")
	ErrUnsupportedEngine      = errors.New("unsupported engine select")
	ErrUnsupportedCompare     = errors.New("unsupported compare function")
)

// Returned by Submit once the processor has been shut down
var ErrClosed = errors.New("command processor closed")

var fatalErrors = []error{
	ErrEmptyCommandBuffer,
	ErrInvalidPacketType,
	ErrUnknownOpcode,
	ErrPacketOverrun,
	ErrShortPacket,
	ErrRegisterRange,
	ErrUnsupportedDestination,
	ErrUnsupportedAddressing,
	ErrUnsupportedEngine,
	ErrUnsupportedCompare,
}

// Locates a protocol violation inside a command buffer
type ProtocolError struct {
	Offset uint32 // Word offset of the packet header in the buffer
	Header Header // Raw header of the offending packet
	Err    error  // One of the Err* protocol violations
}

func (e *ProtocolError) Error() string {
	if e.Header.Type() == PACKET_TYPE_3 {
		return fmt.Sprintf(
			"cp: %v (opcode %s, count %d) at word %d",
			e.Err, e.Header.Opcode(), e.Header.NumWords(), e.Offset,
		)
	}
	return fmt.Sprintf("cp: %v (type %d) at word %d", e.Err, e.Header.Type(), e.Offset)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Returns true if `err` is one of the protocol violations that must stop the
// command processor
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, fatal := range fatalErrors {
		if errors.Is(err, fatal) {
			return true
		}
	}
	return false
}
