package emulator

import "fmt"

// Packet type held in bits [31:30] of every header
type PacketType uint32

const (
	PACKET_TYPE_0 PacketType = 0 // Register writes (not emulated)
	PACKET_TYPE_1 PacketType = 1 // Reserved
	PACKET_TYPE_2 PacketType = 2 // Filler (not emulated)
	PACKET_TYPE_3 PacketType = 3 // Opcode packets
)

// First word of every packet
type Header uint32

// Returns the packet type
func (h Header) Type() PacketType {
	return PacketType(bitField(uint32(h), 30, 2))
}

// Returns the type 3 opcode (bits [15:8])
func (h Header) Opcode() Opcode {
	return Opcode(bitField(uint32(h), 8, 8))
}

// Returns the raw count field (bits [29:16]). The hardware stores the number
// of payload words minus one
func (h Header) CountField() uint32 {
	return bitField(uint32(h), 16, 14)
}

// Returns the number of payload words that follow the header
func (h Header) NumWords() uint32 {
	return h.CountField() + 1
}

// Returns the size of the whole packet (header and payload) in bytes
func (h Header) SizeBytes() uint32 {
	return 4 * (h.NumWords() + 1)
}

func (h Header) Predicate() bool {
	return bitSet(uint32(h), 0)
}

// Returns true for packets targeting the compute pipe
func (h Header) ShaderType() bool {
	return bitSet(uint32(h), 1)
}

// Builds a type 3 header for a packet with `numWords` payload words
func MakeType3Header(opcode Opcode, numWords uint32) Header {
	if numWords == 0 || numWords > 1<<14 {
		panicFmt("pm4: invalid type 3 payload size %d", numWords)
	}
	return Header(uint32(PACKET_TYPE_3)<<30 | (numWords-1)<<16 | uint32(opcode)<<8)
}

// Type 3 packet opcode
type Opcode uint32

const (
	OPCODE_NOP                       Opcode = 0x10
	OPCODE_SET_BASE                  Opcode = 0x11
	OPCODE_CLEAR_STATE               Opcode = 0x12
	OPCODE_INDEX_BUFFER_SIZE         Opcode = 0x13
	OPCODE_DISPATCH_DIRECT           Opcode = 0x15
	OPCODE_DISPATCH_INDIRECT         Opcode = 0x16
	OPCODE_ATOMIC_GDS                Opcode = 0x1d
	OPCODE_ATOMIC                    Opcode = 0x1e
	OPCODE_OCCLUSION_QUERY           Opcode = 0x1f
	OPCODE_SET_PREDICATION           Opcode = 0x20
	OPCODE_REG_RMW                   Opcode = 0x21
	OPCODE_COND_EXEC                 Opcode = 0x22
	OPCODE_PRED_EXEC                 Opcode = 0x23
	OPCODE_DRAW_INDIRECT             Opcode = 0x24
	OPCODE_DRAW_INDEX_INDIRECT       Opcode = 0x25
	OPCODE_INDEX_BASE                Opcode = 0x26
	OPCODE_DRAW_INDEX_2              Opcode = 0x27
	OPCODE_CONTEXT_CONTROL           Opcode = 0x28
	OPCODE_INDEX_TYPE                Opcode = 0x2a
	OPCODE_DRAW_INDIRECT_MULTI       Opcode = 0x2c
	OPCODE_DRAW_INDEX_AUTO           Opcode = 0x2d
	OPCODE_NUM_INSTANCES             Opcode = 0x2f
	OPCODE_DRAW_INDEX_MULTI_AUTO     Opcode = 0x30
	OPCODE_INDIRECT_BUFFER_CONST     Opcode = 0x33
	OPCODE_STRMOUT_BUFFER_UPDATE     Opcode = 0x34
	OPCODE_DRAW_INDEX_OFFSET_2       Opcode = 0x35
	OPCODE_DRAW_PREAMBLE             Opcode = 0x36
	OPCODE_WRITE_DATA                Opcode = 0x37
	OPCODE_DRAW_INDEX_INDIRECT_MULTI Opcode = 0x38
	OPCODE_MEM_SEMAPHORE             Opcode = 0x39
	OPCODE_COPY_DW                   Opcode = 0x3b
	OPCODE_WAIT_REG_MEM              Opcode = 0x3c
	OPCODE_INDIRECT_BUFFER           Opcode = 0x3f
	OPCODE_COPY_DATA                 Opcode = 0x40
	OPCODE_PFP_SYNC_ME               Opcode = 0x42
	OPCODE_SURFACE_SYNC              Opcode = 0x43
	OPCODE_COND_WRITE                Opcode = 0x45
	OPCODE_EVENT_WRITE               Opcode = 0x46
	OPCODE_EVENT_WRITE_EOP           Opcode = 0x47
	OPCODE_EVENT_WRITE_EOS           Opcode = 0x48
	OPCODE_RELEASE_MEM               Opcode = 0x49
	OPCODE_PREAMBLE_CNTL             Opcode = 0x4a
	OPCODE_DMA_DATA                  Opcode = 0x50
	OPCODE_CONTEXT_REG_RMW           Opcode = 0x51
	OPCODE_ACQUIRE_MEM               Opcode = 0x58
	OPCODE_REWIND                    Opcode = 0x59
	OPCODE_LOAD_SH_REG               Opcode = 0x5f
	OPCODE_LOAD_CONFIG_REG           Opcode = 0x60
	OPCODE_LOAD_CONTEXT_REG          Opcode = 0x61
	OPCODE_SET_CONFIG_REG            Opcode = 0x68
	OPCODE_SET_CONTEXT_REG           Opcode = 0x69
	OPCODE_SET_CONTEXT_REG_INDIRECT  Opcode = 0x73
	OPCODE_SET_SH_REG                Opcode = 0x76
	OPCODE_SET_SH_REG_OFFSET         Opcode = 0x77
	OPCODE_SET_QUEUE_REG             Opcode = 0x78
	OPCODE_SET_UCONFIG_REG           Opcode = 0x79
	OPCODE_LOAD_CONST_RAM            Opcode = 0x80
	OPCODE_WRITE_CONST_RAM           Opcode = 0x81
	OPCODE_DUMP_CONST_RAM            Opcode = 0x83
	OPCODE_INCREMENT_CE_COUNTER      Opcode = 0x84
	OPCODE_INCREMENT_DE_COUNTER      Opcode = 0x85
	OPCODE_WAIT_ON_CE_COUNTER        Opcode = 0x86
	OPCODE_WAIT_ON_DE_COUNTER_DIFF   Opcode = 0x88
)

var opcodeNames = map[Opcode]string{
	OPCODE_NOP:                       "NOP",
	OPCODE_SET_BASE:                  "SET_BASE",
	OPCODE_CLEAR_STATE:               "CLEAR_STATE",
	OPCODE_INDEX_BUFFER_SIZE:         "INDEX_BUFFER_SIZE",
	OPCODE_DISPATCH_DIRECT:           "DISPATCH_DIRECT",
	OPCODE_DISPATCH_INDIRECT:         "DISPATCH_INDIRECT",
	OPCODE_ATOMIC_GDS:                "ATOMIC_GDS",
	OPCODE_ATOMIC:                    "ATOMIC",
	OPCODE_OCCLUSION_QUERY:           "OCCLUSION_QUERY",
	OPCODE_SET_PREDICATION:           "SET_PREDICATION",
	OPCODE_REG_RMW:                   "REG_RMW",
	OPCODE_COND_EXEC:                 "COND_EXEC",
	OPCODE_PRED_EXEC:                 "PRED_EXEC",
	OPCODE_DRAW_INDIRECT:             "DRAW_INDIRECT",
	OPCODE_DRAW_INDEX_INDIRECT:       "DRAW_INDEX_INDIRECT",
	OPCODE_INDEX_BASE:                "INDEX_BASE",
	OPCODE_DRAW_INDEX_2:              "DRAW_INDEX_2",
	OPCODE_CONTEXT_CONTROL:           "CONTEXT_CONTROL",
	OPCODE_INDEX_TYPE:                "INDEX_TYPE",
	OPCODE_DRAW_INDIRECT_MULTI:       "DRAW_INDIRECT_MULTI",
	OPCODE_DRAW_INDEX_AUTO:           "DRAW_INDEX_AUTO",
	OPCODE_NUM_INSTANCES:             "NUM_INSTANCES",
	OPCODE_DRAW_INDEX_MULTI_AUTO:     "DRAW_INDEX_MULTI_AUTO",
	OPCODE_INDIRECT_BUFFER_CONST:     "INDIRECT_BUFFER_CONST",
	OPCODE_STRMOUT_BUFFER_UPDATE:     "STRMOUT_BUFFER_UPDATE",
	OPCODE_DRAW_INDEX_OFFSET_2:       "DRAW_INDEX_OFFSET_2",
	OPCODE_DRAW_PREAMBLE:             "DRAW_PREAMBLE",
	OPCODE_WRITE_DATA:                "WRITE_DATA",
	OPCODE_DRAW_INDEX_INDIRECT_MULTI: "DRAW_INDEX_INDIRECT_MULTI",
	OPCODE_MEM_SEMAPHORE:             "MEM_SEMAPHORE",
	OPCODE_COPY_DW:                   "COPY_DW",
	OPCODE_WAIT_REG_MEM:              "WAIT_REG_MEM",
	OPCODE_INDIRECT_BUFFER:           "INDIRECT_BUFFER",
	OPCODE_COPY_DATA:                 "COPY_DATA",
	OPCODE_PFP_SYNC_ME:               "PFP_SYNC_ME",
	OPCODE_SURFACE_SYNC:              "SURFACE_SYNC",
	OPCODE_COND_WRITE:                "COND_WRITE",
	OPCODE_EVENT_WRITE:               "EVENT_WRITE",
	OPCODE_EVENT_WRITE_EOP:           "EVENT_WRITE_EOP",
	OPCODE_EVENT_WRITE_EOS:           "EVENT_WRITE_EOS",
	OPCODE_RELEASE_MEM:               "RELEASE_MEM",
	OPCODE_PREAMBLE_CNTL:             "PREAMBLE_CNTL",
	OPCODE_DMA_DATA:                  "DMA_DATA",
	OPCODE_CONTEXT_REG_RMW:           "CONTEXT_REG_RMW",
	OPCODE_ACQUIRE_MEM:               "ACQUIRE_MEM",
	OPCODE_REWIND:                    "REWIND",
	OPCODE_LOAD_SH_REG:               "LOAD_SH_REG",
	OPCODE_LOAD_CONFIG_REG:           "LOAD_CONFIG_REG",
	OPCODE_LOAD_CONTEXT_REG:          "LOAD_CONTEXT_REG",
	OPCODE_SET_CONFIG_REG:            "SET_CONFIG_REG",
	OPCODE_SET_CONTEXT_REG:           "SET_CONTEXT_REG",
	OPCODE_SET_CONTEXT_REG_INDIRECT:  "SET_CONTEXT_REG_INDIRECT",
	OPCODE_SET_SH_REG:                "SET_SH_REG",
	OPCODE_SET_SH_REG_OFFSET:         "SET_SH_REG_OFFSET",
	OPCODE_SET_QUEUE_REG:             "SET_QUEUE_REG",
	OPCODE_SET_UCONFIG_REG:           "SET_UCONFIG_REG",
	OPCODE_LOAD_CONST_RAM:            "LOAD_CONST_RAM",
	OPCODE_WRITE_CONST_RAM:           "WRITE_CONST_RAM",
	OPCODE_DUMP_CONST_RAM:            "DUMP_CONST_RAM",
	OPCODE_INCREMENT_CE_COUNTER:      "INCREMENT_CE_COUNTER",
	OPCODE_INCREMENT_DE_COUNTER:      "INCREMENT_DE_COUNTER",
	OPCODE_WAIT_ON_CE_COUNTER:        "WAIT_ON_CE_COUNTER",
	OPCODE_WAIT_ON_DE_COUNTER_DIFF:   "WAIT_ON_DE_COUNTER_DIFF",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint32(op))
}

// A single decoded packet. Payload is a view into the command buffer and is
// only valid while the buffer is being processed
type Packet struct {
	Offset  uint32   // Word offset of the header in the command buffer
	Header  Header   // Packet header
	Payload []uint32 // Words following the header
}

// Calls `fn` for every packet in `words`, in stream order. Stops at the
// first error returned by `fn` or at the first framing violation
func Walk(words []uint32, fn func(pkt Packet) error) error {
	total := uint32(len(words))
	var pos uint32

	for pos < total {
		header := Header(words[pos])

		if header.Type() != PACKET_TYPE_3 {
			return &ProtocolError{Offset: pos, Header: header, Err: ErrInvalidPacketType}
		}

		next := uint64(pos) + uint64(header.NumWords()) + 1
		if next > uint64(total) {
			return &ProtocolError{Offset: pos, Header: header, Err: ErrPacketOverrun}
		}

		pkt := Packet{
			Offset:  pos,
			Header:  header,
			Payload: words[pos+1 : next],
		}
		if err := fn(pkt); err != nil {
			return err
		}

		pos = uint32(next)
	}
	return nil
}
