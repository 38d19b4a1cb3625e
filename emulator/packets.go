package emulator

import "fmt"

// Returns ErrShortPacket if the payload holds fewer than `n` words
func (pkt Packet) need(n int) error {
	if len(pkt.Payload) < n {
		return fmt.Errorf(
			"%w: %s needs %d words, got %d",
			ErrShortPacket, pkt.Header.Opcode(), n, len(pkt.Payload),
		)
	}
	return nil
}

// NOP payload markers. The command processor does not drive display flips on
// real hardware, but the guest driver patches flip requests into NOPs so they
// are recognized here
const (
	PAYLOAD_DEBUG_MARKER_PUSH uint32 = 0x68750001
	PAYLOAD_DEBUG_MARKER_POP  uint32 = 0x68750002
	PAYLOAD_PATCHED_FLIP      uint32 = 0x68750776
	PAYLOAD_PREPARE_FLIP      uint32 = 0x68750777
)

// SET_CONTEXT_REG, SET_SH_REG and SET_UCONFIG_REG
type SetData struct {
	RegOffset uint32   // Register offset inside the window
	Index     uint32   // Register index mode (bits [31:28])
	Data      []uint32 // Values for consecutive registers
}

func DecodeSetData(pkt Packet) (SetData, error) {
	if err := pkt.need(1); err != nil {
		return SetData{}, err
	}
	return SetData{
		RegOffset: bitField(pkt.Payload[0], 0, 16),
		Index:     bitField(pkt.Payload[0], 28, 4),
		Data:      pkt.Payload[1:],
	}, nil
}

// INDEX_TYPE
type IndexTypePacket struct {
	Raw uint32
}

func DecodeIndexType(pkt Packet) (IndexTypePacket, error) {
	if err := pkt.need(1); err != nil {
		return IndexTypePacket{}, err
	}
	return IndexTypePacket{Raw: pkt.Payload[0]}, nil
}

// DRAW_INDEX_2
type DrawIndex2 struct {
	MaxSize       uint32 // Maximum number of indices in the buffer
	IndexBaseLo   uint32
	IndexBaseHi   uint32
	IndexCount    uint32
	DrawInitiator uint32
}

func DecodeDrawIndex2(pkt Packet) (DrawIndex2, error) {
	if err := pkt.need(5); err != nil {
		return DrawIndex2{}, err
	}
	p := pkt.Payload
	return DrawIndex2{
		MaxSize:       p[0],
		IndexBaseLo:   p[1],
		IndexBaseHi:   p[2],
		IndexCount:    p[3],
		DrawInitiator: p[4],
	}, nil
}

// DRAW_INDEX_AUTO
type DrawIndexAuto struct {
	IndexCount    uint32
	DrawInitiator uint32
}

func DecodeDrawIndexAuto(pkt Packet) (DrawIndexAuto, error) {
	if err := pkt.need(2); err != nil {
		return DrawIndexAuto{}, err
	}
	return DrawIndexAuto{IndexCount: pkt.Payload[0], DrawInitiator: pkt.Payload[1]}, nil
}

// DISPATCH_DIRECT
type DispatchDirect struct {
	DimX, DimY, DimZ  uint32 // Thread group counts
	DispatchInitiator uint32
}

func DecodeDispatchDirect(pkt Packet) (DispatchDirect, error) {
	if err := pkt.need(4); err != nil {
		return DispatchDirect{}, err
	}
	p := pkt.Payload
	return DispatchDirect{DimX: p[0], DimY: p[1], DimZ: p[2], DispatchInitiator: p[3]}, nil
}

// EVENT_WRITE_EOS commands (bits [31:29] of the third payload word)
type EosCommand uint32

const (
	EOS_COMMAND_GDS_STORE    EosCommand = 1
	EOS_COMMAND_SIGNAL_FENCE EosCommand = 2
)

// EVENT_WRITE_EOS
type EventWriteEos struct {
	EventType  uint32
	EventIndex uint32
	AddressLo  uint32
	AddressHi  uint32
	Command    EosCommand
	Data       uint32
}

func DecodeEventWriteEos(pkt Packet) (EventWriteEos, error) {
	if err := pkt.need(4); err != nil {
		return EventWriteEos{}, err
	}
	p := pkt.Payload
	return EventWriteEos{
		EventType:  bitField(p[0], 0, 6),
		EventIndex: bitField(p[0], 8, 4),
		AddressLo:  p[1],
		AddressHi:  bitField(p[2], 0, 16),
		Command:    EosCommand(bitField(p[2], 29, 3)),
		Data:       p[3],
	}, nil
}

// Returns the fence description carried by the packet
func (eos EventWriteEos) Fence() FenceEvent {
	return FenceEvent{
		Kind:       FENCE_END_OF_SHADER,
		EventType:  eos.EventType,
		EventIndex: eos.EventIndex,
		Address:    makeAddress(eos.AddressLo, eos.AddressHi),
		EosCommand: eos.Command,
		Data:       uint64(eos.Data),
	}
}

// EVENT_WRITE_EOP data select (bits [31:29] of the third payload word)
type DataSelect uint32

const (
	DATA_SELECT_NONE         DataSelect = 0
	DATA_SELECT_DATA32_LOW   DataSelect = 1
	DATA_SELECT_DATA64       DataSelect = 2
	DATA_SELECT_GPU_CLOCK64  DataSelect = 3
	DATA_SELECT_PERF_COUNTER DataSelect = 4
)

// EVENT_WRITE_EOP interrupt select (bits [25:24] of the third payload word)
type InterruptSelect uint32

const (
	INTERRUPT_SELECT_NONE               InterruptSelect = 0
	INTERRUPT_SELECT_IRQ_ONLY           InterruptSelect = 1
	INTERRUPT_SELECT_IRQ_WHEN_CONFIRMED InterruptSelect = 2
	INTERRUPT_SELECT_UNDOCUMENTED       InterruptSelect = 3
)

// EVENT_WRITE_EOP
type EventWriteEop struct {
	EventType  uint32
	EventIndex uint32
	AddressLo  uint32
	AddressHi  uint32
	IntSel     InterruptSelect
	DataSel    DataSelect
	DataLo     uint32
	DataHi     uint32
}

func DecodeEventWriteEop(pkt Packet) (EventWriteEop, error) {
	if err := pkt.need(5); err != nil {
		return EventWriteEop{}, err
	}
	p := pkt.Payload
	return EventWriteEop{
		EventType:  bitField(p[0], 0, 6),
		EventIndex: bitField(p[0], 8, 4),
		AddressLo:  p[1],
		AddressHi:  bitField(p[2], 0, 16),
		IntSel:     InterruptSelect(bitField(p[2], 24, 2)),
		DataSel:    DataSelect(bitField(p[2], 29, 3)),
		DataLo:     p[3],
		DataHi:     p[4],
	}, nil
}

// Returns the fence description carried by the packet
func (eop EventWriteEop) Fence() FenceEvent {
	return FenceEvent{
		Kind:       FENCE_END_OF_PIPE,
		EventType:  eop.EventType,
		EventIndex: eop.EventIndex,
		Address:    makeAddress(eop.AddressLo, eop.AddressHi),
		DataSel:    eop.DataSel,
		IntSel:     eop.IntSel,
		Data:       makeAddress(eop.DataLo, eop.DataHi),
	}
}

// DMA_DATA
type DmaData struct {
	SrcSel    uint32 // Source select (bits [30:29] of the control word)
	DstSel    uint32 // Destination select (bits [21:20] of the control word)
	SrcAddr   uint64
	DstAddr   uint64
	ByteCount uint32 // Transfer size (bits [20:0] of the command word)
}

func DecodeDmaData(pkt Packet) (DmaData, error) {
	if err := pkt.need(6); err != nil {
		return DmaData{}, err
	}
	p := pkt.Payload
	return DmaData{
		SrcSel:    bitField(p[0], 29, 2),
		DstSel:    bitField(p[0], 20, 2),
		SrcAddr:   makeAddress(p[1], p[2]),
		DstAddr:   makeAddress(p[3], p[4]),
		ByteCount: bitField(p[5], 0, 21),
	}, nil
}

// WRITE_DATA destinations that land in guest memory
const (
	WRITE_DATA_DST_MEMORY_SYNC  uint32 = 2
	WRITE_DATA_DST_MEMORY_ASYNC uint32 = 5
)

// WRITE_DATA
type WriteData struct {
	DstSel    uint32 // Destination select (bits [11:8])
	WrOneAddr bool   // Write every word to the same address (bit 16)
	WrConfirm bool   // Wait for write confirmation (bit 20)
	EngineSel uint32 // Engine select (bits [31:30])
	DstAddr   uint64
	Data      []uint32
}

func DecodeWriteData(pkt Packet) (WriteData, error) {
	if err := pkt.need(3); err != nil {
		return WriteData{}, err
	}
	p := pkt.Payload
	return WriteData{
		DstSel:    bitField(p[0], 8, 4),
		WrOneAddr: bitSet(p[0], 16),
		WrConfirm: bitSet(p[0], 20),
		EngineSel: bitField(p[0], 30, 2),
		DstAddr:   makeAddress(p[1], p[2]),
		Data:      p[3:],
	}, nil
}

// ACQUIRE_MEM
type AcquireMem struct {
	CoherCntl    uint32
	CoherSize    uint64
	CoherBase    uint64
	PollInterval uint32
}

func DecodeAcquireMem(pkt Packet) (AcquireMem, error) {
	if err := pkt.need(6); err != nil {
		return AcquireMem{}, err
	}
	p := pkt.Payload
	return AcquireMem{
		CoherCntl:    p[0],
		CoherSize:    makeAddress(p[1], bitField(p[2], 0, 8)),
		CoherBase:    makeAddress(p[3], bitField(p[4], 0, 24)),
		PollInterval: bitField(p[5], 0, 16),
	}, nil
}

// WAIT_REG_MEM compare function (bits [2:0])
type CompareFunction uint32

const (
	COMPARE_ALWAYS        CompareFunction = 0
	COMPARE_LESS          CompareFunction = 1
	COMPARE_LESS_EQUAL    CompareFunction = 2
	COMPARE_EQUAL         CompareFunction = 3
	COMPARE_NOT_EQUAL     CompareFunction = 4
	COMPARE_GREATER_EQUAL CompareFunction = 5
	COMPARE_GREATER       CompareFunction = 6
	COMPARE_RESERVED      CompareFunction = 7
)

// WAIT_REG_MEM memory space (bit 4)
type MemSpace uint32

const (
	MEM_SPACE_REGISTER MemSpace = 0
	MEM_SPACE_MEMORY   MemSpace = 1
)

// WAIT_REG_MEM engine (bit 8)
type Engine uint32

const (
	ENGINE_ME  Engine = 0 // Micro engine
	ENGINE_PFP Engine = 1 // Prefetch parser
)

// WAIT_REG_MEM
type WaitRegMem struct {
	Function     CompareFunction
	MemSpace     MemSpace
	Engine       Engine
	PollAddrLo   uint32
	PollAddrHi   uint32
	Reference    uint32
	Mask         uint32
	PollInterval uint32
}

func DecodeWaitRegMem(pkt Packet) (WaitRegMem, error) {
	if err := pkt.need(6); err != nil {
		return WaitRegMem{}, err
	}
	p := pkt.Payload
	return WaitRegMem{
		Function:     CompareFunction(bitField(p[0], 0, 3)),
		MemSpace:     MemSpace(bitField(p[0], 4, 1)),
		Engine:       Engine(bitField(p[0], 8, 1)),
		PollAddrLo:   p[1],
		PollAddrHi:   p[2],
		Reference:    p[3],
		Mask:         p[4],
		PollInterval: bitField(p[5], 0, 16),
	}, nil
}

// Returns the polled guest address
func (w WaitRegMem) Address() uint64 {
	return makeAddress(w.PollAddrLo, w.PollAddrHi)
}

// Returns true if `(value & Mask) <function> Reference` holds
func (w WaitRegMem) Compare(value uint32) (bool, error) {
	value &= w.Mask
	switch w.Function {
	case COMPARE_ALWAYS:
		return true, nil
	case COMPARE_LESS:
		return value < w.Reference, nil
	case COMPARE_LESS_EQUAL:
		return value <= w.Reference, nil
	case COMPARE_EQUAL:
		return value == w.Reference, nil
	case COMPARE_NOT_EQUAL:
		return value != w.Reference, nil
	case COMPARE_GREATER_EQUAL:
		return value >= w.Reference, nil
	case COMPARE_GREATER:
		return value > w.Reference, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnsupportedCompare, w.Function)
	}
}
