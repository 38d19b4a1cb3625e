package emulator

import "fmt"

const (
	NUM_REGS = 0xd000 // Size of the register file in 32 bit words

	SH_REG_WORD_OFFSET      = 0x2c00 // Persistent shader stage registers
	CONTEXT_REG_WORD_OFFSET = 0xa000 // Context (render state) registers
	UCONFIG_REG_WORD_OFFSET = 0xc000 // User configuration registers
)

// Named register windows that SET_*_REG packets are relative to
type RegisterWindow uint8

const (
	WINDOW_CONTEXT RegisterWindow = iota // SET_CONTEXT_REG
	WINDOW_SH                            // SET_SH_REG
	WINDOW_UCONFIG                       // SET_UCONFIG_REG
)

// Returns the word offset of the first register in the window
func (w RegisterWindow) Base() uint32 {
	switch w {
	case WINDOW_CONTEXT:
		return CONTEXT_REG_WORD_OFFSET
	case WINDOW_SH:
		return SH_REG_WORD_OFFSET
	case WINDOW_UCONFIG:
		return UCONFIG_REG_WORD_OFFSET
	default:
		panicFmt("registers: invalid window %d", w)
		return 0
	}
}

func (w RegisterWindow) String() string {
	switch w {
	case WINDOW_CONTEXT:
		return "context"
	case WINDOW_SH:
		return "sh"
	case WINDOW_UCONFIG:
		return "uconfig"
	default:
		return fmt.Sprintf("window(%d)", uint8(w))
	}
}

// Absolute word offsets of the registers that packets update directly
const (
	VGT_DMA_BASE_HI     = 0xa1f9 // Index buffer base address, bits [47:32]
	VGT_DMA_BASE        = 0xa1fa // Index buffer base address, bits [31:0]
	VGT_DRAW_INITIATOR  = 0xa1fc // Draw initiator of the last draw
	VGT_DMA_MAX_SIZE    = 0xa29e // Size of the index buffer in indices
	VGT_DMA_INDEX_TYPE  = 0xa29f // Index format and swap mode
	VGT_NUM_INDICES     = 0xc24c // Index count of the last draw
	vgtDmaBaseHiMask    = 0xffff
	vgtDmaIndexTypeMask = 0x3
)

// Index element formats held in bits [1:0] of VGT_DMA_INDEX_TYPE
type IndexType uint32

const (
	INDEX_TYPE_16BIT IndexType = 0
	INDEX_TYPE_32BIT IndexType = 1
)

// Emulated device state. Registers is not synchronized: only the processing
// loop writes to it, anybody else must wait for the processor to be idle
type Registers struct {
	Regs [NUM_REGS]uint32
}

// Returns a new zeroed register file
func NewRegisters() *Registers {
	return &Registers{}
}

// Returns the register at absolute word offset `reg`
func (r *Registers) Load(reg uint32) uint32 {
	return r.Regs[reg]
}

// Stores `val` into the register at absolute word offset `reg`
func (r *Registers) Store(reg uint32, val uint32) {
	r.Regs[reg] = val
}

// Copies `words` into the window starting at `offset` registers past its
// base. Returns ErrRegisterRange without writing anything when the copy
// would leave the register file
func (r *Registers) SetWindow(window RegisterWindow, offset uint32, words []uint32) error {
	start := uint64(window.Base()) + uint64(offset)
	end := start + uint64(len(words))
	if end > NUM_REGS {
		return fmt.Errorf(
			"%w: %s window offset 0x%x with %d words",
			ErrRegisterRange, window, offset, len(words),
		)
	}
	copy(r.Regs[start:end], words)
	return nil
}

// Returns the register at `offset` inside `window`
func (r *Registers) Window(window RegisterWindow, offset uint32) uint32 {
	return r.Regs[window.Base()+offset]
}

// Returns the 48 bit guest address of the index buffer
func (r *Registers) IndexBaseAddress() uint64 {
	return makeAddress(r.Regs[VGT_DMA_BASE], r.Regs[VGT_DMA_BASE_HI]&vgtDmaBaseHiMask)
}

func (r *Registers) SetIndexBaseAddress(lo, hi uint32) {
	r.Regs[VGT_DMA_BASE] = lo
	r.Regs[VGT_DMA_BASE_HI] = hi & vgtDmaBaseHiMask
}

func (r *Registers) MaxIndexSize() uint32 {
	return r.Regs[VGT_DMA_MAX_SIZE]
}

func (r *Registers) SetMaxIndexSize(size uint32) {
	r.Regs[VGT_DMA_MAX_SIZE] = size
}

func (r *Registers) NumIndices() uint32 {
	return r.Regs[VGT_NUM_INDICES]
}

func (r *Registers) SetNumIndices(count uint32) {
	r.Regs[VGT_NUM_INDICES] = count
}

func (r *Registers) DrawInitiator() uint32 {
	return r.Regs[VGT_DRAW_INITIATOR]
}

func (r *Registers) SetDrawInitiator(val uint32) {
	r.Regs[VGT_DRAW_INITIATOR] = val
}

// Returns the raw VGT_DMA_INDEX_TYPE word
func (r *Registers) IndexBufferType() uint32 {
	return r.Regs[VGT_DMA_INDEX_TYPE]
}

func (r *Registers) SetIndexBufferType(raw uint32) {
	r.Regs[VGT_DMA_INDEX_TYPE] = raw
}

// Returns the index element format of the bound index buffer
func (r *Registers) IndexType() IndexType {
	return IndexType(r.Regs[VGT_DMA_INDEX_TYPE] & vgtDmaIndexTypeMask)
}

// Snapshot of the draw related registers
type DrawState struct {
	IndexBaseAddress uint64
	MaxIndexSize     uint32
	NumIndices       uint32
	DrawInitiator    uint32
	IndexBufferType  uint32
}

// Returns a copy of the draw related registers
func (r *Registers) DrawState() DrawState {
	return DrawState{
		IndexBaseAddress: r.IndexBaseAddress(),
		MaxIndexSize:     r.MaxIndexSize(),
		NumIndices:       r.NumIndices(),
		DrawInitiator:    r.DrawInitiator(),
		IndexBufferType:  r.IndexBufferType(),
	}
}

func (s DrawState) String() string {
	return fmt.Sprintf(
		"index base 0x%x, max size %d, indices %d, initiator 0x%x, index type 0x%x",
		s.IndexBaseAddress, s.MaxIndexSize, s.NumIndices, s.DrawInitiator, s.IndexBufferType,
	)
}
