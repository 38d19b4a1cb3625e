package emulator

import (
	"fmt"
	"time"

	"github.com/zeozeozeo/gopm4/logger"
)

// Decodes command buffers and applies their packets to the register file and
// the collaborators. A Dispatcher is owned by a single goroutine
type Dispatcher struct {
	Regs         *Registers
	Rasterizer   Rasterizer
	Fences       FenceSignaler
	Interrupts   InterruptController
	Memory       Memory
	Clock        Clock
	PollInterval time.Duration
	Debugger     *Debugger

	// Called before every packet is executed, with the ID of the buffer it
	// belongs to (0 when ProcessCmdList is called directly)
	Observer func(bufID uint64, pkt Packet)

	// Logging permission for per packet diagnostics
	Verbose logger.Permission

	current uint64 // ID of the buffer being processed
	packets uint64 // Packets executed in the current buffer
}

// Returns a new Dispatcher over `regs` with inert collaborators
func NewDispatcher(regs *Registers) *Dispatcher {
	return &Dispatcher{
		Regs:         regs,
		Rasterizer:   NullRasterizer{},
		Clock:        SystemClock{},
		PollInterval: DEFAULT_POLL_INTERVAL,
		Verbose:      logger.Deny,
	}
}

// Executes every packet of `words` in stream order. Stops at, and returns,
// the first protocol violation; such an error is always fatal
func (d *Dispatcher) ProcessCmdList(words []uint32) error {
	return d.processBuffer(CommandBuffer{Words: words})
}

func (d *Dispatcher) processBuffer(cmdbuf CommandBuffer) error {
	if cmdbuf.IsEmpty() {
		return ErrEmptyCommandBuffer
	}
	d.current = cmdbuf.ID
	d.packets = 0
	return Walk(cmdbuf.Words, d.dispatch)
}

func (d *Dispatcher) dispatch(pkt Packet) error {
	if d.Debugger != nil {
		d.Debugger.packet(pkt)
	}
	if d.Observer != nil {
		d.Observer(d.current, pkt)
	}
	d.packets++

	if err := d.execute(pkt); err != nil {
		return &ProtocolError{Offset: pkt.Offset, Header: pkt.Header, Err: err}
	}
	return nil
}

func (d *Dispatcher) execute(pkt Packet) error {
	switch op := pkt.Header.Opcode(); op {
	case OPCODE_NOP:
		return d.nop(pkt)
	case OPCODE_SET_CONTEXT_REG:
		return d.setRegisters(pkt, WINDOW_CONTEXT)
	case OPCODE_SET_SH_REG:
		return d.setRegisters(pkt, WINDOW_SH)
	case OPCODE_SET_UCONFIG_REG:
		return d.setRegisters(pkt, WINDOW_UCONFIG)
	case OPCODE_INDEX_TYPE:
		return d.indexType(pkt)
	case OPCODE_DRAW_INDEX_2:
		return d.drawIndex2(pkt)
	case OPCODE_DRAW_INDEX_AUTO:
		return d.drawIndexAuto(pkt)
	case OPCODE_DISPATCH_DIRECT:
		return d.dispatchDirect(pkt)
	case OPCODE_EVENT_WRITE_EOS:
		return d.eventWriteEos(pkt)
	case OPCODE_EVENT_WRITE_EOP:
		return d.eventWriteEop(pkt)
	case OPCODE_DMA_DATA:
		return d.dmaData(pkt)
	case OPCODE_WRITE_DATA:
		return d.writeData(pkt)
	case OPCODE_ACQUIRE_MEM:
		return d.acquireMem(pkt)
	case OPCODE_WAIT_REG_MEM:
		return d.waitRegMem(pkt)
	default:
		return ErrUnknownOpcode
	}
}

// NOP. Only the marker in the first payload word matters, and only when
// the count field is non zero
func (d *Dispatcher) nop(pkt Packet) error {
	if pkt.Header.CountField() == 0 {
		return nil
	}

	switch pkt.Payload[0] {
	case PAYLOAD_PATCHED_FLIP:
		if d.Interrupts != nil {
			d.Interrupts.Signal(INTERRUPT_GFX_FLIP)
		}
	case PAYLOAD_DEBUG_MARKER_PUSH:
		logger.Logf(d.Verbose, "cp", "debug marker push in buffer %d", d.current)
	case PAYLOAD_DEBUG_MARKER_POP:
		logger.Logf(d.Verbose, "cp", "debug marker pop in buffer %d", d.current)
	}
	return nil
}

// SET_CONTEXT_REG, SET_SH_REG and SET_UCONFIG_REG
func (d *Dispatcher) setRegisters(pkt Packet, window RegisterWindow) error {
	set, err := DecodeSetData(pkt)
	if err != nil {
		return err
	}
	if err := d.Regs.SetWindow(window, set.RegOffset, set.Data); err != nil {
		return err
	}
	if d.Debugger != nil {
		d.Debugger.registersWritten(d.Regs, window.Base()+set.RegOffset, uint32(len(set.Data)))
	}
	return nil
}

// INDEX_TYPE
func (d *Dispatcher) indexType(pkt Packet) error {
	it, err := DecodeIndexType(pkt)
	if err != nil {
		return err
	}
	d.Regs.SetIndexBufferType(it.Raw)
	d.watch(VGT_DMA_INDEX_TYPE)
	return nil
}

// DRAW_INDEX_2
func (d *Dispatcher) drawIndex2(pkt Packet) error {
	draw, err := DecodeDrawIndex2(pkt)
	if err != nil {
		return err
	}
	d.Regs.SetMaxIndexSize(draw.MaxSize)
	d.Regs.SetIndexBaseAddress(draw.IndexBaseLo, draw.IndexBaseHi)
	d.Regs.SetNumIndices(draw.IndexCount)
	d.Regs.SetDrawInitiator(draw.DrawInitiator)
	d.watch(VGT_DMA_MAX_SIZE, VGT_DMA_BASE, VGT_DMA_BASE_HI, VGT_NUM_INDICES, VGT_DRAW_INITIATOR)

	if d.Rasterizer != nil {
		d.Rasterizer.DrawIndex(d.Regs)
	}
	return nil
}

// DRAW_INDEX_AUTO. The draw state is latched but no draw reaches the
// rasterizer yet
func (d *Dispatcher) drawIndexAuto(pkt Packet) error {
	draw, err := DecodeDrawIndexAuto(pkt)
	if err != nil {
		return err
	}
	d.Regs.SetNumIndices(draw.IndexCount)
	d.Regs.SetDrawInitiator(draw.DrawInitiator)
	d.watch(VGT_NUM_INDICES, VGT_DRAW_INITIATOR)

	logger.Logf(d.Verbose, "cp", "DRAW_INDEX_AUTO with %d indices not forwarded to the rasterizer", draw.IndexCount)
	return nil
}

// DISPATCH_DIRECT. Compute dispatches are decoded but not executed
func (d *Dispatcher) dispatchDirect(pkt Packet) error {
	dispatch, err := DecodeDispatchDirect(pkt)
	if err != nil {
		return err
	}
	logger.Logf(d.Verbose, "cp", "DISPATCH_DIRECT %dx%dx%d ignored", dispatch.DimX, dispatch.DimY, dispatch.DimZ)
	return nil
}

// EVENT_WRITE_EOS
func (d *Dispatcher) eventWriteEos(pkt Packet) error {
	eos, err := DecodeEventWriteEos(pkt)
	if err != nil {
		return err
	}
	if d.Fences != nil {
		d.Fences.Signal(eos.Fence())
	}
	return nil
}

// EVENT_WRITE_EOP
func (d *Dispatcher) eventWriteEop(pkt Packet) error {
	eop, err := DecodeEventWriteEop(pkt)
	if err != nil {
		return err
	}
	if d.Fences != nil {
		d.Fences.Signal(eop.Fence())
	}
	return nil
}

// DMA_DATA. Decoded, no transfer is performed
func (d *Dispatcher) dmaData(pkt Packet) error {
	dma, err := DecodeDmaData(pkt)
	if err != nil {
		return err
	}
	logger.Logf(d.Verbose, "cp", "DMA_DATA of %d bytes 0x%x -> 0x%x ignored", dma.ByteCount, dma.SrcAddr, dma.DstAddr)
	return nil
}

// WRITE_DATA
func (d *Dispatcher) writeData(pkt Packet) error {
	wd, err := DecodeWriteData(pkt)
	if err != nil {
		return err
	}
	if wd.DstSel != WRITE_DATA_DST_MEMORY_SYNC && wd.DstSel != WRITE_DATA_DST_MEMORY_ASYNC {
		return fmt.Errorf("%w: WRITE_DATA dst_sel %d", ErrUnsupportedDestination, wd.DstSel)
	}
	if wd.WrOneAddr {
		return fmt.Errorf("%w: WRITE_DATA wr_one_addr", ErrUnsupportedAddressing)
	}
	if d.Memory == nil {
		panicFmt("cp: WRITE_DATA to 0x%x without guest memory", wd.DstAddr)
	}
	writeWords(d.Memory, wd.DstAddr, wd.Data)
	return nil
}

// ACQUIRE_MEM. Caches are not emulated so there is nothing to flush
func (d *Dispatcher) acquireMem(pkt Packet) error {
	_, err := DecodeAcquireMem(pkt)
	return err
}

// WAIT_REG_MEM. Blocks the processing loop until the condition holds
func (d *Dispatcher) waitRegMem(pkt Packet) error {
	wait, err := DecodeWaitRegMem(pkt)
	if err != nil {
		return err
	}
	if wait.Engine != ENGINE_ME {
		return fmt.Errorf("%w: WAIT_REG_MEM engine %d", ErrUnsupportedEngine, wait.Engine)
	}

	polls := 0
	for {
		val, err := d.pollValue(wait)
		if err != nil {
			return err
		}
		ok, err := wait.Compare(val)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if polls == 0 {
			logger.Logf(d.Verbose, "cp", "WAIT_REG_MEM blocking on 0x%x", wait.Address())
		}
		polls++
		d.Clock.Sleep(d.PollInterval)
	}
	return nil
}

// Reads the polled value from the register file or from guest memory
func (d *Dispatcher) pollValue(wait WaitRegMem) (uint32, error) {
	if wait.MemSpace == MEM_SPACE_REGISTER {
		if wait.PollAddrLo >= NUM_REGS {
			return 0, fmt.Errorf("%w: WAIT_REG_MEM register 0x%x", ErrRegisterRange, wait.PollAddrLo)
		}
		return d.Regs.Load(wait.PollAddrLo), nil
	}
	if d.Memory == nil {
		panicFmt("cp: WAIT_REG_MEM on 0x%x without guest memory", wait.Address())
	}
	return d.Memory.Read32(wait.Address()), nil
}

// Reports writes to individual registers to the debugger
func (d *Dispatcher) watch(regs ...uint32) {
	if d.Debugger == nil {
		return
	}
	for _, reg := range regs {
		d.Debugger.registersWritten(d.Regs, reg, 1)
	}
}

// Returns the number of packets executed from the last buffer
func (d *Dispatcher) PacketCount() uint64 {
	return d.packets
}
