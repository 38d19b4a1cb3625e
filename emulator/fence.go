package emulator

import (
	"fmt"

	"github.com/zeozeozeo/gopm4/logger"
)

// Pipeline stage an event write fires at
type FenceKind uint8

const (
	FENCE_END_OF_SHADER FenceKind = iota // EVENT_WRITE_EOS
	FENCE_END_OF_PIPE                    // EVENT_WRITE_EOP
)

func (k FenceKind) String() string {
	switch k {
	case FENCE_END_OF_SHADER:
		return "eos"
	case FENCE_END_OF_PIPE:
		return "eop"
	default:
		return fmt.Sprintf("fence(%d)", uint8(k))
	}
}

// Fence signal requested by an event write packet
type FenceEvent struct {
	Kind       FenceKind
	EventType  uint32
	EventIndex uint32
	Address    uint64          // Guest address of the fence value
	EosCommand EosCommand      // EOS only
	DataSel    DataSelect      // EOP only
	IntSel     InterruptSelect // EOP only
	Data       uint64
}

// Signals fences on behalf of the command processor. Signal must not block
// and any failure is the implementation's own concern
type FenceSignaler interface {
	Signal(ev FenceEvent)
}

// Signals fences by writing the fence value into guest memory and raising
// the end of pipe interrupt when asked to. Implements FenceSignaler
type MemoryFences struct {
	Memory     Memory
	Interrupts InterruptController
	Time       *TimeHandler
}

// Returns a new fence signaler writing into `mem`
func NewMemoryFences(mem Memory, irq InterruptController, clock Clock) *MemoryFences {
	return &MemoryFences{
		Memory:     mem,
		Interrupts: irq,
		Time:       NewTimeHandler(clock),
	}
}

func (f *MemoryFences) Signal(ev FenceEvent) {
	switch ev.Kind {
	case FENCE_END_OF_SHADER:
		f.signalEos(ev)
	case FENCE_END_OF_PIPE:
		f.signalEop(ev)
	default:
		panicFmt("fence: invalid fence kind %d", ev.Kind)
	}
}

func (f *MemoryFences) signalEos(ev FenceEvent) {
	switch ev.EosCommand {
	case EOS_COMMAND_SIGNAL_FENCE:
		f.Memory.Write32(ev.Address, uint32(ev.Data))
	case EOS_COMMAND_GDS_STORE:
		// GDS is not emulated
	default:
		logger.Logf(logger.Allow, "fence", "unsupported eos command %d at 0x%x", ev.EosCommand, ev.Address)
	}
}

func (f *MemoryFences) signalEop(ev FenceEvent) {
	switch ev.DataSel {
	case DATA_SELECT_NONE:
	case DATA_SELECT_DATA32_LOW:
		f.Memory.Write32(ev.Address, uint32(ev.Data))
	case DATA_SELECT_DATA64:
		write64(f.Memory, ev.Address, ev.Data)
	case DATA_SELECT_GPU_CLOCK64, DATA_SELECT_PERF_COUNTER:
		write64(f.Memory, ev.Address, f.Time.Ticks())
	default:
		logger.Logf(logger.Allow, "fence", "unsupported eop data select %d at 0x%x", ev.DataSel, ev.Address)
		return
	}

	if ev.IntSel != INTERRUPT_SELECT_NONE && f.Interrupts != nil {
		f.Interrupts.Signal(INTERRUPT_GFX_EOP)
	}
}
