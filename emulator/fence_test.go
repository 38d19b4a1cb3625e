package emulator

import (
	"testing"
	"time"

	"github.com/zeozeozeo/gopm4/test"
)

func TestMemoryFencesEos(t *testing.T) {
	mem := newMapMemory()
	irq := &recordingInterrupts{}
	fences := NewMemoryFences(mem, irq, newFakeClock())

	fences.Signal(FenceEvent{Kind: FENCE_END_OF_SHADER, Address: 0x100, EosCommand: EOS_COMMAND_SIGNAL_FENCE, Data: 0xcafe})
	test.ExpectEquality(t, mem.Read32(0x100), uint32(0xcafe))

	// GDS stores and unknown commands leave memory alone
	fences.Signal(FenceEvent{Kind: FENCE_END_OF_SHADER, Address: 0x200, EosCommand: EOS_COMMAND_GDS_STORE, Data: 1})
	fences.Signal(FenceEvent{Kind: FENCE_END_OF_SHADER, Address: 0x200, EosCommand: 5, Data: 1})
	test.ExpectEquality(t, mem.Read32(0x200), uint32(0))
	test.ExpectEquality(t, len(irq.ids), 0)
}

func TestMemoryFencesEop(t *testing.T) {
	mem := newMapMemory()
	irq := &recordingInterrupts{}
	clock := newFakeClock()
	fences := NewMemoryFences(mem, irq, clock)

	fences.Signal(FenceEvent{Kind: FENCE_END_OF_PIPE, Address: 0x100, DataSel: DATA_SELECT_NONE, IntSel: INTERRUPT_SELECT_IRQ_ONLY, Data: 1})
	test.ExpectEquality(t, mem.Read32(0x100), uint32(0))
	test.ExpectEquality(t, len(irq.ids), 1)

	fences.Signal(FenceEvent{Kind: FENCE_END_OF_PIPE, Address: 0x100, DataSel: DATA_SELECT_DATA32_LOW, Data: 0x1_0000_0002})
	test.ExpectEquality(t, mem.Read32(0x100), uint32(2))
	test.ExpectEquality(t, mem.Read32(0x104), uint32(0))

	fences.Signal(FenceEvent{Kind: FENCE_END_OF_PIPE, Address: 0x200, DataSel: DATA_SELECT_DATA64, Data: 0x1122334455667788})
	test.ExpectEquality(t, mem.Read32(0x200), uint32(0x55667788))
	test.ExpectEquality(t, mem.Read32(0x204), uint32(0x11223344))
	test.ExpectEquality(t, len(irq.ids), 1)

	// the clock counter runs at GPU_CLOCK_FREQUENCY
	clock.Sleep(1500 * time.Millisecond)
	fences.Signal(FenceEvent{Kind: FENCE_END_OF_PIPE, Address: 0x300, DataSel: DATA_SELECT_GPU_CLOCK64, IntSel: INTERRUPT_SELECT_IRQ_WHEN_CONFIRMED})
	ticks := uint64(mem.Read32(0x300)) | uint64(mem.Read32(0x304))<<32
	test.ExpectEquality(t, ticks, uint64(GPU_CLOCK_FREQUENCY*3/2))
	test.ExpectEquality(t, len(irq.ids), 2)
	test.ExpectEquality(t, irq.ids[1], INTERRUPT_GFX_EOP)

	// unsupported selects write nothing and raise nothing
	fences.Signal(FenceEvent{Kind: FENCE_END_OF_PIPE, Address: 0x400, DataSel: 6, IntSel: INTERRUPT_SELECT_IRQ_ONLY, Data: 9})
	test.ExpectEquality(t, mem.Read32(0x400), uint32(0))
	test.ExpectEquality(t, len(irq.ids), 2)
}

func TestTimeHandler(t *testing.T) {
	clock := newFakeClock()
	th := NewTimeHandler(clock)
	test.ExpectEquality(t, th.Ticks(), uint64(0))

	clock.Sleep(10 * time.Microsecond)
	test.ExpectEquality(t, th.Ticks(), uint64(1000))

	clock.Sleep(2 * time.Second)
	test.ExpectEquality(t, th.Ticks(), uint64(2*GPU_CLOCK_FREQUENCY+1000))
}
