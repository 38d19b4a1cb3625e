package emulator

import (
	"errors"
	"testing"

	"github.com/zeozeozeo/gopm4/test"
)

func TestSetContextRegister(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()

	words := NewBuilder().SetContextReg(0x100, 0x11111111, 0x22222222).Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))

	test.ExpectEquality(t, d.Regs.Window(WINDOW_CONTEXT, 0x100), uint32(0x11111111))
	test.ExpectEquality(t, d.Regs.Window(WINDOW_CONTEXT, 0x101), uint32(0x22222222))

	// nothing else in the register file changed
	for i, v := range d.Regs.Regs {
		if i == CONTEXT_REG_WORD_OFFSET+0x100 || i == CONTEXT_REG_WORD_OFFSET+0x101 {
			continue
		}
		if v != 0 {
			t.Fatalf("register 0x%x unexpectedly set to 0x%x", i, v)
		}
	}
}

func TestSetRegisterWindows(t *testing.T) {
	tests := []struct {
		desc   string
		words  []uint32
		window RegisterWindow
	}{
		{"context", NewBuilder().SetContextReg(4, 1, 2, 3).Words(), WINDOW_CONTEXT},
		{"sh", NewBuilder().SetShReg(4, 1, 2, 3).Words(), WINDOW_SH},
		{"uconfig", NewBuilder().SetUconfigReg(4, 1, 2, 3).Words(), WINDOW_UCONFIG},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			d, _, _, _, _, _ := newTestDispatcher()
			test.ExpectSuccess(t, d.ProcessCmdList(tt.words))
			for i := uint32(0); i < 3; i++ {
				test.ExpectEquality(t, d.Regs.Load(tt.window.Base()+4+i), i+1)
			}
		})
	}
}

func TestSetRegisterOutOfRange(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	words := NewBuilder().SetUconfigReg(0xffff, 1).Words()
	err := d.ProcessCmdList(words)
	test.ExpectSuccess(t, errors.Is(err, ErrRegisterRange))
	test.ExpectSuccess(t, IsFatal(err))
}

func TestIndexType(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	test.ExpectSuccess(t, d.ProcessCmdList(NewBuilder().IndexType(0x5).Words()))
	test.ExpectEquality(t, d.Regs.IndexBufferType(), uint32(0x5))
	test.ExpectEquality(t, d.Regs.IndexType(), INDEX_TYPE_32BIT)
}

func TestDrawIndex2(t *testing.T) {
	d, draws, _, _, _, _ := newTestDispatcher()

	words := NewBuilder().
		IndexType(uint32(INDEX_TYPE_16BIT)).
		DrawIndex2(128, 0x12_3456_7000, 96, 0x0).
		Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))

	test.ExpectEquality(t, d.Regs.MaxIndexSize(), uint32(128))
	test.ExpectEquality(t, d.Regs.IndexBaseAddress(), uint64(0x12_3456_7000))
	test.ExpectEquality(t, d.Regs.NumIndices(), uint32(96))

	calls := draws.Snapshot()
	test.ExpectEquality(t, len(calls), 1)
	test.ExpectEquality(t, calls[0].State, d.Regs.DrawState())
}

func TestDrawIndexAutoDoesNotDraw(t *testing.T) {
	d, draws, _, _, _, _ := newTestDispatcher()

	test.ExpectSuccess(t, d.ProcessCmdList(NewBuilder().DrawIndexAuto(3, 0x2).Words()))
	test.ExpectEquality(t, d.Regs.NumIndices(), uint32(3))
	test.ExpectEquality(t, d.Regs.DrawInitiator(), uint32(0x2))
	test.ExpectEquality(t, draws.Total(), uint64(0))
}

func TestNopFlip(t *testing.T) {
	d, _, _, irq, _, _ := newTestDispatcher()

	words := NewBuilder().
		Nop().
		Nop(PAYLOAD_PATCHED_FLIP). // single word NOPs carry no marker
		Nop(PAYLOAD_DEBUG_MARKER_PUSH, 0).
		Nop(0x12345678, 0).
		Flip().
		Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))

	test.ExpectEquality(t, len(irq.ids), 1)
	test.ExpectEquality(t, irq.ids[0], INTERRUPT_GFX_FLIP)
}

func TestStubs(t *testing.T) {
	d, draws, fences, irq, _, _ := newTestDispatcher()

	words := NewBuilder().
		DispatchDirect(8, 8, 1, 1).
		DmaData(0x1000, 0x2000, 64).
		AcquireMem(0).
		Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))
	test.ExpectEquality(t, d.PacketCount(), uint64(3))

	test.ExpectEquality(t, draws.Total(), uint64(0))
	test.ExpectEquality(t, len(fences.events), 0)
	test.ExpectEquality(t, len(irq.ids), 0)
}

func TestEventWrites(t *testing.T) {
	d, _, fences, _, _, _ := newTestDispatcher()

	words := NewBuilder().
		EventWriteEos(0x2e, 0x1_0000_0040, EOS_COMMAND_SIGNAL_FENCE, 0xcafe).
		EventWriteEop(0x28, 0x2_0000_0080, DATA_SELECT_DATA64, INTERRUPT_SELECT_IRQ_ONLY, 0x1122334455667788).
		Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))

	test.ExpectEquality(t, len(fences.events), 2)
	test.ExpectEquality(t, fences.events[0], FenceEvent{
		Kind:       FENCE_END_OF_SHADER,
		EventType:  0x2e,
		Address:    0x1_0000_0040,
		EosCommand: EOS_COMMAND_SIGNAL_FENCE,
		Data:       0xcafe,
	})
	test.ExpectEquality(t, fences.events[1], FenceEvent{
		Kind:      FENCE_END_OF_PIPE,
		EventType: 0x28,
		Address:   0x2_0000_0080,
		DataSel:   DATA_SELECT_DATA64,
		IntSel:    INTERRUPT_SELECT_IRQ_ONLY,
		Data:      0x1122334455667788,
	})
}

func TestWriteData(t *testing.T) {
	for _, sel := range []uint32{WRITE_DATA_DST_MEMORY_SYNC, WRITE_DATA_DST_MEMORY_ASYNC} {
		d, _, _, _, mem, _ := newTestDispatcher()

		words := NewBuilder().WriteData(sel, 0x5_0000_1000, 0xa, 0xb, 0xc).Words()
		test.ExpectSuccess(t, d.ProcessCmdList(words))

		test.ExpectEquality(t, mem.Read32(0x5_0000_1000), uint32(0xa))
		test.ExpectEquality(t, mem.Read32(0x5_0000_1004), uint32(0xb))
		test.ExpectEquality(t, mem.Read32(0x5_0000_1008), uint32(0xc))
		test.ExpectEquality(t, len(mem.words), 3)
	}
}

func TestWriteDataViolations(t *testing.T) {
	d, _, _, _, mem, _ := newTestDispatcher()

	// register destination
	err := d.ProcessCmdList(NewBuilder().WriteData(0, 0x1000, 1).Words())
	test.ExpectSuccess(t, errors.Is(err, ErrUnsupportedDestination))
	test.ExpectSuccess(t, IsFatal(err))

	// write the same address repeatedly
	words := NewBuilder().WriteData(WRITE_DATA_DST_MEMORY_SYNC, 0x1000, 1, 2).Words()
	words[1] |= 1 << 16
	err = d.ProcessCmdList(words)
	test.ExpectSuccess(t, errors.Is(err, ErrUnsupportedAddressing))

	test.ExpectEquality(t, len(mem.words), 0)
}

func TestWaitRegMemAlreadyTrue(t *testing.T) {
	d, _, _, _, mem, clock := newTestDispatcher()
	mem.Write32(0x3000, 5)

	words := NewBuilder().WaitRegMem(COMPARE_EQUAL, MEM_SPACE_MEMORY, 0x3000, 5, 0xffffffff).Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))
	test.ExpectEquality(t, clock.Sleeps(), 0)
}

func TestWaitRegMemPolls(t *testing.T) {
	d, _, _, _, mem, clock := newTestDispatcher()
	start := clock.Now()

	// the fence is written by "someone else" during the third sleep
	clock.onSleep = func(n int) {
		if n == 3 {
			mem.Write32(0x3000, 0x100)
		}
	}

	words := NewBuilder().WaitRegMem(COMPARE_GREATER_EQUAL, MEM_SPACE_MEMORY, 0x3000, 0x100, 0xff00).Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))
	test.ExpectEquality(t, clock.Sleeps(), 3)
	test.ExpectEquality(t, clock.Now().Sub(start), 3*DEFAULT_POLL_INTERVAL)
}

func TestWaitRegMemRegister(t *testing.T) {
	d, _, _, _, _, clock := newTestDispatcher()
	clock.onSleep = func(n int) {
		d.Regs.Store(VGT_NUM_INDICES, 3)
	}

	words := NewBuilder().WaitRegMem(COMPARE_NOT_EQUAL, MEM_SPACE_REGISTER, VGT_NUM_INDICES, 0, 0xffffffff).Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))
	test.ExpectEquality(t, clock.Sleeps(), 1)
}

func TestWaitRegMemViolations(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()

	// prefetch parser engine
	words := NewBuilder().WaitRegMem(COMPARE_ALWAYS, MEM_SPACE_MEMORY, 0x3000, 0, 0).Words()
	words[1] |= 1 << 8
	err := d.ProcessCmdList(words)
	test.ExpectSuccess(t, errors.Is(err, ErrUnsupportedEngine))

	words = NewBuilder().WaitRegMem(COMPARE_RESERVED, MEM_SPACE_MEMORY, 0x3000, 0, 0).Words()
	err = d.ProcessCmdList(words)
	test.ExpectSuccess(t, errors.Is(err, ErrUnsupportedCompare))
}

func TestCompareFunctions(t *testing.T) {
	tests := []struct {
		fn     CompareFunction
		value  uint32
		expect bool
	}{
		{COMPARE_ALWAYS, 0, true},
		{COMPARE_LESS, 4, true},
		{COMPARE_LESS, 5, false},
		{COMPARE_LESS_EQUAL, 5, true},
		{COMPARE_EQUAL, 5, true},
		{COMPARE_EQUAL, 0x105, true}, // masked
		{COMPARE_NOT_EQUAL, 5, false},
		{COMPARE_GREATER_EQUAL, 5, true},
		{COMPARE_GREATER, 5, false},
		{COMPARE_GREATER, 6, true},
	}

	for _, tt := range tests {
		w := WaitRegMem{Function: tt.fn, Reference: 5, Mask: 0xff}
		ok, err := w.Compare(tt.value)
		test.ExpectSuccess(t, err)
		if ok != tt.expect {
			t.Errorf("compare %d with value %d: got %v, want %v", tt.fn, tt.value, ok, tt.expect)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()

	words := NewBuilder().
		SetContextReg(0, 1).
		Packet(OPCODE_DRAW_INDIRECT, 0, 0).
		SetContextReg(1, 1).
		Words()
	err := d.ProcessCmdList(words)

	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	test.ExpectSuccess(t, errors.Is(err, ErrUnknownOpcode))
	test.ExpectEquality(t, perr.Header.Opcode(), OPCODE_DRAW_INDIRECT)
	test.ExpectEquality(t, perr.Offset, uint32(3))

	// packets before the violation were applied, packets after were not
	test.ExpectEquality(t, d.Regs.Window(WINDOW_CONTEXT, 0), uint32(1))
	test.ExpectEquality(t, d.Regs.Window(WINDOW_CONTEXT, 1), uint32(0))
}

func TestShortPacket(t *testing.T) {
	d, draws, _, _, _, _ := newTestDispatcher()
	err := d.ProcessCmdList(NewBuilder().Packet(OPCODE_DRAW_INDEX_2, 1, 2).Words())
	test.ExpectSuccess(t, errors.Is(err, ErrShortPacket))
	test.ExpectEquality(t, draws.Total(), uint64(0))
}

func TestEmptyCommandList(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()
	err := d.ProcessCmdList(nil)
	test.ExpectSuccess(t, errors.Is(err, ErrEmptyCommandBuffer))
	test.ExpectSuccess(t, IsFatal(err))
}

func TestObserverOrder(t *testing.T) {
	d, _, _, _, _, _ := newTestDispatcher()

	var trace []Opcode
	d.Observer = func(bufID uint64, pkt Packet) {
		test.ExpectEquality(t, bufID, uint64(0))
		trace = append(trace, pkt.Header.Opcode())
	}

	words := NewBuilder().IndexType(0).SetShReg(0, 1).DrawIndexAuto(1, 0).Nop().Words()
	test.ExpectSuccess(t, d.ProcessCmdList(words))

	expected := []Opcode{OPCODE_INDEX_TYPE, OPCODE_SET_SH_REG, OPCODE_DRAW_INDEX_AUTO, OPCODE_NOP}
	test.ExpectEquality(t, len(trace), len(expected))
	for i := range expected {
		test.ExpectEquality(t, trace[i], expected[i])
	}
}
