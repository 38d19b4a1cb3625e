package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zeozeozeo/gopm4/capture"
	"github.com/zeozeozeo/gopm4/emulator"
	"github.com/zeozeozeo/gopm4/test"
)

const testBase = 0x100000

func newDemoProcessor(t *testing.T) (*emulator.Processor, *emulator.GuestMemory, *emulator.IrqState, *emulator.DrawData) {
	t.Helper()
	mem, err := emulator.NewGuestMemory(testBase, 0x10000)
	if err != nil {
		t.Fatalf("guest memory: %v", err)
	}
	t.Cleanup(func() { mem.Close() })

	irq := emulator.NewIrqState()
	draws := emulator.NewDrawData(0)
	proc := emulator.NewProcessor(
		emulator.WithRasterizer(draws),
		emulator.WithMemory(mem),
		emulator.WithInterrupts(irq),
		emulator.WithFences(emulator.NewMemoryFences(mem, irq, emulator.SystemClock{})),
	)
	t.Cleanup(proc.Close)
	return proc, mem, irq, draws
}

func TestDemoStream(t *testing.T) {
	proc, mem, irq, draws := newDemoProcessor(t)

	test.ExpectSuccess(t, runDemo(context.Background(), proc, nil, testBase))

	// DRAW_INDEX_AUTO is never forwarded
	test.ExpectEquality(t, draws.Total(), uint64(DEMO_FRAMES*4))
	test.ExpectEquality(t, mem.Read32(testBase+DEMO_LABEL), uint32(DEMO_FRAMES))
	test.ExpectEquality(t, mem.Read32(testBase+DEMO_FENCE), uint32(DEMO_FRAMES-1))
	test.ExpectEquality(t, mem.Read32(testBase+DEMO_FENCE+4), uint32(DEMO_FRAMES-1))
	test.ExpectSuccess(t, irq.Pending(emulator.INTERRUPT_GFX_EOP))
	test.ExpectSuccess(t, irq.Pending(emulator.INTERRUPT_GFX_FLIP))

	state := proc.Registers().DrawState()
	test.ExpectEquality(t, state.NumIndices, uint32(6))
	test.ExpectEquality(t, state.IndexBaseAddress, uint64(testBase+DEMO_INDEX_BUFFER))
}

func TestDemoCaptureReplay(t *testing.T) {
	store, err := capture.Open(filepath.Join(t.TempDir(), "demo.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	recorder, _, _, recorded := newDemoProcessor(t)
	test.ExpectSuccess(t, runDemo(ctx, recorder, store, testBase))

	n, err := store.Count(ctx)
	test.ExpectSuccess(t, err)
	test.ExpectEquality(t, n, DEMO_FRAMES*3)

	player, mem, _, replayed := newDemoProcessor(t)
	test.ExpectSuccess(t, replay(ctx, player, store))
	test.ExpectEquality(t, replayed.Total(), recorded.Total())
	test.ExpectEquality(t, mem.Read32(testBase+DEMO_LABEL), uint32(DEMO_FRAMES))
	test.ExpectEquality(t, player.Registers().DrawState(), recorder.Registers().DrawState())
}

func TestParseWatch(t *testing.T) {
	regs := parseWatch(" 0xa1fc, 49740,,")
	test.ExpectEquality(t, len(regs), 2)
	test.ExpectEquality(t, regs[0], uint32(emulator.VGT_DRAW_INITIATOR))
	test.ExpectEquality(t, regs[1], uint32(emulator.VGT_NUM_INDICES))
}
