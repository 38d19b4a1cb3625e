package main

import (
	"context"

	"github.com/zeozeozeo/gopm4/capture"
	"github.com/zeozeozeo/gopm4/emulator"
)

const (
	DEMO_FRAMES         = 8
	DEMO_INDEX_BUFFER   = 0x1000 // Offsets from the guest memory base
	DEMO_LABEL          = 0x100
	DEMO_FENCE          = 0x200
	DEMO_CLOCK          = 0x208
	DEMO_EOP_EVENT      = 0x28 // CACHE_FLUSH_AND_INV_TS_EVENT
	DEMO_EOS_EVENT      = 0x14 // CS_DONE
	DEMO_DRAW_INITIATOR = 0
)

// Builds the buffers of one demo frame: state setup, a few indexed draws,
// a label handshake through WAIT_REG_MEM, fences and a flip
func demoFrame(base uint64, frame uint32) [][]uint32 {
	setup := emulator.NewBuilder().
		Nop(emulator.PAYLOAD_DEBUG_MARKER_PUSH, 0).
		SetContextReg(0x000, 0, 0, 640, 360).
		SetShReg(0x00c, frame).
		IndexType(uint32(frame % 2)).
		Words()

	draws := emulator.NewBuilder()
	for i := uint32(0); i < 4; i++ {
		count := 3 * (1 + (frame+i)%8)
		draws.DrawIndex2(0x1000, base+DEMO_INDEX_BUFFER, count, DEMO_DRAW_INITIATOR)
	}
	draws.DrawIndexAuto(6, DEMO_DRAW_INITIATOR).
		DispatchDirect(8, 8, 1, 1).
		WriteData(emulator.WRITE_DATA_DST_MEMORY_SYNC, base+DEMO_LABEL, frame+1)

	handshake := emulator.NewBuilder().
		WaitRegMem(emulator.COMPARE_EQUAL, emulator.MEM_SPACE_MEMORY, base+DEMO_LABEL, frame+1, 0xffffffff).
		AcquireMem(0).
		EventWriteEos(DEMO_EOS_EVENT, base+DEMO_FENCE+4, emulator.EOS_COMMAND_SIGNAL_FENCE, frame).
		EventWriteEop(DEMO_EOP_EVENT, base+DEMO_FENCE, emulator.DATA_SELECT_DATA32_LOW, emulator.INTERRUPT_SELECT_NONE, uint64(frame)).
		EventWriteEop(DEMO_EOP_EVENT, base+DEMO_CLOCK, emulator.DATA_SELECT_GPU_CLOCK64, emulator.INTERRUPT_SELECT_IRQ_ONLY, 0).
		Nop(emulator.PAYLOAD_DEBUG_MARKER_POP, 0).
		Flip().
		Words()

	return [][]uint32{setup, draws.Words(), handshake}
}

// Submits the demo stream, recording it into `store` when not nil
func runDemo(ctx context.Context, proc *emulator.Processor, store *capture.Store, base uint64) error {
	for frame := uint32(0); frame < DEMO_FRAMES; frame++ {
		for _, words := range demoFrame(base, frame) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if store != nil {
				if _, err := store.Append(ctx, words); err != nil {
					return err
				}
			}
			if err := proc.Submit(words); err != nil {
				return err
			}
		}
	}
	return proc.WaitIdle()
}
