package emulator

import "sync"

// Rendering backend driven by the draw packets. DrawIndex is called from the
// processing loop with the live register file; implementations that keep
// state beyond the call must copy what they need
type Rasterizer interface {
	DrawIndex(regs *Registers)
}

// Rasterizer that ignores every draw
type NullRasterizer struct{}

func (NullRasterizer) DrawIndex(regs *Registers) {}

// A single recorded draw
type DrawCall struct {
	Seq   uint64    // Position of the draw since the recorder was created
	State DrawState // Draw registers at the time of the call
}

// Stores the draw calls issued by the command processor. Implements
// Rasterizer and can be read concurrently with the processing loop
type DrawData struct {
	mu    sync.Mutex
	seq   uint64
	Calls []DrawCall
	Limit int // Maximum number of calls kept, 0 keeps everything
}

// Returns a new recorder keeping at most `limit` calls
func NewDrawData(limit int) *DrawData {
	return &DrawData{Limit: limit}
}

func (dd *DrawData) DrawIndex(regs *Registers) {
	dd.PushCall(regs.DrawState())
}

// Appends a draw to the recorder, dropping the oldest one when full
func (dd *DrawData) PushCall(state DrawState) {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	dd.Calls = append(dd.Calls, DrawCall{Seq: dd.seq, State: state})
	dd.seq++
	if dd.Limit > 0 && len(dd.Calls) > dd.Limit {
		dd.Calls = append(dd.Calls[:0], dd.Calls[len(dd.Calls)-dd.Limit:]...)
	}
}

// Returns a copy of the recorded calls
func (dd *DrawData) Snapshot() []DrawCall {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	calls := make([]DrawCall, len(dd.Calls))
	copy(calls, dd.Calls)
	return calls
}

// Returns the number of draws recorded since creation
func (dd *DrawData) Total() uint64 {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	return dd.seq
}

// Forgets the recorded calls
func (dd *DrawData) Clear() {
	dd.mu.Lock()
	dd.Calls = nil
	dd.mu.Unlock()
}
