package emulator

import (
	"sync"

	"github.com/zeozeozeo/gopm4/logger"
)

// Observes the packets executed by the command processor. Breakpoints stop
// on opcodes, watchpoints on writes to absolute register offsets. A hit is
// logged and handed to OnBreak/OnWatch, the processing loop is not paused
type Debugger struct {
	mu          sync.Mutex
	Breakpoints []Opcode // All opcode breakpoints
	Watchpoints []uint32 // All register write watchpoints
	BreakHits   uint64   // Number of breakpoint hits
	WatchHits   uint64   // Number of watchpoint hits

	OnBreak func(pkt Packet)             // Called from the processing loop
	OnWatch func(reg uint32, val uint32) // Called from the processing loop
}

func NewDebugger() *Debugger {
	return &Debugger{}
}

// Adds a breakpoint when a packet with `op` is about to be executed
func (debugger *Debugger) AddBreakpoint(op Opcode) {
	debugger.mu.Lock()
	defer debugger.mu.Unlock()

	// check if that breakpoint already exists
	for _, breakpoint := range debugger.Breakpoints {
		if breakpoint == op {
			return
		}
	}
	debugger.Breakpoints = append(debugger.Breakpoints, op)
}

// Deletes a breakpoint for `op`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteBreakpoint(op Opcode) {
	debugger.mu.Lock()
	defer debugger.mu.Unlock()

	for idx, breakpoint := range debugger.Breakpoints {
		if breakpoint == op {
			debugger.Breakpoints = append(debugger.Breakpoints[:idx], debugger.Breakpoints[idx+1:]...)
			return
		}
	}
}

// Adds a write watchpoint for the register at absolute offset `reg`
func (debugger *Debugger) AddWatchpoint(reg uint32) {
	debugger.mu.Lock()
	defer debugger.mu.Unlock()

	for _, watchpoint := range debugger.Watchpoints {
		if watchpoint == reg {
			return
		}
	}
	debugger.Watchpoints = append(debugger.Watchpoints, reg)
}

// Deletes a write watchpoint at `reg`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteWatchpoint(reg uint32) {
	debugger.mu.Lock()
	defer debugger.mu.Unlock()

	for idx, watchpoint := range debugger.Watchpoints {
		if watchpoint == reg {
			debugger.Watchpoints = append(
				debugger.Watchpoints[:idx],
				debugger.Watchpoints[idx+1:]...,
			)
			return
		}
	}
}

// Called by the dispatcher before a packet is executed
func (debugger *Debugger) packet(pkt Packet) {
	debugger.mu.Lock()
	hit := false
	for _, breakpoint := range debugger.Breakpoints {
		if breakpoint == pkt.Header.Opcode() {
			hit = true
			debugger.BreakHits++
			break
		}
	}
	onBreak := debugger.OnBreak
	debugger.mu.Unlock()

	if !hit {
		return
	}
	logger.Logf(logger.Allow, "debugger", "reached breakpoint %s at word %d", pkt.Header.Opcode(), pkt.Offset)
	if onBreak != nil {
		onBreak(pkt)
	}
}

// Called by the dispatcher after `count` registers starting at absolute
// offset `start` have been written
func (debugger *Debugger) registersWritten(regs *Registers, start uint32, count uint32) {
	debugger.mu.Lock()
	var hits []uint32
	for _, watchpoint := range debugger.Watchpoints {
		if watchpoint >= start && watchpoint-start < count {
			hits = append(hits, watchpoint)
			debugger.WatchHits++
		}
	}
	onWatch := debugger.OnWatch
	debugger.mu.Unlock()

	for _, reg := range hits {
		val := regs.Load(reg)
		logger.Logf(logger.Allow, "debugger", "triggered write watchpoint 0x%x = 0x%08x", reg, val)
		if onWatch != nil {
			onWatch(reg, val)
		}
	}
}
