package emulator

import (
	"fmt"
	"sync"
)

// Receives interrupts raised by the command processor. Delivery to the guest
// is the implementation's concern
type InterruptController interface {
	Signal(id Interrupt)
}

// Represents an interrupt source
type Interrupt uint16

const (
	INTERRUPT_COMPUTE0_REL_MEM Interrupt = 0 // Compute queue 0 released memory
	INTERRUPT_GFX_EOP          Interrupt = 7 // Graphics end of pipe
	INTERRUPT_GFX_FLIP         Interrupt = 8 // Display flip requested
)

func (id Interrupt) String() string {
	switch id {
	case INTERRUPT_COMPUTE0_REL_MEM:
		return "compute0 rel mem"
	case INTERRUPT_GFX_EOP:
		return "gfx eop"
	case INTERRUPT_GFX_FLIP:
		return "gfx flip"
	default:
		return fmt.Sprintf("interrupt(%d)", uint16(id))
	}
}

// State of the interrupt register. Implements InterruptController
type IrqState struct {
	mu     sync.Mutex
	status uint16 // Interrupt status
	mask   uint16 // Interrupt mask

	// Called (outside the lock) for every interrupt that passes the mask
	OnRaise func(id Interrupt)
}

// Returns a new interrupt state with every source unmasked
func NewIrqState() *IrqState {
	return &IrqState{mask: 0xffff}
}

// Latches `id` in the status register
func (state *IrqState) Signal(id Interrupt) {
	state.mu.Lock()
	state.status |= 1 << id
	active := state.mask&(1<<id) != 0
	onRaise := state.OnRaise
	state.mu.Unlock()

	if active && onRaise != nil {
		onRaise(id)
	}
}

// Returns true if any interrupt is active
func (state *IrqState) Active() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return (state.status & state.mask) != 0
}

// Returns true if `id` has been latched
func (state *IrqState) Pending(id Interrupt) bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.status&(1<<id) != 0
}

// Keeps only the status bits set in `ack`
func (state *IrqState) Acknowledge(ack uint16) {
	state.mu.Lock()
	state.status &= ack
	state.mu.Unlock()
}

func (state *IrqState) SetMask(mask uint16) {
	state.mu.Lock()
	state.mask = mask
	state.mu.Unlock()
}

func (state *IrqState) Status() uint16 {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.status
}
