package emulator

import (
	"sync"
	"time"
)

// Clock that only advances when slept on
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	slept   time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	c.slept += d
	n := c.sleeps
	onSleep := c.onSleep
	c.mu.Unlock()

	if onSleep != nil {
		onSleep(n)
	}
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// Word addressed guest memory
type mapMemory struct {
	mu    sync.Mutex
	words map[uint64]uint32
}

func newMapMemory() *mapMemory {
	return &mapMemory{words: make(map[uint64]uint32)}
}

func (m *mapMemory) Read32(addr uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[addr]
}

func (m *mapMemory) Write32(addr uint64, val uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[addr] = val
}

type recordingFences struct {
	events []FenceEvent
}

func (f *recordingFences) Signal(ev FenceEvent) {
	f.events = append(f.events, ev)
}

type recordingInterrupts struct {
	ids []Interrupt
}

func (r *recordingInterrupts) Signal(id Interrupt) {
	r.ids = append(r.ids, id)
}

// Returns a dispatcher wired to test collaborators
func newTestDispatcher() (*Dispatcher, *DrawData, *recordingFences, *recordingInterrupts, *mapMemory, *fakeClock) {
	draws := NewDrawData(0)
	fences := &recordingFences{}
	irq := &recordingInterrupts{}
	mem := newMapMemory()
	clock := newFakeClock()

	d := NewDispatcher(NewRegisters())
	d.Rasterizer = draws
	d.Fences = fences
	d.Interrupts = irq
	d.Memory = mem
	d.Clock = clock
	return d, draws, fences, irq, mem, clock
}
