package emulator

// Initial capacity of a Ring. Must be a power of two
const RING_INITIAL_SIZE = 16

// Growable FIFO of command buffers. Read and write pointers run freely and
// are masked with the (power of two) buffer size on access
type Ring struct {
	Buffer   []CommandBuffer
	WritePtr uint64 // Write pointer
	ReadPtr  uint64 // Read pointer
}

// Returns a new Ring instance
func NewRing() *Ring {
	return &Ring{Buffer: make([]CommandBuffer, RING_INITIAL_SIZE)}
}

// Returns true if the ring is empty
func (ring *Ring) IsEmpty() bool {
	// if the read and write pointers are the same, the ring is empty
	return ring.WritePtr == ring.ReadPtr
}

// Returns true if the next Push has to grow the buffer
func (ring *Ring) IsFull() bool {
	return ring.Length() == uint64(len(ring.Buffer))
}

// Returns the number of queued elements
func (ring *Ring) Length() uint64 {
	return ring.WritePtr - ring.ReadPtr
}

func (ring *Ring) mask() uint64 {
	return uint64(len(ring.Buffer)) - 1
}

// Resets the ring
func (ring *Ring) Clear() {
	for i := range ring.Buffer {
		ring.Buffer[i] = CommandBuffer{}
	}
	ring.ReadPtr = 0
	ring.WritePtr = 0
}

// Pushes a command buffer to the back of the ring, doubling the storage when
// it is full
func (ring *Ring) Push(cmdbuf CommandBuffer) {
	if ring.IsFull() {
		ring.grow()
	}
	ring.Buffer[ring.WritePtr&ring.mask()] = cmdbuf
	ring.WritePtr++
}

// Removes and returns the command buffer at the front of the ring
func (ring *Ring) Pop() CommandBuffer {
	if ring.IsEmpty() {
		panicFmt("ring: pop from empty ring")
	}
	idx := ring.ReadPtr & ring.mask()
	cmdbuf := ring.Buffer[idx]
	// drop the reference to the producer's memory
	ring.Buffer[idx] = CommandBuffer{}
	ring.ReadPtr++
	return cmdbuf
}

// Returns the command buffer at the front of the ring without removing it
func (ring *Ring) Front() CommandBuffer {
	if ring.IsEmpty() {
		panicFmt("ring: front of empty ring")
	}
	return ring.Buffer[ring.ReadPtr&ring.mask()]
}

func (ring *Ring) grow() {
	size := len(ring.Buffer) * 2
	if size == 0 {
		size = RING_INITIAL_SIZE
	}
	buffer := make([]CommandBuffer, size)
	n := ring.Length()
	for i := uint64(0); i < n; i++ {
		buffer[i] = ring.Buffer[(ring.ReadPtr+i)&ring.mask()]
	}
	ring.Buffer = buffer
	ring.ReadPtr = 0
	ring.WritePtr = n
}
