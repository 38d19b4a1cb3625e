package emulator

// Assembles type 3 packet streams
type Builder struct {
	words []uint32
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Returns the assembled stream
func (b *Builder) Words() []uint32 {
	return b.words
}

// Returns the number of words assembled so far
func (b *Builder) Len() int {
	return len(b.words)
}

// Appends a packet with an arbitrary opcode and payload
func (b *Builder) Packet(op Opcode, payload ...uint32) *Builder {
	b.words = append(b.words, uint32(MakeType3Header(op, uint32(len(payload)))))
	b.words = append(b.words, payload...)
	return b
}

// Appends a NOP. The hardware has no zero length packets, so an empty
// payload becomes a single filler word
func (b *Builder) Nop(payload ...uint32) *Builder {
	if len(payload) == 0 {
		payload = []uint32{0}
	}
	return b.Packet(OPCODE_NOP, payload...)
}

// Appends a NOP carrying the flip marker. Markers are ignored in single
// word NOPs, so the marker is followed by a filler word
func (b *Builder) Flip() *Builder {
	return b.Nop(PAYLOAD_PATCHED_FLIP, 0)
}

func (b *Builder) setReg(op Opcode, offset uint32, values []uint32) *Builder {
	payload := append([]uint32{offset & 0xffff}, values...)
	return b.Packet(op, payload...)
}

func (b *Builder) SetContextReg(offset uint32, values ...uint32) *Builder {
	return b.setReg(OPCODE_SET_CONTEXT_REG, offset, values)
}

func (b *Builder) SetShReg(offset uint32, values ...uint32) *Builder {
	return b.setReg(OPCODE_SET_SH_REG, offset, values)
}

func (b *Builder) SetUconfigReg(offset uint32, values ...uint32) *Builder {
	return b.setReg(OPCODE_SET_UCONFIG_REG, offset, values)
}

func (b *Builder) IndexType(raw uint32) *Builder {
	return b.Packet(OPCODE_INDEX_TYPE, raw)
}

func (b *Builder) DrawIndex2(maxSize uint32, base uint64, count, initiator uint32) *Builder {
	return b.Packet(OPCODE_DRAW_INDEX_2, maxSize, uint32(base), uint32(base>>32), count, initiator)
}

func (b *Builder) DrawIndexAuto(count, initiator uint32) *Builder {
	return b.Packet(OPCODE_DRAW_INDEX_AUTO, count, initiator)
}

func (b *Builder) DispatchDirect(x, y, z, initiator uint32) *Builder {
	return b.Packet(OPCODE_DISPATCH_DIRECT, x, y, z, initiator)
}

// Appends an end of shader fence write of `data` to `addr`
func (b *Builder) EventWriteEos(eventType uint32, addr uint64, command EosCommand, data uint32) *Builder {
	return b.Packet(OPCODE_EVENT_WRITE_EOS,
		eventType&0x3f,
		uint32(addr),
		uint32(addr>>32)&0xffff|uint32(command)<<29,
		data,
	)
}

// Appends an end of pipe fence write
func (b *Builder) EventWriteEop(eventType uint32, addr uint64, dataSel DataSelect, intSel InterruptSelect, data uint64) *Builder {
	return b.Packet(OPCODE_EVENT_WRITE_EOP,
		eventType&0x3f,
		uint32(addr),
		uint32(addr>>32)&0xffff|uint32(intSel)<<24|uint32(dataSel)<<29,
		uint32(data),
		uint32(data>>32),
	)
}

func (b *Builder) DmaData(src, dst uint64, byteCount uint32) *Builder {
	return b.Packet(OPCODE_DMA_DATA,
		0,
		uint32(src), uint32(src>>32),
		uint32(dst), uint32(dst>>32),
		byteCount&0x1fffff,
	)
}

// Appends a WRITE_DATA of `data` to consecutive words at `addr`
func (b *Builder) WriteData(dstSel uint32, addr uint64, data ...uint32) *Builder {
	payload := append([]uint32{(dstSel & 0xf) << 8, uint32(addr), uint32(addr >> 32)}, data...)
	return b.Packet(OPCODE_WRITE_DATA, payload...)
}

func (b *Builder) AcquireMem(coherCntl uint32) *Builder {
	return b.Packet(OPCODE_ACQUIRE_MEM, coherCntl, 0xffffffff, 0xff, 0, 0, 10)
}

// Appends a WAIT_REG_MEM on the micro engine
func (b *Builder) WaitRegMem(fn CompareFunction, space MemSpace, addr uint64, ref, mask uint32) *Builder {
	return b.Packet(OPCODE_WAIT_REG_MEM,
		uint32(fn)&0x7|uint32(space)<<4|uint32(ENGINE_ME)<<8,
		uint32(addr), uint32(addr>>32),
		ref, mask, 10,
	)
}
