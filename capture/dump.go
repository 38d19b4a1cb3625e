package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeozeozeo/gopm4/emulator"
)

// Largest buffer accepted by Import, in words
const MAX_DUMP_WORDS = 1 << 24

// Import reads a raw dump and appends every buffer it holds. A dump is a
// sequence of little endian words, each buffer prefixed by its word count.
// Buffers are checked for packet framing before being stored. Returns the
// number of buffers imported
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	n := 0

	for {
		var count uint32
		err := binary.Read(br, binary.LittleEndian, &count)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("dump buffer %d: %w", n, err)
		}
		if count == 0 || count > MAX_DUMP_WORDS {
			return n, fmt.Errorf("dump buffer %d: invalid word count %d", n, count)
		}

		words := make([]uint32, count)
		if err := binary.Read(br, binary.LittleEndian, words); err != nil {
			return n, fmt.Errorf("dump buffer %d: %w", n, err)
		}
		if err := emulator.Walk(words, func(emulator.Packet) error { return nil }); err != nil {
			return n, fmt.Errorf("dump buffer %d: %w", n, err)
		}

		if _, err := s.Append(ctx, words); err != nil {
			return n, err
		}
		n++
	}
}

// Export writes every captured buffer in the format read by Import
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	err := s.Each(ctx, func(rec Record) error {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(rec.Words))); err != nil {
			return err
		}
		return binary.Write(bw, binary.LittleEndian, rec.Words)
	})
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return bw.Flush()
}
