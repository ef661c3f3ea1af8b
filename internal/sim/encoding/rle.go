// Package encoding holds compact encodings of chunk block data.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrCorrupt = errors.New("rle: corrupt data")

// EncodeRLE encodes block ids as repeated uvarint (id, run_len) pairs. Chunk columns
// are mostly long runs of stone or air, so this is far smaller than the raw slice.
func EncodeRLE(ids []uint16) []byte {
	out := make([]byte, 0, 64)
	for i := 0; i < len(ids); {
		b := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == b {
			run++
		}
		out = binary.AppendUvarint(out, uint64(b))
		out = binary.AppendUvarint(out, uint64(run))
		i += run
	}
	return out
}

// DecodeRLE expands raw and requires exactly want ids.
func DecodeRLE(raw []byte, want int) ([]uint16, error) {
	out := make([]uint16, 0, want)
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at %d", ErrCorrupt, i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at %d", ErrCorrupt, i)
		}
		i += n
		if b > 0xFFFF {
			return nil, fmt.Errorf("%w: block id too large: %d", ErrCorrupt, b)
		}
		if run == 0 || run > uint64(want-len(out)) {
			return nil, fmt.Errorf("%w: run of %d overflows %d ids", ErrCorrupt, run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(b))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("%w: %d ids, want %d", ErrCorrupt, len(out), want)
	}
	return out, nil
}
