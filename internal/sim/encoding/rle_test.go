package encoding

import (
	"errors"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10)

	enc := EncodeRLE(in)
	if len(enc) >= len(in) {
		t.Fatalf("encoded %d bytes for %d ids", len(enc), len(in))
	}
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_Empty(t *testing.T) {
	out, err := DecodeRLE(EncodeRLE(nil), 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}

func TestDecodeRLE_RejectsWrongLength(t *testing.T) {
	enc := EncodeRLE([]uint16{4, 4, 4, 4})
	for _, want := range []int{3, 5} {
		if _, err := DecodeRLE(enc, want); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("want=%d err=%v", want, err)
		}
	}
	if _, err := DecodeRLE([]byte{0x80}, 1); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("truncated varint accepted: %v", err)
	}
}
