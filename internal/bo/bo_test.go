package bo

import (
	"encoding/binary"
	"testing"
)

func TestNativeReturnsValidByteOrder(t *testing.T) {
	b := Native()
	if b != binary.BigEndian && b != binary.LittleEndian {
		t.Fatalf("unexpected byte order: %T", b)
	}
}

// The masking fast path depends on PutUint64(Uint64(x)) being the identity
// for the native order, whichever one it is.
func TestNativeRoundTrip(t *testing.T) {
	b := Native()
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	var dst [8]byte
	b.PutUint64(dst[:], b.Uint64(src))
	if dst != [8]byte{1, 2, 3, 4, 5, 6, 7, 8} {
		t.Fatalf("round trip mismatch: %v", dst)
	}
}
