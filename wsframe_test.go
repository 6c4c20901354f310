// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"bytes"
	"testing"
)

func TestWSFrameHeader_LengthEncodingBoundaries(t *testing.T) {
	for _, tc := range []struct {
		payload int
		wantPre int
	}{
		{125, 2},
		{126, 4},
		{65535, 4},
		{65536, 10},
	} {
		tw := &scriptedWriter{}
		c := newTestConn(t, WSServer, tw)
		fb := NewFrameBuffer(tc.payload)
		if err := fb.SetLen(tc.payload); err != nil {
			t.Fatalf("len=%d: %v", tc.payload, err)
		}
		pre, err := c.wsWriteFrameHeader(fb, WriteProtocol{Kind: KindBinary}, 0)
		if err != nil {
			t.Fatalf("len=%d: %v", tc.payload, err)
		}
		if pre != tc.wantPre {
			t.Fatalf("len=%d: pre=%d want=%d", tc.payload, pre, tc.wantPre)
		}
	}
}

func TestWSFrameHeader_SmallServerText(t *testing.T) {
	tw := &scriptedWriter{}
	c := newTestConn(t, WSServer, tw)
	fb := BufferFor([]byte("hello"))
	pre, err := c.wsWriteFrameHeader(fb, WriteProtocol{Kind: KindText}, 0)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	want := []byte{0x81, 0x05}
	if got := fb.framed(pre)[:2]; !bytes.Equal(got, want) {
		t.Fatalf("header=%x want=%x", got, want)
	}
}

func TestWSFrameHeader_NoFinSuppressesFin(t *testing.T) {
	tw := &scriptedWriter{}
	c := newTestConn(t, WSServer, tw)
	fb := BufferFor([]byte("frag"))
	pre, err := c.wsWriteFrameHeader(fb, WriteProtocol{Kind: KindText, NoFin: true}, 0)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if b0 := fb.framed(pre)[0]; b0&wsFinBit != 0 {
		t.Fatalf("FIN set on NO_FIN write: %02x", b0)
	}
}

func TestWSFrameHeader_ClientMaskBitAndKeyPlacement(t *testing.T) {
	tw := &scriptedWriter{}
	c := newTestConn(t, WSClient, tw, WithEntropy(bytes.NewReader([]byte{0x11, 0x22, 0x33, 0x44})))
	if err := c.newMask(); err != nil {
		t.Fatalf("mask: %v", err)
	}
	fb := BufferFor(bytes.Repeat([]byte{'a'}, 200))
	pre, err := c.wsWriteFrameHeader(fb, WriteProtocol{Kind: KindBinary}, 0)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	h := fb.framed(pre)
	want := []byte{0x82, 0xfe, 0x00, 0xc8, 0x11, 0x22, 0x33, 0x44}
	if !bytes.Equal(h[:8], want) {
		t.Fatalf("header=%x want=%x", h[:8], want)
	}
}

func TestMaskPayload_WordPathMatchesScalar(t *testing.T) {
	mask := [4]byte{0xde, 0xad, 0xbe, 0xef}
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	want := make([]byte, len(payload))
	for i := range payload {
		want[i] = payload[i] ^ mask[i&3]
	}

	got := append([]byte(nil), payload...)
	w := &wsState{mask: mask}
	w.maskPayload(got)
	if !bytes.Equal(got, want) {
		t.Fatalf("word-path mask diverges from scalar reference")
	}
}

func TestMaskPayload_ContinuesAcrossPasses(t *testing.T) {
	mask := [4]byte{1, 2, 3, 4}
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}

	want := make([]byte, len(payload))
	for i := range payload {
		want[i] = payload[i] ^ mask[i&3]
	}

	// Mask in uneven pieces; the key index must carry across.
	got := append([]byte(nil), payload...)
	w := &wsState{mask: mask}
	w.maskPayload(got[:7])
	w.maskPayload(got[7:30])
	w.maskPayload(got[30:])
	if !bytes.Equal(got, want) {
		t.Fatalf("split masking diverges from one-shot reference")
	}
}

func TestWriteProtocol_PackRoundTrip(t *testing.T) {
	for _, wp := range []WriteProtocol{
		{Kind: KindText},
		{Kind: KindBinary, NoFin: true},
		{Kind: KindClose, H2StreamEnd: true},
		{Kind: KindHTTPHeadersContinuation, NoFin: true, H2StreamEnd: true},
	} {
		if got := unpackWriteProtocol(wp.pack()); got != wp {
			t.Fatalf("round trip: got=%+v want=%+v", got, wp)
		}
	}
}
