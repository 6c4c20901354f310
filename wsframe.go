// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"code.hybscloud.com/wspipe/internal/bo"
)

// RFC 6455 (revision 13) frame constants.
const (
	wsOpContinuation = 0x0
	wsOpText         = 0x1
	wsOpBinary       = 0x2
	wsOpClose        = 0x8
	wsOpPing         = 0x9
	wsOpPong         = 0xa

	wsFinBit  = 0x80
	wsMaskBit = 0x80

	wsLen16 = 126
	wsLen64 = 127

	wsMaskKeyLen = 4
)

func wsOpcode(k WriteKind) byte {
	switch k {
	case KindText:
		return wsOpText
	case KindBinary:
		return wsOpBinary
	case KindClose:
		return wsOpClose
	case KindPing:
		return wsOpPing
	case KindPong:
		return wsOpPong
	default:
		return wsOpContinuation
	}
}

// wsWriteFrameHeader writes the RFC 6455 header into the headroom preceding
// fb's payload and returns the header length. For a client the 4 mask key
// bytes sit immediately before the payload and the MASK bit is set; a
// server never masks.
//
// Header sizing: 2 bytes below 126, 4 bytes below 65536, 10 bytes above.
// The 64-bit length field carries a 63-bit unsigned value; payloads above
// 4GiB cannot be represented on 32-bit hosts and are rejected outright.
func (c *Conn) wsWriteFrameHeader(fb *FrameBuffer, wp WriteProtocol, rsv byte) (int, error) {
	l := fb.n
	if l < 0 {
		return 0, ErrInvalidArgument
	}
	if strconv.IntSize == 32 && uint64(l) > math.MaxUint32 {
		return 0, ErrTooLong
	}

	var pre int
	switch {
	case l < wsLen16:
		pre = 2
	case l <= math.MaxUint16:
		pre = 4
	default:
		pre = 10
	}
	masked := c.mode.maskOutbound()
	if masked {
		pre += wsMaskKeyLen
	}
	if fb.headroom() < pre {
		return 0, ErrInvalidArgument
	}

	b0 := wsOpcode(wp.Kind) | rsv&0x70
	if !wp.NoFin {
		b0 |= wsFinBit
	}

	h := fb.storage[fb.start-pre : fb.start]
	h[0] = b0
	switch {
	case l < wsLen16:
		h[1] = byte(l)
	case l <= math.MaxUint16:
		h[1] = wsLen16
		binary.BigEndian.PutUint16(h[2:], uint16(l))
	default:
		h[1] = wsLen64
		binary.BigEndian.PutUint64(h[2:], uint64(l)&math.MaxInt64)
	}
	if masked {
		h[1] |= wsMaskBit
		copy(h[pre-wsMaskKeyLen:], c.ws.mask[:])
	}
	return pre, nil
}

// newMask draws the per-frame masking nonce. Called once per outbound
// client frame, on the not-inside-frame to inside-frame transition.
func (c *Conn) newMask() error {
	if _, err := io.ReadFull(c.entropy, c.ws.mask[:]); err != nil {
		return err
	}
	c.ws.maskIdx = 0
	return nil
}

// maskPayload XORs buf in place with the frame mask, continuing from the
// current key position so a frame masked across multiple passes stays
// aligned. Long runs go eight bytes at a time through a key word built in
// native byte order; short runs and tails take the scalar path.
func (w *wsState) maskPayload(buf []byte) {
	p := int(w.maskIdx)
	if len(buf) < 16 {
		for i := range buf {
			buf[i] ^= w.mask[p&3]
			p++
		}
		w.maskIdx = uint32(p & 3)
		return
	}
	var k [8]byte
	for i := 0; i < 8; i++ {
		k[i] = w.mask[(p+i)&3]
	}
	nbo := bo.Native()
	km := nbo.Uint64(k[:])
	n := (len(buf) / 8) * 8
	for i := 0; i < n; i += 8 {
		nbo.PutUint64(buf[i:], nbo.Uint64(buf[i:i+8])^km)
	}
	p += n
	for i := n; i < len(buf); i++ {
		buf[i] ^= w.mask[p&3]
		p++
	}
	w.maskIdx = uint32(p & 3)
}
