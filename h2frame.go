// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "encoding/binary"

// HTTP/2 frame constants (RFC 9113 §4.1, §6).
const (
	h2FrameData         = 0x0
	h2FrameHeaders      = 0x1
	h2FrameContinuation = 0x9

	h2FlagEndStream  = 0x1
	h2FlagEndHeaders = 0x4

	h2MaxFrameLen = 1<<24 - 1
)

// h2FrameType maps the write kind onto the HTTP/2 frame type. Body writes
// (and WebSocket-over-H2 frames) travel as DATA.
func h2FrameType(k WriteKind) byte {
	switch k {
	case KindHTTPHeaders:
		return h2FrameHeaders
	case KindHTTPHeadersContinuation:
		return h2FrameContinuation
	default:
		return h2FrameData
	}
}

// h2WriteFrameHeader writes the 9-byte frame header into dst: 24-bit
// length, type, flags, and the 31-bit stream id with the reserved MSB
// cleared.
func h2WriteFrameHeader(dst []byte, length int, typ, flags byte, sid uint32) {
	dst[0] = byte(length >> 16)
	dst[1] = byte(length >> 8)
	dst[2] = byte(length)
	dst[3] = typ
	dst[4] = flags
	binary.BigEndian.PutUint32(dst[5:], sid&0x7fffffff)
}

// h2Flags computes the frame flags for one write.
//
// END_HEADERS goes on the last HEADERS/CONTINUATION fragment (no NoFin).
// END_STREAM goes on a body frame when the caller selected HTTPFinal,
// passed the stream-end hint, or content accounting ran out.
func (c *Conn) h2Flags(wp WriteProtocol, contentDone bool) byte {
	var flags byte
	switch wp.Kind {
	case KindHTTPHeaders, KindHTTPHeadersContinuation:
		if !wp.NoFin {
			flags |= h2FlagEndHeaders
		}
		if wp.H2StreamEnd {
			flags |= h2FlagEndStream
			c.h2.sendEndStream = true
		}
	default:
		if wp.Kind == KindHTTPFinal || wp.H2StreamEnd || contentDone {
			flags |= h2FlagEndStream
			c.h2.sendEndStream = true
		}
	}
	return flags
}

// h2ClampToCredit limits a body write to the stream's flow-control window.
// It does not consume the credit; h2ConsumeCredit does that once the frame
// is committed. Zero credit means nothing may move until a WINDOW_UPDATE
// arrives.
func (c *Conn) h2ClampToCredit(n int) int {
	credit := c.h2.txCredit
	if credit <= 0 {
		return 0
	}
	if int32(n) > credit {
		n = int(credit)
	}
	return n
}

// h2ConsumeCredit decrements the window by the DATA bytes committed.
func (c *Conn) h2ConsumeCredit(n int) {
	c.h2.txCredit -= int32(n)
}
