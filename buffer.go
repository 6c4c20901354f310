// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

// Pre is the framing headroom reserved immediately before a payload. It is
// large enough for any single RFC 6455 header combination (10-byte header
// plus 4-byte mask). HTTP/2 modes reserve h2FrameHeaderLen on top.
const Pre = 16

// h2FrameHeaderLen is the fixed HTTP/2 frame header size: 24-bit length,
// 8-bit type, 8-bit flags, 32-bit stream id.
const h2FrameHeaderLen = 9

// FrameBuffer carries a payload with first-class, bounds-checked framing
// headroom. Framers write headers into [start-pre, start) so the framed
// result is contiguous without copying the payload.
//
// The headroom bytes are library scratch: callers must not rely on their
// contents after a write.
type FrameBuffer struct {
	storage []byte
	start   int
	n       int
}

// NewFrameBuffer returns an empty FrameBuffer with capacity for a size-byte
// payload plus full framing headroom.
func NewFrameBuffer(size int) *FrameBuffer {
	if size < 0 {
		size = 0
	}
	head := Pre + h2FrameHeaderLen
	return &FrameBuffer{storage: make([]byte, head+size), start: head}
}

// BufferFor copies payload into a freshly allocated FrameBuffer.
func BufferFor(payload []byte) *FrameBuffer {
	fb := NewFrameBuffer(len(payload))
	copy(fb.storage[fb.start:], payload)
	fb.n = len(payload)
	return fb
}

// frameBufferOver aliases an existing allocation. start bytes before the
// payload must be writable scratch; the caller guarantees start >= Pre.
func frameBufferOver(storage []byte, start, n int) *FrameBuffer {
	return &FrameBuffer{storage: storage, start: start, n: n}
}

// Payload returns the current payload slice.
func (fb *FrameBuffer) Payload() []byte { return fb.storage[fb.start : fb.start+fb.n] }

// Len returns the payload length.
func (fb *FrameBuffer) Len() int { return fb.n }

// SetLen resizes the payload within the buffer's capacity.
func (fb *FrameBuffer) SetLen(n int) error {
	if n < 0 || fb.start+n > len(fb.storage) {
		return ErrInvalidArgument
	}
	fb.n = n
	return nil
}

// headroom returns the writable scratch bytes preceding the payload.
func (fb *FrameBuffer) headroom() int { return fb.start }

// framed returns the contiguous region [start-pre, start+n): the frame
// header written into the headroom followed by the payload.
func (fb *FrameBuffer) framed(pre int) []byte {
	return fb.storage[fb.start-pre : fb.start+fb.n]
}
