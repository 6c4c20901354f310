// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

// Connection modes and mode→framing defaults.
//
// Single source of truth — mode → (framing, masking, extra headroom):
//   - WSClient        → RFC 6455 framing, masked, Pre headroom
//   - WSServer        → RFC 6455 framing, unmasked, Pre headroom
//   - HTTP1Serving    → no framing (chunking done by the file pump)
//   - HTTP2Serving    → HTTP/2 DATA/HEADERS framing, Pre + 9 headroom
//   - HTTP2WSServing  → RFC 6455 inside HTTP/2 DATA, Pre + 9 headroom

// Mode selects the outbound framing applied by the write dispatcher.
type Mode uint8

const (
	WSClient Mode = iota + 1
	WSServer
	HTTP1Serving
	HTTP2Serving
	HTTP2WSServing
)

// websocket reports whether the mode emits RFC 6455 frames.
func (m Mode) websocket() bool {
	switch m {
	case WSClient, WSServer, HTTP2WSServing:
		return true
	default:
		return false
	}
}

// h2 reports whether the mode wraps output in HTTP/2 frames.
func (m Mode) h2() bool {
	switch m {
	case HTTP2Serving, HTTP2WSServing:
		return true
	default:
		return false
	}
}

// maskOutbound reports whether data frames carry a per-frame mask. Only a
// WebSocket client masks; a server never does.
func (m Mode) maskOutbound() bool { return m == WSClient }

// State is the connection lifecycle phase relevant to the write path.
type State uint8

const (
	StateHTTP State = iota
	StateWSEstablished
	StateReturnedCloseAlready
	StateWaitingToSendClose
	StateAwaitingCloseAck
	StateFlushingSendBeforeClose
)

// closeHandshake reports whether the state permits a CLOSE frame even though
// ordinary data writes are dropped.
func (s State) closeHandshake() bool {
	switch s {
	case StateWSEstablished, StateWaitingToSendClose, StateReturnedCloseAlready:
		return true
	default:
		return false
	}
}

// WriteKind selects the frame type for one dispatcher call.
type WriteKind uint8

const (
	KindContinuation WriteKind = iota
	KindText
	KindBinary
	KindClose
	KindPing
	KindPong
	KindHTTP
	KindHTTPFinal
	KindHTTPHeaders
	KindHTTPHeadersContinuation
)

// control reports whether the kind is a WebSocket control frame. Control
// frames bypass the extension TX pass and are never fragmented.
func (k WriteKind) control() bool {
	switch k {
	case KindClose, KindPing, KindPong:
		return true
	default:
		return false
	}
}

// http reports whether the kind takes the raw HTTP path, skipping WebSocket
// framing entirely.
func (k WriteKind) http() bool {
	switch k {
	case KindHTTP, KindHTTPFinal, KindHTTPHeaders, KindHTTPHeadersContinuation:
		return true
	default:
		return false
	}
}

// WriteProtocol is the dispatcher's per-call write descriptor.
//
// NoFin suppresses the FIN bit (more fragments follow). H2StreamEnd forces
// END_STREAM on the wrapping HTTP/2 frame regardless of body accounting.
type WriteProtocol struct {
	Kind        WriteKind
	NoFin       bool
	H2StreamEnd bool
}

const (
	wpKindMask     = 0x1f
	wpStashMask    = 0x3f
	wpNoFinBit     = 0x40
	wpH2StreamEnd  = 0x80
	wpHighBitsMask = 0xc0
)

// pack serializes to the compact 8-bit form used for stashing: kind in the
// low 5 bits, NoFin at 0x40, H2StreamEnd at 0x80.
func (wp WriteProtocol) pack() uint8 {
	b := uint8(wp.Kind) & wpKindMask
	if wp.NoFin {
		b |= wpNoFinBit
	}
	if wp.H2StreamEnd {
		b |= wpH2StreamEnd
	}
	return b
}

func unpackWriteProtocol(b uint8) WriteProtocol {
	return WriteProtocol{
		Kind:        WriteKind(b & wpKindMask),
		NoFin:       b&wpNoFinBit != 0,
		H2StreamEnd: b&wpH2StreamEnd != 0,
	}
}
