// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wspipe implements the outbound write pipeline of a WebSocket /
// HTTP/1.1 / HTTP/2 endpoint: RFC 6455 (revision 13) and HTTP/2 framing,
// an extension transform chain, client-side masking, partial-send
// buffering, and a chunked, range-aware static-file streaming loop.
//
// Semantics and design:
//   - Headroom framing: payloads travel in a FrameBuffer that reserves
//     writable scratch before the payload, so frame headers are written in
//     place and the framed result is contiguous without copying.
//   - Non-blocking first: iox.ErrWouldBlock is surfaced as a control-flow
//     signal (re-exposed as wspipe.ErrWouldBlock). A short transport write
//     is not an error; the residue is stashed and redelivered on the next
//     writable event, ahead of any fresh payload.
//   - Event-loop discipline: one Service per loop goroutine, one write per
//     connection per writable event, and ServiceWritable as the single
//     sanctioned re-entry point. No locks; the loop serializes everything.
//
// A typical server-side frame write:
//
//	fb := wspipe.BufferFor(payload)
//	n, err := conn.Write(fb, wspipe.WriteProtocol{Kind: wspipe.KindText})
//
// The returned count covers payload bytes the library took custody of;
// framing bytes are added in the headroom and never counted.
package wspipe
