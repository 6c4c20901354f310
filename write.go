// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

// Write is the public write entry point. fb's payload is framed according
// to the connection mode and wp, transformed by the extension chain, and
// issued to the transport.
//
// Return mapping:
//   - (len, nil): the library took custody of the whole payload, either
//     fully sent or stashed for redelivery on the next writable event.
//   - (m, nil), 0 <= m < len: partial acceptance (HTTP/2 flow-control
//     clamp); retry the remainder after the next writable event.
//   - (0, nil): dropped because the connection state does not permit
//     sending.
//   - (0, ErrWouldBlock): an HTTP/2 credit stall; resume on WINDOW_UPDATE.
//   - (0, err): fatal; tear the connection down.
//
// Write must be called at most once per writable event, from the writable
// callback.
func (c *Conn) Write(fb *FrameBuffer, wp WriteProtocol) (int, error) {
	// A child whose parent carries its I/O delegates the whole descriptor.
	if c.parentCarriesIO {
		if c.parent == nil || c.parent.onChildWrite == nil {
			return 0, ErrInvalidArgument
		}
		if err := c.parent.onChildWrite(c.parent, &ChildWrite{Child: c, Buf: fb, WP: wp}); err != nil {
			return 0, err
		}
		return fb.n, nil
	}

	if fb == nil || fb.n < 0 {
		return 0, ErrInvalidArgument
	}
	c.svc.stats.writeRequests.Add(1)
	c.touch()

	if c.ws != nil {
		// A draining extension owns the connection until it runs dry: the
		// kind is forced to CONTINUATION, stashed high bits preserved.
		if c.ws.txDraining {
			wp = c.drainingOverride()
		}
		// An extension ate a previous payload without emitting; re-offer
		// the remembered write type so FIN/opcode semantics survive.
		if c.ws.stashedWritePending {
			c.ws.stashedWritePending = false
			wp = unpackWriteProtocol(wpHighBitsMask | c.ws.stashedWriteType)
		}
	}

	// HTTP kinds never get WebSocket framing.
	if wp.Kind.http() {
		return c.writeHTTP(fb, wp)
	}

	if c.ws == nil {
		return 0, nil
	}
	// Data frames require an established session; a CLOSE may also go out
	// mid close-handshake. Anything else is silently dropped.
	if c.state != StateWSEstablished {
		if !(wp.Kind == KindClose && c.state.closeHandshake()) {
			return 0, nil
		}
	}

	orig := fb.n
	working := fb
	rsv := byte(0)

	if !c.ws.insideFrame {
		// Extension TX pass. Control frames must traverse the wire
		// unmodified, so they skip it.
		if !wp.Kind.control() && len(c.exts) > 0 {
			tok := ExtTokens{Buf: fb}
			more, err := c.extPayloadTx(&tok, wp)
			if err != nil {
				return 0, err
			}
			if more {
				c.startDraining(wp)
				wp.NoFin = true
			}
			working = tok.Buf
			if working != fb {
				c.ws.cleanBuffer = false
			}
			rsv = tok.Rsv
			if working.n == 0 && orig > 0 {
				// Consumed input, emitted nothing: remember the write type
				// for the next pass and report custody to the caller.
				c.ws.stashedWritePending = true
				c.ws.stashedWriteType = wp.pack() & wpStashMask
				return orig, nil
			}
		}

		// WebSocket frames inside HTTP/2 DATA cannot be split without
		// corrupting frame boundaries, so the whole frame must fit in the
		// flow-control window.
		if c.mode == HTTP2WSServing {
			need := working.n + wsHeaderUpperBound(working.n)
			if c.h2ClampToCredit(need) < need {
				return 0, ErrWouldBlock
			}
		}

		if c.mode.maskOutbound() {
			if err := c.newMask(); err != nil {
				return 0, err
			}
		}
	}

	var pre int
	if !c.ws.insideFrame {
		var err error
		pre, err = c.wsWriteFrameHeader(working, wp, rsv)
		if err != nil {
			return 0, err
		}
	}
	if c.mode.maskOutbound() {
		c.ws.maskPayload(working.Payload())
	}

	if c.mode == HTTP2WSServing {
		total := pre + working.n
		if working.headroom() < pre+h2FrameHeaderLen {
			return 0, ErrInvalidArgument
		}
		flags := c.h2Flags(WriteProtocol{Kind: KindHTTP, H2StreamEnd: wp.H2StreamEnd}, false)
		h2WriteFrameHeader(working.storage[working.start-pre-h2FrameHeaderLen:working.start-pre], total, h2FrameData, flags, c.h2.sid)
		c.h2ConsumeCredit(total)
		pre += h2FrameHeaderLen
	}

	if _, err := c.issueRawExtAccess(working.framed(pre)); err != nil {
		return 0, err
	}

	// Residue keeps the frame open: no new header until its last byte is
	// acknowledged.
	c.ws.insideFrame = c.pending.hasResidue()

	if wp.Kind == KindClose {
		if c.pending.hasResidue() {
			c.state = StateWaitingToSendClose
			c.ws.closePending = true
		} else if c.state == StateWSEstablished || c.state == StateWaitingToSendClose {
			c.state = StateAwaitingCloseAck
		}
	}
	return orig, nil
}

// wsHeaderUpperBound is the header size for a payload of length l on this
// connection-independent worst case (no mask: h2-ws frames are
// server-emitted).
func wsHeaderUpperBound(l int) int {
	switch {
	case l < wsLen16:
		return 2
	case l <= 0xffff:
		return 4
	default:
		return 10
	}
}

// writeHTTP is the raw HTTP path: no WebSocket framing. Plain HTTP/1 bodies
// go straight to the raw issuer; HTTP/2 wraps the payload in one
// DATA/HEADERS/CONTINUATION frame and obeys the stream's flow-control
// window.
func (c *Conn) writeHTTP(fb *FrameBuffer, wp WriteProtocol) (int, error) {
	orig := fb.n
	body := wp.Kind == KindHTTP || wp.Kind == KindHTTPFinal

	n := orig
	if c.mode.h2() && body {
		n = c.h2ClampToCredit(n)
		if n == 0 && orig > 0 {
			return 0, ErrWouldBlock
		}
		if n < orig {
			// The remainder is still coming: this frame must not end the
			// stream or the transaction.
			wp.Kind = KindHTTP
			wp.H2StreamEnd = false
		}
	}

	// Body accounting. Once the declared content is exhausted the write is
	// promoted to HTTPFinal.
	contentDone := false
	if h := c.http; h != nil && body && h.txContentLength > 0 {
		if int64(n) >= h.txContentRemain {
			h.txContentRemain = 0
			contentDone = true
			wp.Kind = KindHTTPFinal
		} else {
			h.txContentRemain -= int64(n)
		}
	}

	if !c.mode.h2() {
		if _, err := c.issueRawExtAccess(fb.framed(0)); err != nil {
			return 0, err
		}
		return orig, nil
	}

	if fb.headroom() < h2FrameHeaderLen {
		return 0, ErrInvalidArgument
	}
	if n > h2MaxFrameLen {
		return 0, ErrTooLong
	}
	flags := c.h2Flags(wp, contentDone)
	h2WriteFrameHeader(fb.storage[fb.start-h2FrameHeaderLen:fb.start], n, h2FrameType(wp.Kind), flags, c.h2.sid)
	if _, err := c.issueRawExtAccess(fb.storage[fb.start-h2FrameHeaderLen : fb.start+n]); err != nil {
		return 0, err
	}
	if body {
		c.h2ConsumeCredit(n)
	}
	return n, nil
}
