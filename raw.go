// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "fmt"

// txCeiling is the per-call size cap for one raw issue: the protocol's
// tx packet size if set, else the larger of the rx buffer and the service
// scratch buffer, plus headroom slack.
func (c *Conn) txCeiling() int {
	n := c.txPacketSize
	if n <= 0 {
		n = c.rxBufferSize
		if len(c.svc.servBuf) > n {
			n = len(c.svc.servBuf)
		}
	}
	return n + Pre + 4
}

// issueRaw drives one transport write for an already-framed region and owns
// the partial-send residue. Custody semantics: when the transport accepts
// only part of a fresh buffer, the remainder is stashed and the full length
// is reported, so the caller treats the write as accepted.
//
// Calling it twice within one writable event, or with a buffer that does
// not alias pending residue, is a protocol misuse and fails without
// touching the transport.
func (c *Conn) issueRaw(p []byte) (int, error) {
	if c.couldHavePending {
		return 0, ErrWritePending
	}
	if c.socketUnusable {
		return 0, ErrTransportUnusable
	}

	hadResidue := c.pending.hasResidue()

	// Pre-close flush with nothing left to drain: the write is a no-op.
	if c.state == StateFlushingSendBeforeClose && !hadResidue {
		return len(p), nil
	}

	if hadResidue && !c.pending.aliases(p) {
		return 0, ErrResidueMismatch
	}

	attempt := len(p)
	if ceil := c.txCeiling(); attempt > ceil {
		attempt = ceil
	}

	c.svc.stats.rawCalls.Add(1)
	n, err := c.transportWrite(p[:attempt])
	if err == ErrWouldBlock {
		err = nil
	} else if err != nil {
		c.socketUnusable = true
		return 0, fmt.Errorf("wspipe: transport write: %w", err)
	}
	c.couldHavePending = true
	c.svc.stats.bytesWritten.Add(int64(n))

	if hadResidue {
		c.pending.advance(n)
		if !c.pending.hasResidue() && c.state == StateFlushingSendBeforeClose {
			// Flush complete; tell the caller to proceed to close.
			return n, ErrClosing
		}
		if c.pending.hasResidue() {
			c.CallbackOnWritable()
		}
		return n, nil
	}

	if n == len(p) {
		return n, nil
	}

	// New partial: take custody of the residue and report the full length.
	c.svc.stats.partialEvents.Add(1)
	c.svc.stats.partialBytes.Add(int64(len(p) - n))
	c.pending.stash(p[n:])
	c.CallbackOnWritable()
	return len(p), nil
}

// issueRawExtAccess offers the framed region to the extension chain first
// (an alternate transport may claim the wire write), then falls through to
// the raw issuer.
func (c *Conn) issueRawExtAccess(p []byte) (int, error) {
	n, err := c.extPacketTxDoSend(p)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		// Extension wrote the bytes; skip the socket.
		c.couldHavePending = true
		return len(p), nil
	}
	return c.issueRaw(p)
}
