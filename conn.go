// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"io"
	"time"
)

// Conn is the per-endpoint write-pipeline state. All methods must be called
// from the owning event-loop goroutine; the pipeline is never re-entered
// concurrently for one connection.
type Conn struct {
	svc       *Service
	mode      Mode
	state     State
	transport io.Writer
	entropy   io.Reader
	exts      []Extension

	ws   *wsState
	h2   *h2State
	http *httpState

	pending pendingBuffer

	// couldHavePending is set by the raw issuer after any write attempt and
	// reset only when the event loop services the next writable event. It
	// enforces the one-write-per-writable-event contract.
	couldHavePending bool

	// blockingSend is set when the transport reports would-block, as a flow
	// control hint; cleared on the next writable event.
	blockingSend bool

	socketUnusable bool
	wantWritable   bool

	parentCarriesIO bool
	parent          *Conn
	onChildWrite    func(parent *Conn, w *ChildWrite) error

	txPacketSize     int
	rxBufferSize     int
	contentTimeout   time.Duration
	contentDeadline  time.Time
	onFileCompletion func(*Conn) error

	lastWrite time.Time
}

// wsState is the WebSocket framing substate.
type wsState struct {
	// insideFrame is true from the first issued byte of a frame until its
	// last byte is acknowledged by the transport. While set, no new header
	// is prepended and the client mask is not regenerated.
	insideFrame bool

	mask    [4]byte
	maskIdx uint32

	// cleanBuffer is cleared when an extension substitutes its own buffer:
	// the wire bytes no longer alias the caller's payload, so short writes
	// must be absorbed whole into the residue buffer.
	cleanBuffer bool

	// Extension draining state.
	txDraining        bool
	drainingStashedWP uint8

	// Set when an extension consumed input but emitted nothing; the write
	// type is re-offered on the next pass so FIN/opcode semantics survive.
	stashedWritePending bool
	stashedWriteType    uint8

	closePending bool
}

// h2State is the HTTP/2 substate.
type h2State struct {
	sid           uint32
	sendEndStream bool
	txCredit      int32
}

// ChildWrite is the descriptor delegated to a parent connection that
// carries a child's I/O.
type ChildWrite struct {
	Child *Conn
	Buf   *FrameBuffer
	WP    WriteProtocol
}

// State returns the lifecycle phase.
func (c *Conn) State() State { return c.state }

// Mode returns the connection mode.
func (c *Conn) Mode() Mode { return c.mode }

// Unusable reports whether the transport previously failed fatally.
func (c *Conn) Unusable() bool { return c.socketUnusable }

// SetParent makes parent carry this connection's writes. The parent must
// have an OnChildWrite sink configured.
func (c *Conn) SetParent(parent *Conn) error {
	if parent == nil || parent.onChildWrite == nil {
		return ErrInvalidArgument
	}
	c.parent = parent
	c.parentCarriesIO = true
	return nil
}

// Establish marks the WebSocket session established and ready to send data
// frames. For WebSocket-over-HTTP/2 this follows the extended-CONNECT
// upgrade.
func (c *Conn) Establish() {
	if c.ws != nil {
		c.state = StateWSEstablished
	}
}

// SetStreamID assigns the HTTP/2 stream id.
func (c *Conn) SetStreamID(sid uint32) {
	if c.h2 != nil {
		c.h2.sid = sid & 0x7fffffff
	}
}

// TxCredit returns the remaining HTTP/2 stream-level flow-control window.
func (c *Conn) TxCredit() int32 {
	if c.h2 == nil {
		return 0
	}
	return c.h2.txCredit
}

// AddTxCredit applies a WINDOW_UPDATE. Crossing zero re-arms the writable
// callback so a stalled stream resumes.
func (c *Conn) AddTxCredit(n int32) {
	if c.h2 == nil {
		return
	}
	was := c.h2.txCredit
	c.h2.txCredit += n
	if was <= 0 && c.h2.txCredit > 0 {
		c.CallbackOnWritable()
	}
}

// CallbackOnWritable requests a writable callback from the event loop.
func (c *Conn) CallbackOnWritable() { c.wantWritable = true }

// WantWritable reports whether the connection asked for a writable callback.
func (c *Conn) WantWritable() bool { return c.wantWritable }

// BeginCloseFlush puts the connection into the flush-before-close phase:
// new writes no-op, and once the residue drains the raw issuer reports
// ErrClosing to signal teardown.
func (c *Conn) BeginCloseFlush() {
	c.state = StateFlushingSendBeforeClose
	if c.pending.hasResidue() {
		c.CallbackOnWritable()
	}
}

// pipeChoked reports whether the transport cannot accept more this event.
func (c *Conn) pipeChoked() bool {
	return c.blockingSend || c.pending.hasResidue() || c.socketUnusable
}

// ServiceWritable is the event-loop entry for a writable transport. It
// resets the per-event write guard, flushes any partial-send residue,
// drains extensions holding output, and advances an active file-serve
// transaction. When servicing issued nothing, the caller's own write may
// follow within the same event; after a residue flush with no file
// transaction active, the writable callback is re-armed and the caller's
// write takes the next event.
func (c *Conn) ServiceWritable() error {
	c.couldHavePending = false
	c.blockingSend = false
	c.wantWritable = false
	if c.socketUnusable {
		return ErrTransportUnusable
	}

	// Residue always drains ahead of fresh payload.
	if c.pending.hasResidue() {
		if _, err := c.issueRaw(c.pending.residue()); err != nil {
			return err
		}
		if c.pending.hasResidue() {
			// Transport choked again mid-residue.
			return nil
		}
		c.frameResidueDrained()
		if c.http == nil || !c.http.active {
			// This event went to the flush; the caller's fresh write gets
			// the next one.
			c.CallbackOnWritable()
			return nil
		}
	}
	c.frameResidueDrained()

	// Extensions holding output drain before ordinary writes.
	if c.ws != nil && c.ws.txDraining {
		c.couldHavePending = false
		if _, err := c.Write(NewFrameBuffer(0), WriteProtocol{Kind: KindContinuation}); err != nil {
			return err
		}
		if c.pipeChoked() {
			return nil
		}
	}

	if c.http != nil && c.http.active {
		return c.pumpFile()
	}
	return nil
}

// frameResidueDrained completes bookkeeping once the last stashed byte of a
// frame reached the wire.
func (c *Conn) frameResidueDrained() {
	if c.ws == nil || c.pending.hasResidue() {
		return
	}
	if c.ws.insideFrame {
		c.ws.insideFrame = false
	}
	if c.ws.closePending {
		c.ws.closePending = false
		if c.state == StateWaitingToSendClose {
			c.state = StateAwaitingCloseAck
		}
	}
}

// Close releases the connection's owned resources: the residue allocation
// and any open file transaction.
func (c *Conn) Close() error {
	c.pending.release()
	if c.http != nil && c.http.fd != nil {
		err := c.http.fd.Close()
		c.http.fd = nil
		c.http.active = false
		return err
	}
	return nil
}

// touch restarts the keepalive bookkeeping on any accepted write.
func (c *Conn) touch() { c.lastWrite = time.Now() }

// armContentTimeout (re)arms the file-serve content deadline.
func (c *Conn) armContentTimeout() {
	if c.contentTimeout > 0 {
		c.contentDeadline = time.Now().Add(c.contentTimeout)
	}
}

// ContentDeadline reports when an active file-serve transaction should be
// timed out by the event loop. Zero means no deadline armed.
func (c *Conn) ContentDeadline() time.Time { return c.contentDeadline }
