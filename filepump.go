// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"fmt"
	"io"
	"time"
)

const (
	// chunkHeaderSlack is the slot reserved before the data for the hex
	// chunk-size line.
	chunkHeaderSlack = 10

	// interpSlack is the upper bound an HTML-processing interpreter may
	// grow a chunk by; reserved up front to avoid reallocation.
	interpSlack = 128

	// boundarySlack keeps room for the trailing multipart boundary.
	boundarySlack = 7

	// multipartBoundary is the fixed boundary token. Servers using this
	// layer advertise "multipart/byteranges; boundary=_lws" in the
	// top-level headers.
	multipartBoundary = "_lws"
)

// ByteRange is one inclusive byte range of a ranged file response.
type ByteRange struct {
	Start, End int64
}

// ProcessArgs is the descriptor passed to a chunk interpreter. The
// interpreter may mutate P in place and grow it up to MaxLen, updating Len.
type ProcessArgs struct {
	P       []byte
	Len     int
	MaxLen  int
	Final   bool
	Chunked bool
}

// httpState is the HTTP transaction substate driven by the file pump.
type httpState struct {
	active bool
	fd     io.ReadSeekCloser

	filepos int64
	filelen int64

	txContentLength int64
	txContentRemain int64

	ranges      []ByteRange
	rangeIdx    int
	rangeInside bool
	rangeBudget int64

	sendingChunked       bool
	multipartContentType string
	interpreter          func(*ProcessArgs) error

	completed bool
}

// FileOption configures one file-serve transaction.
type FileOption func(*httpState)

// WithRanges serves only the given byte ranges. More than one range
// produces a multipart/byteranges body.
func WithRanges(ranges ...ByteRange) FileOption {
	return func(h *httpState) { h.ranges = ranges }
}

// WithChunked applies HTTP/1.1 chunked transfer-encoding to the body.
func WithChunked() FileOption {
	return func(h *httpState) { h.sendingChunked = true }
}

// WithMultipartContentType sets the per-part Content-Type emitted between
// multipart range boundaries.
func WithMultipartContentType(ct string) FileOption {
	return func(h *httpState) { h.multipartContentType = ct }
}

// WithInterpreter attaches a chunk interpreter (e.g. server-side HTML
// rewriting). It runs on every chunk before transfer framing.
func WithInterpreter(fn func(*ProcessArgs) error) FileOption {
	return func(h *httpState) { h.interpreter = fn }
}

// WithContentLength declares the body length for accounting; when it runs
// out the write in flight is promoted to HTTPFinal.
func WithContentLength(n int64) FileOption {
	return func(h *httpState) {
		h.txContentLength = n
		h.txContentRemain = n
	}
}

// BeginFileTransaction starts streaming f through the write pipeline. size
// is the total file length (used for Content-Range lines and completion
// detection). The pump runs from ServiceWritable until the transport
// chokes or the file completes.
func (c *Conn) BeginFileTransaction(f io.ReadSeekCloser, size int64, opts ...FileOption) error {
	if f == nil || size < 0 {
		return ErrInvalidArgument
	}
	if c.http != nil && c.http.active {
		return ErrInvalidArgument
	}
	h := &httpState{
		fd:      f,
		filelen: size,
	}
	for _, fn := range opts {
		fn(h)
	}
	for _, r := range h.ranges {
		if r.Start < 0 || r.End < r.Start || r.End >= size {
			return ErrInvalidArgument
		}
	}
	h.active = true
	c.http = h
	c.armContentTimeout()
	c.CallbackOnWritable()
	return nil
}

// FileTransactionActive reports whether a file-serve is in progress.
func (c *Conn) FileTransactionActive() bool {
	return c.http != nil && c.http.active
}

// fileHadIt abandons a failed transaction: the file handle is closed and
// the error propagated for connection teardown.
func (c *Conn) fileHadIt(err error) error {
	h := c.http
	h.active = false
	if h.fd != nil {
		_ = h.fd.Close()
		h.fd = nil
	}
	return fmt.Errorf("wspipe: file pump: %w", err)
}

// pumpFile advances the file-serve transaction: residue first, then read a
// budgeted fragment, apply the interpreter and transfer framing, and hand
// it to the dispatcher. Loops until the transport chokes or the file
// completes.
func (c *Conn) pumpFile() error {
	h := c.http
	c.armContentTimeout()
	for !c.pipeChoked() {
		// The pump owns this writable event; its internal iterations are
		// sequential, not re-entrant.
		c.couldHavePending = false

		if c.pending.hasResidue() {
			if _, err := c.issueRaw(c.pending.residue()); err != nil {
				return c.fileHadIt(err)
			}
			continue
		}

		if h.done() {
			return c.fileCompleted()
		}

		buf := c.svc.servBuf
		head := Pre + h2FrameHeaderLen
		pos := head
		if h.sendingChunked {
			pos += chunkHeaderSlack
		}
		start := pos

		// Entering the next range: seek to its start and, for multipart
		// responses, emit the per-part boundary block.
		if len(h.ranges) > 0 && !h.rangeInside {
			r := h.ranges[h.rangeIdx]
			if _, err := h.fd.Seek(r.Start, io.SeekStart); err != nil {
				return c.fileHadIt(err)
			}
			h.filepos = r.Start
			h.rangeBudget = r.End - r.Start + 1
			h.rangeInside = true
			if len(h.ranges) > 1 {
				pos += copy(buf[pos:], fmt.Sprintf("%s\r\nContent-Type: %s\r\nContent-Range: bytes %d-%d/%d\r\n\r\n",
					multipartBoundary, h.multipartContentType, r.Start, r.End, h.filelen))
			}
		}

		// Read budget: workspace capacity minus headroom and boundary
		// bytes, clamped by everything that limits this write.
		poss := len(buf) - pos - boundarySlack
		if h.sendingChunked {
			poss -= chunkHeaderSlack + interpSlack
		}
		if h.txContentLength > 0 && int64(poss) > h.txContentRemain {
			poss = int(h.txContentRemain)
		}
		if c.txPacketSize > 0 && poss > c.txPacketSize {
			poss = c.txPacketSize
		}
		if c.h2 != nil {
			if credit := int(c.h2.txCredit); poss > credit {
				poss = credit
			}
		}
		if len(h.ranges) > 0 && int64(poss) > h.rangeBudget {
			poss = int(h.rangeBudget)
		}
		if poss <= 0 {
			// Stalled on flow control; resume on WINDOW_UPDATE.
			c.CallbackOnWritable()
			return nil
		}

		amount, err := h.fd.Read(buf[pos : pos+poss])
		if err != nil && err != io.EOF {
			return c.fileHadIt(err)
		}
		if amount == 0 {
			// The provider reported a shorter file than declared.
			return c.fileHadIt(io.ErrUnexpectedEOF)
		}
		dataEnd := pos + amount

		h.filepos += int64(amount)
		if len(h.ranges) > 0 {
			h.rangeBudget -= int64(amount)
			if h.rangeBudget == 0 {
				h.rangeInside = false
				h.rangeIdx++
			}
		}
		final := h.done()

		// Interpreter pass: may rewrite and grow the fragment in place.
		if h.interpreter != nil {
			args := ProcessArgs{
				P:       buf[pos : pos+poss+interpSlack],
				Len:     amount,
				MaxLen:  poss + interpSlack,
				Final:   final,
				Chunked: h.sendingChunked,
			}
			if err := h.interpreter(&args); err != nil {
				return c.fileHadIt(err)
			}
			dataEnd = pos + args.Len
		}

		// Trailing boundary after the final byte of the final range.
		if final && len(h.ranges) > 1 {
			dataEnd += copy(buf[dataEnd:], multipartBoundary+"\r\n")
		}

		// Chunked framing: hex size line in the reserved slot immediately
		// before the data, CRLF after, so the whole chunk is contiguous.
		if h.sendingChunked {
			hdr := fmt.Sprintf("%x\r\n", dataEnd-start)
			start -= len(hdr)
			copy(buf[start:], hdr)
			buf[dataEnd] = '\r'
			buf[dataEnd+1] = '\n'
			dataEnd += 2
			if final {
				dataEnd += copy(buf[dataEnd:], "0\r\n\r\n")
			}
		}

		wp := WriteProtocol{Kind: KindHTTP}
		if final {
			wp.Kind = KindHTTPFinal
		}
		fb := frameBufferOver(buf, start, dataEnd-start)
		n := fb.n
		m, err := c.Write(fb, wp)
		if err == ErrWouldBlock {
			m = 0
			err = nil
		}
		if err != nil {
			return c.fileHadIt(err)
		}
		if m != n {
			// The pipeline accepted only part of the fragment; rewind the
			// file so the unaccepted tail is re-read next time. filepos
			// tracks file bytes only, so header/boundary bytes never enter
			// the correction.
			back := int64(n - m)
			if back > int64(amount) {
				back = int64(amount)
			}
			if _, err := h.fd.Seek(-back, io.SeekCurrent); err != nil {
				return c.fileHadIt(err)
			}
			h.filepos -= back
			if len(h.ranges) > 0 {
				if h.rangeBudget == 0 && back > 0 {
					h.rangeIdx--
					h.rangeInside = true
				}
				h.rangeBudget += back
			}
			c.CallbackOnWritable()
			return nil
		}
	}
	if c.pipeChoked() && !c.socketUnusable {
		c.CallbackOnWritable()
	}
	return nil
}

// done reports whether every requested byte has been read from the file.
func (h *httpState) done() bool {
	if len(h.ranges) > 0 {
		return h.rangeIdx >= len(h.ranges)
	}
	return h.filepos >= h.filelen
}

// fileCompleted finishes the transaction exactly once: state returns to
// HTTP, the file handle closes, and the completion callback fires. It
// writes no frame itself: on HTTP/2 the stream end travels on the pump's
// last HTTPFinal write. The callback's result is returned unchanged, so
// keep-alive follows its verdict.
func (c *Conn) fileCompleted() error {
	h := c.http
	if h.completed {
		return nil
	}
	h.completed = true
	h.active = false
	c.state = StateHTTP
	c.contentDeadline = time.Time{}
	if h.fd != nil {
		if err := h.fd.Close(); err != nil {
			return fmt.Errorf("wspipe: file close: %w", err)
		}
		h.fd = nil
	}
	if c.onFileCompletion != nil {
		if err := c.onFileCompletion(c); err != nil {
			return err
		}
	}
	return nil
}
