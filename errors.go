// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrInvalidArgument reports an invalid configuration, nil transport,
	// or a payload buffer without the required framing headroom.
	ErrInvalidArgument = errors.New("wspipe: invalid argument")

	// ErrTooLong reports a payload that exceeds the wire format's
	// representable length (63-bit, and 32-bit-host payloads above 4GiB).
	ErrTooLong = errors.New("wspipe: payload too long")

	// ErrWritePending reports a second write issued inside the same
	// writable event, or a write from outside the writable callback.
	ErrWritePending = errors.New("wspipe: write already issued this writable event")

	// ErrResidueMismatch reports a write whose buffer is not the retry of
	// the stashed partial-send residue while residue is pending.
	ErrResidueMismatch = errors.New("wspipe: buffer does not alias pending residue")

	// ErrExtensionFatal reports a fatal result from an extension callback.
	ErrExtensionFatal = errors.New("wspipe: extension failed")

	// ErrClosing signals that the pre-close flush has fully drained and the
	// connection should now proceed to close.
	ErrClosing = errors.New("wspipe: flushed before close, proceed to close")

	// ErrTransportUnusable reports a connection whose transport previously
	// returned a fatal error. No further writes are possible.
	ErrTransportUnusable = errors.New("wspipe: transport permanently unusable")
)

// These are provided as package-level aliases so callers can reference the
// semantic control-flow errors without importing iox directly.
var (
	// ErrWouldBlock means “no further progress without waiting”.
	//
	// It is an expected, non-failure control-flow signal for non-blocking I/O.
	// Any returned byte count (n) still represents real progress.
	//
	// Caller action: stop the current attempt and retry after the next
	// writable event (or, for an HTTP/2 credit stall, after WINDOW_UPDATE).
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrMore means “this completion is usable and more completions will follow”.
	//
	// It is not io.EOF and not “try later”. The operation remains active and
	// additional data/results are expected from the same ongoing operation.
	//
	// Caller action: process the returned bytes/result, then call again to
	// obtain the next chunk.
	ErrMore = iox.ErrMore
)
