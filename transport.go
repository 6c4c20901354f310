// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "io"

// transportWrite performs one best-effort write against the connection's
// transport. Results map three ways:
//   - (n, nil): the transport accepted n bytes; 0 < n < len(p) is a legal
//     partial that the caller must absorb. A (0, nil) result on a
//     non-empty p is reported as io.ErrShortWrite.
//   - (n, ErrWouldBlock): no further progress without waiting; n bytes may
//     still have been accepted first. The connection is flagged as
//     blocking-send as a flow-control hint.
//   - (n, err): fatal transport or TLS error.
func (c *Conn) transportWrite(p []byte) (int, error) {
	n, err := c.transport.Write(p)
	// Guard against broken Writers that violate the io.Writer contract by
	// returning (0, nil) on a non-empty buffer. Without this, the issuer
	// and the residue drain can spin indefinitely.
	if len(p) != 0 && n == 0 && err == nil {
		return 0, io.ErrShortWrite
	}
	if err == ErrWouldBlock {
		c.blockingSend = true
		return n, ErrWouldBlock
	}
	return n, err
}
