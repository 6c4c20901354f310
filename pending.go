// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

// pendingBuffer holds at most one partial-send residue per connection: the
// bytes the transport could not accept on the last attempt, now owned by
// the library for redelivery.
//
// The allocation is created lazily on first residue, reused and grown but
// never shrunk while held, and released on connection close.
type pendingBuffer struct {
	alloc []byte
	off   int
	n     int
}

func (pb *pendingBuffer) hasResidue() bool { return pb.n > 0 }

// residue returns the unsent region for redelivery.
func (pb *pendingBuffer) residue() []byte { return pb.alloc[pb.off : pb.off+pb.n] }

// stash takes custody of p. The existing allocation is reused when large
// enough, otherwise replaced with one sized exactly to p.
func (pb *pendingBuffer) stash(p []byte) {
	if cap(pb.alloc) < len(p) {
		pb.alloc = make([]byte, len(p))
	}
	pb.alloc = pb.alloc[:cap(pb.alloc)]
	copy(pb.alloc, p)
	pb.off = 0
	pb.n = len(p)
}

// advance consumes n drained bytes.
func (pb *pendingBuffer) advance(n int) {
	pb.off += n
	pb.n -= n
	if pb.n == 0 {
		pb.off = 0
	}
}

// aliases reports whether p is the retry of the stashed residue: it must
// begin at the residue's current drain position and not exceed it.
func (pb *pendingBuffer) aliases(p []byte) bool {
	if len(p) == 0 || pb.n == 0 || len(p) > pb.n {
		return false
	}
	return &p[0] == &pb.alloc[pb.off]
}

func (pb *pendingBuffer) release() {
	pb.alloc = nil
	pb.off = 0
	pb.n = 0
}
