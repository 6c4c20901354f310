// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import (
	"crypto/rand"
	"io"
	"time"
)

// Options configures a Service and the connections it creates.
type Options struct {
	// TxPacketSize sets the per-raw-issue ceiling, which is TxPacketSize +
	// Pre + 4 bytes, and caps each file-pump read. Zero means derive the
	// ceiling from max(RxBufferSize, ServiceBufferSize) + Pre + 4 instead.
	TxPacketSize int

	// RxBufferSize participates in the raw-issue ceiling when TxPacketSize
	// is zero.
	RxBufferSize int

	// ServiceBufferSize sizes the per-service scratch buffer used by the
	// file-fragment pump.
	ServiceBufferSize int

	// Entropy supplies the per-frame masking nonce for client connections.
	// Defaults to the system CSPRNG.
	Entropy io.Reader

	// ContentTimeout bounds how long a file-serve transaction may sit
	// between writable events. Zero disables the deadline.
	ContentTimeout time.Duration

	// Extensions is the ordered transform chain applied to outbound
	// payloads. Control frames bypass it.
	Extensions []Extension

	// OnFileCompletion fires exactly once when a file-serve transaction
	// finishes. A non-nil return drops the connection; nil keeps it alive
	// for the next transaction.
	OnFileCompletion func(*Conn) error

	// OnChildWrite, set on a parent connection, receives writes delegated
	// by children whose I/O the parent carries.
	OnChildWrite func(parent *Conn, w *ChildWrite) error
}

var defaultOptions = Options{
	ServiceBufferSize: 4096,
	Entropy:           rand.Reader,
}

type Option func(*Options)

// WithTxPacketSize sets TxPacketSize: each raw transport write attempts at
// most n + Pre + 4 bytes.
func WithTxPacketSize(n int) Option {
	return func(o *Options) { o.TxPacketSize = n }
}

// WithRxBufferSize sets the receive buffer size used to derive the raw-issue
// ceiling when no explicit TxPacketSize is set.
func WithRxBufferSize(n int) Option {
	return func(o *Options) { o.RxBufferSize = n }
}

// WithServiceBufferSize sizes the shared per-service scratch buffer.
func WithServiceBufferSize(n int) Option {
	return func(o *Options) { o.ServiceBufferSize = n }
}

// WithEntropy replaces the masking-nonce source. Intended for tests; the
// default is the system CSPRNG.
func WithEntropy(r io.Reader) Option {
	return func(o *Options) { o.Entropy = r }
}

// WithContentTimeout bounds file-serve transactions between writable events.
func WithContentTimeout(d time.Duration) Option {
	return func(o *Options) { o.ContentTimeout = d }
}

// WithExtensions installs the ordered payload transform chain.
func WithExtensions(exts ...Extension) Option {
	return func(o *Options) { o.Extensions = append(o.Extensions, exts...) }
}

// WithOnFileCompletion sets the file-transaction completion callback.
func WithOnFileCompletion(fn func(*Conn) error) Option {
	return func(o *Options) { o.OnFileCompletion = fn }
}

// WithOnChildWrite sets the parent-side sink for delegated child writes.
func WithOnChildWrite(fn func(parent *Conn, w *ChildWrite) error) Option {
	return func(o *Options) { o.OnChildWrite = fn }
}
