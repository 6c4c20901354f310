// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "io"

// Service is the per-event-loop context. It owns the shared scratch buffer
// used by the file-fragment pump, the list of connections with a draining
// extension, and the statistics counters.
//
// A Service and its connections belong to one event-loop goroutine; nothing
// here is safe for concurrent use except Stats.
type Service struct {
	opts    Options
	servBuf []byte

	// Connections whose extension chain holds more output. A plain slice
	// rather than intrusive links; removal is O(n) in list length,
	// typically tiny.
	draining []*Conn

	stats Stats
}

// NewService creates a Service with the given options.
func NewService(opts ...Option) *Service {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.ServiceBufferSize < Pre+h2FrameHeaderLen+chunkHeaderSlack {
		o.ServiceBufferSize = defaultOptions.ServiceBufferSize
	}
	return &Service{
		opts:    o,
		servBuf: make([]byte, o.ServiceBufferSize),
	}
}

// NewConn binds a connection to the service. w is the non-blocking transport
// write side; it must return iox.ErrWouldBlock when it cannot accept more.
// Per-connection options override the service defaults.
func (s *Service) NewConn(w io.Writer, mode Mode, opts ...Option) (*Conn, error) {
	if w == nil || mode < WSClient || mode > HTTP2WSServing {
		return nil, ErrInvalidArgument
	}
	o := s.opts
	for _, fn := range opts {
		fn(&o)
	}
	c := &Conn{
		svc:       s,
		mode:      mode,
		transport: w,
		entropy:   o.Entropy,
		exts:      o.Extensions,

		txPacketSize:     o.TxPacketSize,
		rxBufferSize:     o.RxBufferSize,
		contentTimeout:   o.ContentTimeout,
		onFileCompletion: o.OnFileCompletion,
		onChildWrite:     o.OnChildWrite,
	}
	if mode.websocket() {
		c.ws = &wsState{cleanBuffer: true}
	}
	if mode.h2() {
		c.h2 = &h2State{}
	}
	if mode == WSClient || mode == WSServer {
		c.state = StateWSEstablished
	}
	return c, nil
}

// Stats returns the service counter set.
func (s *Service) Stats() *Stats { return &s.stats }

func (s *Service) addDraining(c *Conn) {
	for _, d := range s.draining {
		if d == c {
			return
		}
	}
	s.draining = append(s.draining, c)
}

func (s *Service) removeDraining(c *Conn) {
	for i, d := range s.draining {
		if d == c {
			s.draining = append(s.draining[:i], s.draining[i+1:]...)
			return
		}
	}
}
