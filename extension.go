// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wspipe

import "fmt"

// ExtTokens is the descriptor handed to an extension's payload-TX pass.
// The extension may replace Buf with its own headroomed buffer and may set
// RSV bits for the current frame's header.
type ExtTokens struct {
	Buf *FrameBuffer
	Rsv byte
}

// Extension is one entry in the ordered outbound transform chain, modeled
// as a capability set: a nil func means the extension does not participate
// in that event.
type Extension struct {
	Name string

	// PacketTxDoSend lets the extension take over the actual wire write
	// (an alternate transport). Returning n > 0 means "I wrote this many
	// bytes; skip the socket"; 0 passes through.
	PacketTxDoSend func(c *Conn, p []byte) (int, error)

	// PayloadTx transforms the outbound payload. The extension may grow,
	// shrink, split, or withhold it by editing tok, including substituting
	// its own FrameBuffer. Returning more=true means it holds further
	// output and wants another writable pass.
	PayloadTx func(c *Conn, tok *ExtTokens, wp WriteProtocol) (more bool, err error)
}

// extPayloadTx runs the payload-TX chain in order. Any extension may swap
// the working buffer; the last swap wins. more aggregates across the chain.
func (c *Conn) extPayloadTx(tok *ExtTokens, wp WriteProtocol) (more bool, err error) {
	for i := range c.exts {
		ext := &c.exts[i]
		if ext.PayloadTx == nil {
			continue
		}
		m, err := ext.PayloadTx(c, tok, wp)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrExtensionFatal, ext.Name, err)
		}
		if m {
			more = true
		}
	}
	return more, nil
}

// extPacketTxDoSend offers the framed bytes to the chain; the first
// extension that claims the write wins.
func (c *Conn) extPacketTxDoSend(p []byte) (int, error) {
	for i := range c.exts {
		ext := &c.exts[i]
		if ext.PacketTxDoSend == nil {
			continue
		}
		n, err := ext.PacketTxDoSend(c, p)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrExtensionFatal, ext.Name, err)
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, nil
}

// startDraining links the connection into the service draining list and
// stashes the in-flight write protocol so later passes keep its high bits.
func (c *Conn) startDraining(wp WriteProtocol) {
	c.ws.txDraining = true
	c.ws.drainingStashedWP = wp.pack()
	c.svc.addDraining(c)
	c.CallbackOnWritable()
}

// drainingOverride is applied when the dispatcher re-enters with a draining
// extension: the kind is forced to CONTINUATION while the stashed high bits
// (FIN suppression in particular) are preserved.
func (c *Conn) drainingOverride() WriteProtocol {
	c.svc.removeDraining(c)
	c.ws.txDraining = false
	packed := (c.ws.drainingStashedWP & wpHighBitsMask) | uint8(KindContinuation)
	return unpackWriteProtocol(packed)
}
