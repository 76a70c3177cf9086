// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"codello.dev/asn1rt/internal/vlq"
)

// HeaderLen computes the number of bytes required to encode h. [AppendHeader]
// will append this exact number of bytes.
func HeaderLen(h Header) int {
	l := 1 // class, constructed, tag
	if h.Tag.Number >= 31 {
		// tag does not fit
		l += vlq.Length(uint64(h.Tag.Number))
	}
	l++ // length
	if h.Length == LengthIndefinite || h.Length < 128 {
		return l
	}
	// multi-byte length
	l++
	for hl := h.Length; hl > 255; hl >>= 8 {
		l++
	}
	return l
}

// AppendHeader appends the encoding of h to dst using the minimal
// representation of the tag number and length.
func AppendHeader(dst []byte, h Header) []byte {
	b := uint8(h.Tag.Class&0b11) << 6
	if h.Constructed {
		b |= 0x20
	}
	if h.Tag.Number < 31 {
		dst = append(dst, b|uint8(h.Tag.Number))
	} else {
		dst = append(dst, b|0x1f)
		dst = vlq.Append(dst, uint64(h.Tag.Number))
	}

	switch {
	case h.Length == LengthIndefinite:
		return append(dst, 0x80)
	case h.Length < 128:
		return append(dst, byte(h.Length))
	}
	numBytes := 1
	for l := h.Length; l > 255; l >>= 8 {
		numBytes++
	}
	dst = append(dst, 0x80|byte(numBytes))
	for ; numBytes > 0; numBytes-- {
		dst = append(dst, byte(h.Length>>uint((numBytes-1)*8)))
	}
	return dst
}

// Append appends the encodings of nodes to dst. Lengths of definite-length
// constructed nodes are computed from their children and stored in the nodes.
// Nodes with a non-nil Raw field are appended verbatim.
func Append(dst []byte, nodes ...*Node) []byte {
	for _, n := range nodes {
		n.measure()
		dst = n.appendTo(dst)
	}
	return dst
}

// measure computes the length of the encoding of n, including its header. The
// Length field of n and its descendants are updated accordingly.
func (n *Node) measure() int {
	if n.Raw != nil {
		return len(n.Raw)
	}
	if !n.Constructed {
		n.Length = len(n.Value)
		n.HeaderLen = HeaderLen(n.Header)
		return n.HeaderLen + n.Length
	}
	l := 0
	for _, c := range n.Children {
		l += c.measure()
	}
	if n.Length == LengthIndefinite {
		n.HeaderLen = HeaderLen(n.Header)
		return n.HeaderLen + l + 2
	}
	n.Length = l
	n.HeaderLen = HeaderLen(n.Header)
	return n.HeaderLen + l
}

func (n *Node) appendTo(dst []byte) []byte {
	if n.Raw != nil {
		return append(dst, n.Raw...)
	}
	dst = AppendHeader(dst, n.Header)
	if !n.Constructed {
		return append(dst, n.Value...)
	}
	for _, c := range n.Children {
		dst = c.appendTo(dst)
	}
	if n.Length == LengthIndefinite {
		dst = append(dst, 0x00, 0x00)
	}
	return dst
}
