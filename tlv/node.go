// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"encoding/hex"
	"strconv"
	"strings"

	"codello.dev/asn1rt"
)

// Node is a single data value in a TLV tree. Nodes produced by a [Decoder]
// reference the input buffer. Nodes built by an encoder are serialized using
// [Append].
type Node struct {
	Header

	// Offset is the position of the header within the decoded input. It is zero
	// for nodes that were not decoded.
	Offset int

	// HeaderLen is the number of bytes of the encoded header.
	HeaderLen int

	// Value holds the content octets. For constructed nodes Value holds the
	// encoding of the children, excluding a terminating end-of-contents marker.
	Value []byte

	// Children holds the nested data values of a constructed node.
	Children []*Node

	// Raw, if not nil, is the complete encoding of the node including its
	// header.
	Raw []byte
}

// Primitive returns a primitive node with the given tag and content octets.
func Primitive(tag asn1rt.Tag, value []byte) *Node {
	return &Node{Header: Header{Tag: tag, Length: len(value)}, Value: value}
}

// Constructed returns a definite-length constructed node.
func Constructed(tag asn1rt.Tag, children ...*Node) *Node {
	return &Node{Header: Header{Tag: tag, Constructed: true}, Children: children}
}

// Indefinite returns a constructed node using the indefinite-length format.
func Indefinite(tag asn1rt.Tag, children ...*Node) *Node {
	return &Node{Header: Header{Tag: tag, Constructed: true, Length: LengthIndefinite}, Children: children}
}

// Verbatim returns a node that is serialized as the given complete encoding.
// The header is decoded from raw if possible.
func Verbatim(raw []byte) *Node {
	n := &Node{Raw: raw}
	if h, hl, err := DecodeHeader(raw, false); err == nil {
		n.Header, n.HeaderLen = h, hl
		n.Value = raw[min(hl, len(raw)):]
	}
	return n
}

// Bytes returns the encoding of n.
func (n *Node) Bytes() []byte {
	return Append(nil, n)
}

// Len returns the number of bytes in the encoding of n.
func (n *Node) Len() int {
	return n.measure()
}

// Walk calls fn for n and each of its descendants in depth-first order. The
// depth of the root node is 0. If fn returns false, the children of the
// respective node are skipped.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(n *Node, depth int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// String returns a multi-line dump of the node tree. Each line shows the
// header of a node. Primitive values are shown in hexadecimal.
func (n *Node) String() string {
	var sb strings.Builder
	n.Walk(func(c *Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(c.Tag.String())
		if c.Constructed {
			if c.Length == LengthIndefinite {
				sb.WriteString(" (indefinite)")
			} else {
				sb.WriteString(" (" + strconv.Itoa(len(c.Children)) + " elem)")
			}
		} else {
			sb.WriteString(" " + strconv.Itoa(len(c.Value)) + ": ")
			sb.WriteString(strings.ToUpper(hex.EncodeToString(c.Value)))
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}
