// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tlv

import (
	"errors"
	"io"
	"math"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/vlq"
)

// DecodeHeader decodes the identifier and length octets at the start of b. It
// returns the header and the number of bytes it occupies. If strict is true,
// non-minimal length encodings and long-form tags for numbers below 31 are
// rejected, as required by the distinguished and canonical encoding rules.
//
// If b is truncated, the error is [io.ErrUnexpectedEOF].
func DecodeHeader(b []byte, strict bool) (h Header, n int, err error) {
	if len(b) == 0 {
		return h, 0, io.ErrUnexpectedEOF
	}
	id := b[0]
	n = 1
	h.Tag = asn1rt.Tag{Class: asn1rt.Class(id >> 6), Number: uint(id & 0x1f)}
	h.Constructed = id&0x20 == 0x20

	// If the bottom five bits are set, then the tag number is actually VLQ-encoded
	if id&0x1f == 0x1f {
		num, m, err := vlq.Decode[uint64](b[n:], true)
		if errors.Is(err, vlq.ErrNotMinimal) {
			return h, n, errNonMinimalTag
		} else if errors.Is(err, vlq.ErrOverflow) {
			return h, n, errTagTooLarge
		} else if err != nil {
			return h, n, err
		}
		n += m
		if num > MaxTag {
			return h, n, errTagTooLarge
		}
		if strict && num < 31 {
			return h, n, errNonMinimalTag
		}
		h.Tag.Number = uint(num)
	}

	if n >= len(b) {
		return h, n, io.ErrUnexpectedEOF
	}
	lb := b[n]
	n++
	switch {
	case lb&0x80 == 0:
		// The length is encoded in the bottom 7 bits.
		h.Length = int(lb & 0x7f)
	case lb == 0x80:
		h.Length = LengthIndefinite
	case lb == 0xff:
		return h, n, errReservedLength
	default:
		// Bottom 7 bits give the number of length bytes to follow.
		numBytes := int(lb & 0x7f)
		if n+numBytes > len(b) {
			return h, len(b), io.ErrUnexpectedEOF
		}
		for _, c := range b[n : n+numBytes] {
			if h.Length > math.MaxInt>>8 {
				// We can't shift h.Length up without overflowing.
				return h, n, errLengthTooLarge
			}
			h.Length = h.Length<<8 | int(c)
		}
		if strict && (b[n] == 0 || h.Length < 128) {
			return h, n, errNonMinimalLength
		}
		n += numBytes
		if h.Tag == (asn1rt.Tag{}) && !h.Constructed && h.Length == 0 {
			return h, n, errInvalidEOC
		}
	}
	return h, n, nil
}

// Decoder reads a buffer of TLV encoded data values. The zero value is not
// usable, use [NewDecoder] instead.
//
// The exported fields configure validation and may be changed before the
// first read.
type Decoder struct {
	state
	data []byte
	off  int

	// Strict rejects non-minimal headers. See [DecodeHeader].
	Strict bool

	// Definite rejects the indefinite-length format.
	Definite bool

	// MaxDepth limits the nesting of constructed data values. If MaxDepth is 0,
	// [asn1rt.DefaultMaxDepth] is used.
	MaxDepth int
}

// NewDecoder creates a new [Decoder] reading from b.
func NewDecoder(b []byte) *Decoder {
	d := new(Decoder)
	d.Reset(b)
	return d
}

// Reset resets the state of d to read from b. Configuration fields are kept.
func (d *Decoder) Reset(b []byte) {
	d.data = b
	d.off = 0
	d.state.reset(len(b))
}

// ReadHeader reads the next TLV header from the input. If the header indicates
// the primitive encoding, the value is returned as a sub-slice of the input.
//
// At the end of a constructed data value ReadHeader returns [EndOfContents],
// regardless of whether the data value uses the definite or indefinite-length
// format. At the end of the input ReadHeader returns [io.EOF]. All other
// errors are of type [*SyntaxError].
func (d *Decoder) ReadHeader() (Header, []byte, error) {
	start := d.off
	if !d.root() && d.curr.End != LengthIndefinite && d.off >= d.curr.End {
		d.pop()
		return EndOfContents, nil, nil
	}
	if d.root() && d.off >= len(d.data) {
		return Header{}, nil, io.EOF
	}
	h, v, err := d.readHeader()
	if err != nil {
		return h, nil, &SyntaxError{ByteOffset: start, Header: d.curr.Header, Err: err}
	}
	return h, v, nil
}

// limit returns the offset that the current data value must not exceed.
func (d *Decoder) limit() int {
	return min(d.curr.Limit, len(d.data))
}

// bounded reports whether the current data value is limited by a
// definite-length constructed data value rather than by the end of the input.
func (d *Decoder) bounded() bool {
	return d.curr.Limit < len(d.data) || !d.root() && d.curr.End != LengthIndefinite
}

func (d *Decoder) readHeader() (Header, []byte, error) {
	limit := d.limit()
	h, n, err := DecodeHeader(d.data[d.off:limit], d.Strict)
	if err != nil {
		if err == io.ErrUnexpectedEOF && d.bounded() {
			err = errExceedsParent
		}
		return h, nil, err
	}

	if h.Tag == (asn1rt.Tag{}) && !h.Constructed {
		if h.Length != 0 {
			return h, nil, errInvalidEOC
		}
		if d.root() || d.curr.End != LengthIndefinite {
			return h, nil, errUnexpectedEOC
		}
		d.off += n
		d.pop()
		return EndOfContents, nil, nil
	}

	switch {
	case h.Length == LengthIndefinite && !h.Constructed:
		return h, nil, errIndefinitePrim
	case h.Length == LengthIndefinite && d.Definite:
		return h, nil, errIndefiniteLength
	case h.Length != LengthIndefinite && h.Length > limit-d.off-n:
		if d.bounded() {
			return h, nil, errExceedsParent
		}
		return h, nil, io.ErrUnexpectedEOF
	}

	d.off += n
	if !h.Constructed {
		v := d.data[d.off : d.off+h.Length]
		d.off += h.Length
		return h, v, nil
	}
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = asn1rt.DefaultMaxDepth
	}
	if d.depth() >= maxDepth {
		return h, nil, errMaxDepth
	}
	d.push(h, d.off)
	return h, nil, nil
}

// PeekHeader returns the next header without consuming it. At the end of a
// constructed data value PeekHeader returns [EndOfContents].
func (d *Decoder) PeekHeader() (Header, error) {
	if !d.root() && d.curr.End != LengthIndefinite && d.off >= d.curr.End {
		return EndOfContents, nil
	}
	if d.root() && d.off >= len(d.data) {
		return Header{}, io.EOF
	}
	h, _, err := DecodeHeader(d.data[d.off:d.limit()], d.Strict)
	if err != nil {
		return h, &SyntaxError{ByteOffset: d.off, Header: d.curr.Header, Err: err}
	}
	return h, nil
}

// More reports whether there is another data value in the current constructed
// data value (or at the root level).
func (d *Decoder) More() bool {
	h, err := d.PeekHeader()
	return err == nil && !h.IsEndOfContents()
}

// ReadNode reads the next complete data value as a tree of nodes. Constructed
// data values are read recursively.
//
// At the end of the input, or at the end of the constructed data value that
// encloses the current position, ReadNode returns [io.EOF]. In the latter case
// the end of the enclosing data value is consumed.
func (d *Decoder) ReadNode() (*Node, error) {
	start := d.off
	h, v, err := d.ReadHeader()
	if err != nil {
		return nil, err
	}
	if h.IsEndOfContents() {
		return nil, io.EOF
	}
	return d.readNode(start, h, v)
}

func (d *Decoder) readNode(start int, h Header, v []byte) (*Node, error) {
	n := &Node{Header: h, Offset: start}
	if !h.Constructed {
		n.HeaderLen = d.off - start - len(v)
		n.Value = v
		n.Raw = d.data[start:d.off]
		return n, nil
	}
	n.HeaderLen = d.curr.Start - start
	for {
		cstart := d.off
		ch, cv, err := d.ReadHeader()
		if err == io.EOF {
			err = &SyntaxError{ByteOffset: cstart, Header: h, Err: io.ErrUnexpectedEOF}
		}
		if err != nil {
			return nil, err
		}
		if ch.IsEndOfContents() {
			break
		}
		c, err := d.readNode(cstart, ch, cv)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	end := d.off
	if h.Length == LengthIndefinite {
		end -= 2
	}
	n.Value = d.data[start+n.HeaderLen : end]
	n.Raw = d.data[start:d.off]
	return n, nil
}

// ReadAll reads all remaining top-level data values.
func (d *Decoder) ReadAll() ([]*Node, error) {
	var nodes []*Node
	for {
		n, err := d.ReadNode()
		if err == io.EOF {
			return nodes, nil
		}
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, n)
	}
}

// Skip discards the next data value.
func (d *Decoder) Skip() error {
	_, err := d.ReadNode()
	return err
}

// InputOffset returns the current input byte offset. It gives the location of
// the next byte immediately after the most recently returned header or value.
func (d *Decoder) InputOffset() int {
	return d.off
}

// StackDepth returns the depth of the state stack. It is the number of
// constructed data values that have been opened and not yet closed.
func (d *Decoder) StackDepth() int { return d.depth() }

// StackIndex returns the header of the constructed data value at the specified
// stack level. The index must be between 0 and [Decoder.StackDepth] - 1.
func (d *Decoder) StackIndex(i int) Header {
	if i == len(d.stack)-1 {
		return d.curr.Header
	}
	return d.stack[i+1].Header
}

// Parse decodes a single top-level data value from b. Trailing bytes after the
// data value are an error.
func Parse(b []byte) (*Node, error) {
	d := NewDecoder(b)
	n, err := d.ReadNode()
	if err == io.EOF {
		err = &SyntaxError{Err: io.ErrUnexpectedEOF}
	}
	if err != nil {
		return nil, err
	}
	if d.off < len(d.data) {
		return n, &SyntaxError{ByteOffset: d.off, Err: ErrTrailingData}
	}
	return n, nil
}

// ParseAll decodes all top-level data values in b.
func ParseAll(b []byte) ([]*Node, error) {
	return NewDecoder(b).ReadAll()
}
