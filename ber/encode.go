// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	pkgerrors "github.com/pkg/errors"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/charset"
	"codello.dev/asn1rt/internal/twos"
	"codello.dev/asn1rt/tlv"
)

// encoder builds the TLV tree of a value. The tree is serialized in a second
// step, so lengths of constructed values are known before the first byte is
// written.
type encoder struct {
	opts Options
}

// encode returns the node of v as a value of o. The node carries the complete
// tag chain of o. f holds the enclosing constructed values.
func (e *encoder) encode(o *asn1rt.Object, v any, f *asn1rt.Frame) (*tlv.Node, error) {
	kind := o.Kind()
	if kind == asn1rt.KindClass {
		return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	}
	chain := o.TagChain()
	var (
		n   *tlv.Node
		err error
	)
	if _, ok := kind.UniversalTag(); ok {
		n, err = e.content(o, chain[len(chain)-1], v, f)
		chain = chain[:len(chain)-1]
	} else {
		n, err = e.alternative(o, v, f)
	}
	if err != nil {
		return nil, err
	}
	// Explicit tags wrap the encoding from the inside out.
	for i := len(chain) - 1; i >= 0; i-- {
		n = e.constructed(chain[i], n)
	}
	return n, nil
}

// constructed returns a constructed node in the length format selected by the
// options.
func (e *encoder) constructed(tag asn1rt.Tag, children ...*tlv.Node) *tlv.Node {
	if e.opts.Indefinite {
		return tlv.Indefinite(tag, children...)
	}
	return tlv.Constructed(tag, children...)
}

func (e *encoder) fail(o *asn1rt.Object, err error) error {
	return &EncodeError{Object: o.QualifiedName(), Err: err}
}

// alternative encodes the value of an untagged CHOICE, OPEN TYPE or ANY.
func (e *encoder) alternative(o *asn1rt.Object, v any, f *asn1rt.Frame) (*tlv.Node, error) {
	switch o.Kind() {
	case asn1rt.KindChoice:
		c, ok := v.(asn1rt.Choice)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected Choice, got %T", v))
		}
		if alt := o.Component(c.Name); alt != nil {
			n, err := e.encode(alt, c.Value, f)
			return n, pkgerrors.WithMessagef(err, "alternative %s", c.Name)
		}
		if u, ok := c.Value.(asn1rt.Unknown); ok {
			return tlv.Verbatim(u.Raw), nil
		}
		return nil, e.fail(o, fmt.Errorf("unknown alternative %q", c.Name))
	case asn1rt.KindOpen, asn1rt.KindAny:
		ov, ok := v.(asn1rt.Open)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected Open, got %T", v))
		}
		if u, ok := ov.Value.(asn1rt.Unknown); ok {
			return tlv.Verbatim(u.Raw), nil
		}
		t := o.OpenType(ov.Type)
		if t == nil {
			return nil, e.fail(o, fmt.Errorf("unknown open type %q", ov.Type))
		}
		n, err := e.encode(t, ov.Value, nil)
		return n, pkgerrors.WithMessagef(err, "open type %s", ov.Type)
	}
	return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("kind %s has no tag", o.Kind())}
}

// content encodes v as a value of o with the innermost tag of o.
func (e *encoder) content(o *asn1rt.Object, tag asn1rt.Tag, v any, f *asn1rt.Frame) (*tlv.Node, error) {
	kind := o.Kind()
	var (
		b   []byte
		err error
	)
	switch kind {
	case asn1rt.KindNull:
		return tlv.Primitive(tag, nil), nil
	case asn1rt.KindBoolean:
		bv, ok := v.(bool)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected bool, got %T", v))
		}
		if bv {
			return tlv.Primitive(tag, []byte{e.opts.trueByte()}), nil
		}
		return tlv.Primitive(tag, []byte{0x00}), nil
	case asn1rt.KindInteger:
		b, err = appendInteger(nil, v)
	case asn1rt.KindEnumerated:
		var i int64
		i, err = enumValue(o, v)
		b = twos.AppendInt64(nil, i)
	case asn1rt.KindReal:
		r, ok := v.(asn1rt.Real)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected Real, got %T", v))
		}
		b, err = AppendReal(nil, r)
	case asn1rt.KindBitString:
		return e.bitString(o, tag, v)
	case asn1rt.KindOctetString:
		if b, err = e.octets(o, v); err != nil {
			return nil, err
		}
		return e.string(tag, b), nil
	case asn1rt.KindOID:
		oid, ok := v.(asn1rt.ObjectIdentifier)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected ObjectIdentifier, got %T", v))
		}
		b, err = AppendOID(nil, oid)
	case asn1rt.KindRelativeOID:
		oid, ok := v.(asn1rt.RelativeOID)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected RelativeOID, got %T", v))
		}
		b = AppendRelativeOID(nil, oid)
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected time.Time, got %T", v))
		}
		var s string
		if kind == asn1rt.KindUTCTime {
			s, err = asn1rt.FormatUTCTime(t, e.opts.Canonical)
		} else {
			s, err = asn1rt.FormatGeneralizedTime(t, e.opts.Canonical)
		}
		b = []byte(s)
	case asn1rt.KindSequence, asn1rt.KindSet:
		return e.components(o, tag, v, f)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		return e.list(o, tag, v, f)
	default:
		if !kind.IsString() {
			return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
		}
		s, ok := v.(string)
		if !ok {
			return nil, e.fail(o, fmt.Errorf("expected string, got %T", v))
		}
		if b, err = charset.Encode(kind, s); err != nil {
			return nil, e.fail(o, err)
		}
		return e.string(tag, b), nil
	}
	if err != nil {
		return nil, e.fail(o, err)
	}
	return tlv.Primitive(tag, b), nil
}

// enumValue returns the numeric value of the ENUMERATED value v.
func enumValue(o *asn1rt.Object, v any) (int64, error) {
	switch v := v.(type) {
	case string:
		item, _, ok := o.EnumItem(v)
		if !ok {
			return 0, fmt.Errorf("unknown enumeration item %q", v)
		}
		return item.Value, nil
	case asn1rt.Unknown:
		return int64(v.Index), nil
	}
	return 0, fmt.Errorf("expected enumeration item, got %T", v)
}

//region Strings

// octets returns the content of an OCTET STRING. Values of a contained type
// are encoded with the same options.
func (e *encoder) octets(o *asn1rt.Object, v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	t := o.Contains()
	if t == nil {
		return nil, e.fail(o, fmt.Errorf("expected []byte, got %T", v))
	}
	n, err := e.encode(t, v, nil)
	if err != nil {
		return nil, pkgerrors.WithMessage(err, "contained value")
	}
	return tlv.Append(nil, n), nil
}

// string returns the node of a string type. If the content is longer than the
// fragment size, the value is split into OCTET STRING segments.
func (e *encoder) string(tag asn1rt.Tag, b []byte) *tlv.Node {
	size := e.opts.FragmentSize
	if size <= 0 || len(b) <= size {
		return tlv.Primitive(tag, b)
	}
	segments := make([]*tlv.Node, 0, (len(b)+size-1)/size)
	for len(b) > 0 {
		l := min(size, len(b))
		segments = append(segments, tlv.Primitive(asn1rt.Universal(asn1rt.TagOctetString), b[:l]))
		b = b[l:]
	}
	return e.constructed(tag, segments...)
}

// bitString returns the node of a BIT STRING. Fragmented values carry the
// number of unused bits only in the last segment.
func (e *encoder) bitString(o *asn1rt.Object, tag asn1rt.Tag, v any) (*tlv.Node, error) {
	bs, ok := v.(asn1rt.BitString)
	if !ok {
		if o.Contains() == nil {
			return nil, e.fail(o, fmt.Errorf("expected BitString, got %T", v))
		}
		b, err := e.octets(o, v)
		if err != nil {
			return nil, err
		}
		bs = asn1rt.BitString{Bytes: b, BitLength: len(b) * 8}
	}
	size := e.opts.FragmentSize
	if size <= 1 || (bs.BitLength+7)/8+1 <= size {
		b, err := appendBitString(nil, bs)
		if err != nil {
			return nil, e.fail(o, err)
		}
		return tlv.Primitive(tag, b), nil
	}
	data := bs.Padded()
	unused := byte((8 - bs.BitLength%8) % 8)
	var segments []*tlv.Node
	for len(data) > 0 {
		l := min(size-1, len(data))
		seg := make([]byte, 1, l+1)
		if l == len(data) {
			seg[0] = unused
		}
		seg = append(seg, data[:l]...)
		segments = append(segments, tlv.Primitive(asn1rt.Universal(asn1rt.TagBitString), seg))
		data = data[l:]
	}
	return e.constructed(tag, segments...), nil
}

//endregion

//region Constructed types

// components encodes the value of a SEQUENCE or SET. Components are written in
// declaration order, unknown extensions follow in the order of their index.
func (e *encoder) components(o *asn1rt.Object, tag asn1rt.Tag, v any, f *asn1rt.Frame) (*tlv.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, e.fail(o, fmt.Errorf("expected map[string]any, got %T", v))
	}
	nf := f.Push(o, m)
	children := make([]*tlv.Node, 0, len(m))
	// keys holds the tag each child is sorted by in a canonical SET.
	keys := make([]asn1rt.Tag, 0, len(m))
	for _, c := range o.Components() {
		cv, ok := m[c.Name()]
		if !ok {
			if !c.Absentable() {
				return nil, e.fail(o, fmt.Errorf("missing component %q", c.Name()))
			}
			continue
		}
		if d, ok := c.Default(); ok && e.opts.Canonical && asn1rt.Equal(d, cv) {
			continue
		}
		n, err := e.encode(c, cv, nf)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
		children = append(children, n)
		keys = append(keys, sortTag(c, n))
	}
	for _, u := range asn1rt.UnknownExtensions(m) {
		n := tlv.Verbatim(u.Raw)
		children = append(children, n)
		keys = append(keys, n.Tag)
	}
	if o.Kind() == asn1rt.KindSet && e.opts.SortSet {
		idx := make([]int, len(children))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int { return compareTags(keys[a], keys[b]) })
		sorted := make([]*tlv.Node, len(children))
		for i, j := range idx {
			sorted[i] = children[j]
		}
		children = sorted
	}
	return e.constructed(tag, children...), nil
}

// sortTag returns the tag that orders the component c with the encoding n in a
// canonical SET. An untagged CHOICE is ordered by the smallest tag of its
// alternatives rather than the tag of the chosen one.
func sortTag(c *asn1rt.Object, n *tlv.Node) asn1rt.Tag {
	if tags := c.OuterTags(); len(tags) > 0 {
		return slices.MinFunc(tags, compareTags)
	}
	return n.Tag
}

func compareTags(a, b asn1rt.Tag) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// list encodes the value of a SEQUENCE OF or SET OF.
func (e *encoder) list(o *asn1rt.Object, tag asn1rt.Tag, v any, f *asn1rt.Frame) (*tlv.Node, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, e.fail(o, fmt.Errorf("expected []any, got %T", v))
	}
	elem := o.Elem()
	children := make([]*tlv.Node, len(l))
	for i, ev := range l {
		n, err := e.encode(elem, ev, f)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "element %d", i)
		}
		children[i] = n
	}
	if o.Kind() == asn1rt.KindSetOf && e.opts.SortSetOf && len(children) > 1 {
		// Elements are ordered by their encodings, shorter encodings are padded
		// with trailing zero octets.
		type encoded struct {
			n *tlv.Node
			b []byte
		}
		es := make([]encoded, len(children))
		for i, n := range children {
			es[i] = encoded{n, tlv.Append(nil, n)}
		}
		slices.SortStableFunc(es, func(a, b encoded) int { return compareEncodings(a.b, b.b) })
		for i := range es {
			children[i] = tlv.Verbatim(es[i].b)
		}
	}
	return e.constructed(tag, children...), nil
}

// compareEncodings compares two encodings as octet strings where the shorter
// one is padded with zero octets at the end.
func compareEncodings(a, b []byte) int {
	l := min(len(a), len(b))
	if c := bytes.Compare(a[:l], b[:l]); c != 0 {
		return c
	}
	rest, sign := a[l:], 1
	if len(b) > len(a) {
		rest, sign = b[l:], -1
	}
	for _, c := range rest {
		if c != 0 {
			return sign
		}
	}
	return 0
}

//endregion
