// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ber

import (
	"errors"
	"fmt"
	"slices"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/charset"
	"codello.dev/asn1rt/tlv"
)

// decoder converts a parsed TLV tree into values. The nesting of the tree is
// limited by the tlv decoder, so the recursion of decoder is bounded as well.
type decoder struct {
	opts Options
}

func (d *decoder) structural(o *asn1rt.Object, tag asn1rt.Tag, format string, args ...any) error {
	return &StructuralError{Tag: tag, Object: o.QualifiedName(), Err: fmt.Errorf(format, args...)}
}

// matches reports whether a data value with the given tag can be a value of o.
// OPEN TYPE and ANY objects accept every tag.
func matches(o *asn1rt.Object, tag asn1rt.Tag) bool {
	tags := o.OuterTags()
	if len(tags) == 0 {
		return o.Kind().IsOpen() || o.Kind() == asn1rt.KindChoice
	}
	return slices.Contains(tags, tag)
}

// decode returns the value of o encoded in n. The tag chain of o is unwrapped
// first. f holds the enclosing constructed values.
func (d *decoder) decode(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	kind := o.Kind()
	if kind == asn1rt.KindClass {
		return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	}
	chain := o.TagChain()
	_, universal := kind.UniversalTag()
	explicit := chain
	if universal {
		explicit = chain[:len(chain)-1]
	}
	for _, tag := range explicit {
		if n.Tag != tag {
			return nil, d.structural(o, n.Tag, "expected %s", tag)
		}
		if !n.Constructed || len(n.Children) != 1 {
			return nil, &SyntaxError{Tag: n.Tag, Err: errExplicitChildren}
		}
		n = n.Children[0]
	}
	if !universal {
		return d.alternative(o, n, f)
	}
	if tag := chain[len(chain)-1]; n.Tag != tag {
		return nil, d.structural(o, n.Tag, "expected %s", tag)
	}
	return d.content(o, n, f)
}

// alternative decodes the value of an untagged CHOICE, OPEN TYPE or ANY.
func (d *decoder) alternative(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	if o.Kind() == asn1rt.KindChoice {
		for _, alt := range o.Components() {
			if !matches(alt, n.Tag) {
				continue
			}
			v, err := d.decode(alt, n, f)
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "alternative %s", alt.Name())
			}
			return asn1rt.Choice{Name: alt.Name(), Value: v}, nil
		}
		if !o.Extensible() {
			return nil, d.structural(o, n.Tag, "no matching alternative")
		}
		idx := len(o.ExtensionAdditions())
		asn1rt.LogUnknownExtension(o, codecName, idx)
		return asn1rt.Choice{
			Name:  asn1rt.ExtensionName(idx),
			Value: asn1rt.Unknown{Index: idx, Raw: slices.Clone(n.Raw)},
		}, nil
	}
	return d.open(o, n, f)
}

// open decodes the content of an OPEN TYPE or ANY. The type is selected by the
// table constraint of o. Content that cannot be resolved is kept as raw
// encoding.
func (d *decoder) open(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	if o.Table() != nil {
		res, cands, err := o.ResolveTable(f)
		if err != nil {
			return nil, err
		}
		switch res {
		case asn1rt.OneMatch:
			if t, ok := cands[0].(*asn1rt.Object); ok {
				v, err := d.decode(t, n, nil)
				if err != nil {
					return nil, pkgerrors.WithMessagef(err, "open type %s", t.Name())
				}
				return asn1rt.Open{Type: t.Name(), Value: v}, nil
			}
		case asn1rt.ManyMatches:
			for _, c := range cands {
				t, ok := c.(*asn1rt.Object)
				if !ok || !matches(t, n.Tag) {
					continue
				}
				if v, err := d.decode(t, n, nil); err == nil {
					return asn1rt.Open{Type: t.Name(), Value: v}, nil
				}
			}
		}
	}
	asn1rt.Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"codec":  codecName,
		"tag":    n.Tag.String(),
	}).Warn("open type content not resolved")
	return asn1rt.Open{Value: asn1rt.Unknown{Raw: slices.Clone(n.Raw)}}, nil
}

// content decodes the content of n as a value of o. The tag of n has already
// been matched.
func (d *decoder) content(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	kind := o.Kind()
	switch kind {
	case asn1rt.KindSequence, asn1rt.KindSet, asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		if !n.Constructed {
			return nil, &SyntaxError{Tag: n.Tag, Err: errPrimitiveConstr}
		}
	case asn1rt.KindBitString, asn1rt.KindOctetString:
	default:
		if n.Constructed && !kind.IsString() && !kind.IsTime() {
			return nil, &SyntaxError{Tag: n.Tag, Err: errConstructedPrim}
		}
	}

	switch kind {
	case asn1rt.KindNull:
		if len(n.Value) != 0 {
			return nil, &SyntaxError{Tag: n.Tag, Err: errors.New("NULL with content")}
		}
		return asn1rt.Null{}, nil
	case asn1rt.KindBoolean:
		if len(n.Value) != 1 {
			return nil, &SyntaxError{Tag: n.Tag, Err: errors.New("invalid BOOLEAN length")}
		}
		if d.opts.Canonical && n.Value[0] != 0x00 && n.Value[0] != 0xFF {
			return nil, &SyntaxError{Tag: n.Tag, Err: errors.New("non-canonical BOOLEAN")}
		}
		return n.Value[0] != 0x00, nil
	case asn1rt.KindInteger:
		v, err := parseInteger(n.Value)
		if err != nil {
			return nil, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return v, nil
	case asn1rt.KindEnumerated:
		return d.enumerated(o, n)
	case asn1rt.KindReal:
		r, err := ParseReal(n.Value)
		if err != nil {
			return nil, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return r, nil
	case asn1rt.KindBitString:
		bs, err := d.bitString(n)
		if err != nil {
			return nil, err
		}
		if t := o.Contains(); t != nil && bs.BitLength%8 == 0 {
			if v, ok := d.contained(t, bs.Bytes); ok {
				return v, nil
			}
		}
		return bs, nil
	case asn1rt.KindOctetString:
		b, err := d.stringBytes(n)
		if err != nil {
			return nil, err
		}
		if t := o.Contains(); t != nil {
			if v, ok := d.contained(t, b); ok {
				return v, nil
			}
		}
		return slices.Clone(b), nil
	case asn1rt.KindOID:
		oid, err := ParseOID(n.Value)
		if err != nil {
			return nil, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return oid, nil
	case asn1rt.KindRelativeOID:
		oid, err := ParseRelativeOID(n.Value)
		if err != nil {
			return nil, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return oid, nil
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		b, err := d.stringBytes(n)
		if err != nil {
			return nil, err
		}
		var t time.Time
		if kind == asn1rt.KindUTCTime {
			t, err = asn1rt.ParseUTCTime(string(b))
		} else {
			t, err = asn1rt.ParseGeneralizedTime(string(b))
		}
		if err != nil {
			return nil, &SyntaxError{Tag: n.Tag, Err: err}
		}
		return t, nil
	case asn1rt.KindSequence:
		return d.sequence(o, n, f)
	case asn1rt.KindSet:
		return d.set(o, n, f)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		elem := o.Elem()
		l := make([]any, 0, len(n.Children))
		for i, c := range n.Children {
			v, err := d.decode(elem, c, f)
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "element %d", i)
			}
			l = append(l, v)
		}
		return l, nil
	}
	if !kind.IsString() {
		return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
	}
	b, err := d.stringBytes(n)
	if err != nil {
		return nil, err
	}
	s, err := charset.Decode(kind, b)
	if err != nil {
		return nil, &SyntaxError{Tag: n.Tag, Err: err}
	}
	return s, nil
}

// enumerated maps the value in n to an item of o. Unknown values of an
// extensible enumeration are returned as [asn1rt.Unknown].
func (d *decoder) enumerated(o *asn1rt.Object, n *tlv.Node) (any, error) {
	v, err := parseInteger(n.Value)
	if err != nil {
		return nil, &SyntaxError{Tag: n.Tag, Err: err}
	}
	i, ok := asn1rt.Int64(v)
	if ok {
		if item, ok := o.EnumByValue(i); ok {
			return item.Name, nil
		}
	}
	if !ok || !o.Extensible() {
		return nil, d.structural(o, n.Tag, "unknown enumeration value %v", v)
	}
	asn1rt.LogUnknownExtension(o, codecName, int(i))
	return asn1rt.Unknown{Index: int(i), Raw: slices.Clone(n.Value)}, nil
}

// contained decodes b as a value of the contained type t. The second return
// value is false if b is not a valid encoding of t.
func (d *decoder) contained(t *asn1rt.Object, b []byte) (any, bool) {
	dec := d.opts.newDecoder(b)
	n, err := dec.ReadNode()
	if err != nil || dec.InputOffset() != len(b) {
		return nil, false
	}
	v, err := d.decode(t, n, nil)
	return v, err == nil
}

//region Constructed types

// sequence decodes the components of a SEQUENCE in order. Absent optional
// components are skipped. Data values following the last known component are
// unknown extensions if o is extensible.
func (d *decoder) sequence(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	m := make(map[string]any, len(n.Children))
	nf := f.Push(o, m)
	children := n.Children
	for _, c := range o.Components() {
		if len(children) > 0 && matches(c, children[0].Tag) {
			v, err := d.decode(c, children[0], nf)
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "component %s", c.Name())
			}
			m[c.Name()] = v
			children = children[1:]
			continue
		}
		if !c.Absentable() {
			tag := asn1rt.Tag{}
			if len(children) > 0 {
				tag = children[0].Tag
			}
			return nil, d.structural(o, tag, "missing component %s", c.Name())
		}
	}
	if err := d.extensions(o, n, children, m); err != nil {
		return nil, err
	}
	return m, nil
}

// set decodes the components of a SET in any order. Open type components are
// decoded last so that their table constraints can refer to every other
// component.
func (d *decoder) set(o *asn1rt.Object, n *tlv.Node, f *asn1rt.Frame) (any, error) {
	m := make(map[string]any, len(n.Children))
	nf := f.Push(o, m)
	type assignment struct {
		c *asn1rt.Object
		n *tlv.Node
	}
	var (
		assigned = make(map[*asn1rt.Object]bool)
		deferred []assignment
		unknown  []*tlv.Node
	)
	for _, child := range n.Children {
		var comp *asn1rt.Object
		for _, c := range o.Components() {
			if !assigned[c] && matches(c, child.Tag) && !c.Kind().IsOpen() {
				comp = c
				break
			}
		}
		if comp == nil {
			for _, c := range o.Components() {
				if !assigned[c] && matches(c, child.Tag) {
					comp = c
					break
				}
			}
		}
		if comp == nil {
			unknown = append(unknown, child)
			continue
		}
		assigned[comp] = true
		if comp.Kind().IsOpen() {
			deferred = append(deferred, assignment{comp, child})
			continue
		}
		v, err := d.decode(comp, child, nf)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "component %s", comp.Name())
		}
		m[comp.Name()] = v
	}
	for _, a := range deferred {
		v, err := d.decode(a.c, a.n, nf)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "component %s", a.c.Name())
		}
		m[a.c.Name()] = v
	}
	for _, c := range o.Components() {
		if !assigned[c] && !c.Absentable() {
			return nil, d.structural(o, asn1rt.Tag{}, "missing component %s", c.Name())
		}
	}
	if err := d.extensions(o, n, unknown, m); err != nil {
		return nil, err
	}
	return m, nil
}

// extensions stores data values that do not belong to a known component as
// unknown extensions in m.
func (d *decoder) extensions(o *asn1rt.Object, n *tlv.Node, rest []*tlv.Node, m map[string]any) error {
	if len(rest) == 0 {
		return nil
	}
	if !o.Extensible() {
		return d.structural(o, rest[0].Tag, "unexpected data value in %s", n.Tag)
	}
	base := len(o.ExtensionAdditions())
	for k, c := range rest {
		idx := base + k
		asn1rt.LogUnknownExtension(o, codecName, idx)
		m[asn1rt.ExtensionName(idx)] = asn1rt.Unknown{Index: idx, Raw: slices.Clone(c.Raw)}
	}
	return nil
}

//endregion
