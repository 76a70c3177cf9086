// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oer

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"time"

	pkgerrors "github.com/pkg/errors"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/ber"
	"codello.dev/asn1rt/bitbuf"
	"codello.dev/asn1rt/internal/charset"
	"codello.dev/asn1rt/internal/twos"
)

// encoder writes OER encodings. Every value is recorded as a field named after
// its object.
type encoder struct {
	w    *bitbuf.Writer
	opts Options
}

func (e *encoder) fail(o *asn1rt.Object, err error) error {
	return &EncodeError{Object: o.QualifiedName(), Err: err}
}

// sub returns the encoding of v as a value of o produced by a separate
// encoder.
func (e *encoder) sub(o *asn1rt.Object, v any, f *asn1rt.Frame) ([]byte, []*bitbuf.Field, error) {
	se := &encoder{w: bitbuf.NewWriter(), opts: e.opts}
	if e.w.Recording() {
		se.w.Record()
	}
	if err := se.encode(o, v, f); err != nil {
		return nil, nil, err
	}
	return se.w.Bytes(), se.w.Fields(), nil
}

// openField writes b preceded by its length. fields describe the contents of
// b.
func (e *encoder) openField(b []byte, fields []*bitbuf.Field) {
	e.length(len(b))
	e.w.Embed(fields, e.w.Len())
	e.w.WriteBytes(b)
}

func fieldName(o *asn1rt.Object) string {
	if o.Name() != "" {
		return o.Name()
	}
	return o.Kind().String()
}

// encode writes v as a value of o. f holds the enclosing constructed values.
func (e *encoder) encode(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	e.w.Enter(fieldName(o))
	defer e.w.Leave()

	switch kind := o.Kind(); kind {
	case asn1rt.KindClass:
		return &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	case asn1rt.KindNull:
		return nil
	case asn1rt.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return e.fail(o, fmt.Errorf("expected bool, got %T", v))
		}
		if b {
			e.w.WriteBits(0xFF, 8)
		} else {
			e.w.WriteBits(0x00, 8)
		}
		return nil
	case asn1rt.KindInteger:
		i, ok := asn1rt.BigInt(v)
		if !ok {
			return e.fail(o, fmt.Errorf("expected integer, got %T", v))
		}
		if err := e.integer(o.Constraint(), asn1rt.NormalizeInt(i)); err != nil {
			return e.fail(o, err)
		}
		return nil
	case asn1rt.KindEnumerated:
		return e.enumerated(o, v)
	case asn1rt.KindReal:
		return e.real(o, v)
	case asn1rt.KindBitString:
		return e.bitString(o, v, f)
	case asn1rt.KindOctetString:
		return e.octetString(o, v, f)
	case asn1rt.KindOID:
		oid, ok := v.(asn1rt.ObjectIdentifier)
		if !ok {
			return e.fail(o, fmt.Errorf("expected ObjectIdentifier, got %T", v))
		}
		b, err := ber.AppendOID(nil, oid)
		if err != nil {
			return e.fail(o, err)
		}
		e.lengthPrefixed(b)
		return nil
	case asn1rt.KindRelativeOID:
		oid, ok := v.(asn1rt.RelativeOID)
		if !ok {
			return e.fail(o, fmt.Errorf("expected RelativeOID, got %T", v))
		}
		e.lengthPrefixed(ber.AppendRelativeOID(nil, oid))
		return nil
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		t, ok := v.(time.Time)
		if !ok {
			return e.fail(o, fmt.Errorf("expected time.Time, got %T", v))
		}
		var (
			s   string
			err error
		)
		if kind == asn1rt.KindUTCTime {
			s, err = asn1rt.FormatUTCTime(t, e.opts.Canonical)
		} else {
			s, err = asn1rt.FormatGeneralizedTime(t, e.opts.Canonical)
		}
		if err != nil {
			return e.fail(o, err)
		}
		e.lengthPrefixed([]byte(s))
		return nil
	case asn1rt.KindChoice:
		return e.choice(o, v, f)
	case asn1rt.KindSequence, asn1rt.KindSet:
		return e.components(o, v, f)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		return e.list(o, v, f)
	case asn1rt.KindOpen, asn1rt.KindAny:
		return e.open(o, v)
	default:
		if !kind.IsString() {
			return &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
		}
		s, ok := v.(string)
		if !ok {
			return e.fail(o, fmt.Errorf("expected string, got %T", v))
		}
		b, err := charset.Encode(kind, s)
		if err != nil {
			return e.fail(o, err)
		}
		if n, ok := fixedChars(o); ok {
			if int64(len(b)) != n*int64(charWidth(kind)) {
				return e.fail(o, errOutOfRange)
			}
			e.w.WriteBytes(b)
			return nil
		}
		e.lengthPrefixed(b)
		return nil
	}
}

// enumerated writes the value of an ENUMERATED item. Values between 0 and 127
// use a single octet.
func (e *encoder) enumerated(o *asn1rt.Object, v any) error {
	var value int64
	switch v := v.(type) {
	case string:
		it, ext, ok := o.EnumItem(v)
		if !ok {
			return e.fail(o, fmt.Errorf("unknown enumeration item %q", v))
		}
		if ext && !o.Extensible() {
			return e.fail(o, fmt.Errorf("extension item in non-extensible enumeration"))
		}
		value = it.Value
	case asn1rt.Unknown:
		if !o.Extensible() {
			return e.fail(o, fmt.Errorf("unknown item in non-extensible enumeration"))
		}
		value = int64(v.Index)
	default:
		return e.fail(o, fmt.Errorf("expected enumeration item, got %T", v))
	}
	if value >= 0 && value < 128 {
		e.w.WriteBits(uint64(value), 8)
		return nil
	}
	b := twos.AppendInt64(nil, value)
	e.w.WriteBits(uint64(0x80|len(b)), 8)
	e.w.WriteBytes(b)
	return nil
}

// real writes a REAL value. The constraint of o selects an IEEE 754 encoding
// or the contents octets of the BER encoding.
func (e *encoder) real(o *asn1rt.Object, v any) error {
	r, ok := v.(asn1rt.Real)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Real, got %T", v))
	}
	f := r.Float64()
	switch realWidth(o.Constraint()) {
	case 4:
		if !math.IsNaN(f) && float64(float32(f)) != f {
			return e.fail(o, fmt.Errorf("%w: %s is not a binary32 value", errOutOfRange, r))
		}
		e.w.WriteBits(uint64(math.Float32bits(float32(f))), 32)
		return nil
	case 8:
		if !r.IsSpecial() && asn1rt.RealFromFloat64(f) != r.Normalize() {
			return e.fail(o, fmt.Errorf("%w: %s is not a binary64 value", errOutOfRange, r))
		}
		e.w.WriteBits(math.Float64bits(f), 64)
		return nil
	}
	b, err := ber.AppendReal(nil, r)
	if err != nil {
		return e.fail(o, err)
	}
	e.lengthPrefixed(b)
	return nil
}

// bitString writes a BIT STRING value of o. Values of a contained type are
// written as an open type field.
func (e *encoder) bitString(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	bs, ok := v.(asn1rt.BitString)
	if !ok {
		t := o.Contains()
		if t == nil {
			return e.fail(o, fmt.Errorf("expected BitString, got %T", v))
		}
		b, fields, err := e.sub(t, v, f)
		if err != nil {
			return pkgerrors.WithMessage(err, "contained value")
		}
		e.length(len(b) + 1)
		e.w.WriteBits(0, 8)
		e.w.Embed(fields, e.w.Len())
		e.w.WriteBytes(b)
		return nil
	}
	if !bs.IsValid() {
		return e.fail(o, fmt.Errorf("invalid bit string"))
	}
	data := bs.Padded()
	if n, ok := o.Size().FixedSize(); ok && o.Contains() == nil {
		if int64(bs.BitLength) != n {
			return e.fail(o, errOutOfRange)
		}
		e.w.WriteBytes(data)
		return nil
	}
	e.length(len(data) + 1)
	e.w.WriteBits(uint64(len(data)*8-bs.BitLength), 8)
	e.w.WriteBytes(data)
	return nil
}

// octetString writes an OCTET STRING value of o. Values of a contained type
// are written as an open type field.
func (e *encoder) octetString(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	b, ok := v.([]byte)
	if !ok {
		t := o.Contains()
		if t == nil {
			return e.fail(o, fmt.Errorf("expected []byte, got %T", v))
		}
		b, fields, err := e.sub(t, v, f)
		if err != nil {
			return pkgerrors.WithMessage(err, "contained value")
		}
		e.openField(b, fields)
		return nil
	}
	if n, ok := o.Size().FixedSize(); ok {
		if int64(len(b)) != n {
			return e.fail(o, errOutOfRange)
		}
		e.w.WriteBytes(b)
		return nil
	}
	e.lengthPrefixed(b)
	return nil
}

// choice writes the tag of the chosen alternative followed by its value.
// Alternatives that are untagged CHOICE types write no tag of their own.
func (e *encoder) choice(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	c, ok := v.(asn1rt.Choice)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Choice, got %T", v))
	}
	if alt := o.Component(c.Name); alt != nil {
		chain := alt.TagChain()
		if len(chain) > 0 {
			e.tag(chain[0])
		} else if alt.Kind() != asn1rt.KindChoice {
			return &asn1rt.SchemaError{Object: alt.QualifiedName(), Err: fmt.Errorf("untagged %s alternative", alt.Kind())}
		}
		if !alt.InExtension() {
			return pkgerrors.WithMessagef(e.encode(alt, c.Value, f), "alternative %s", c.Name)
		}
		b, fields, err := e.sub(alt, c.Value, f)
		if err != nil {
			return pkgerrors.WithMessagef(err, "alternative %s", c.Name)
		}
		e.openField(b, fields)
		return nil
	}
	if u, ok := c.Value.(asn1rt.Unknown); ok && asn1rt.IsExtensionName(c.Name) && o.Extensible() {
		// Unknown alternatives keep their complete encoding.
		e.w.WriteBytes(u.Raw)
		return nil
	}
	return e.fail(o, fmt.Errorf("unknown alternative %q", c.Name))
}

// components writes a SEQUENCE or SET value: the preamble holding the
// extension bit and the presence bits, the root components and the extension
// additions as open type fields.
func (e *encoder) components(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	m, ok := v.(map[string]any)
	if !ok {
		return e.fail(o, fmt.Errorf("expected map[string]any, got %T", v))
	}
	nf := f.Push(o, m)
	root := o.RootComponents()
	if o.Kind() == asn1rt.KindSet {
		root = canonicalOrder(root)
	}

	adds := o.ExtensionAdditions()
	type addition struct {
		group   []*asn1rt.Object
		unknown *asn1rt.Unknown
	}
	var present []addition
	for i, g := range adds {
		if slices.ContainsFunc(g, func(c *asn1rt.Object) bool { _, ok := m[c.Name()]; return ok }) {
			present = slices.Grow(present, i+1-len(present))[:i+1]
			present[i] = addition{group: g}
		}
	}
	for _, u := range asn1rt.UnknownExtensions(m) {
		if u.Index < len(adds) || (u.Index < len(present) && present[u.Index].unknown != nil) {
			return e.fail(o, fmt.Errorf("unknown extension index %d conflicts with a known addition", u.Index))
		}
		if u.Index >= len(present) {
			present = slices.Grow(present, u.Index+1-len(present))[:u.Index+1]
		}
		present[u.Index] = addition{unknown: &u}
	}
	if len(present) > 0 && !o.Extensible() {
		return e.fail(o, fmt.Errorf("extension additions in non-extensible %s", o.Kind()))
	}

	values, err := e.preamble(o, root, m, o.Extensible(), len(present) > 0)
	if err != nil {
		return err
	}
	for i, c := range root {
		if values[i] == nil {
			continue
		}
		if err = e.encode(c, *values[i], nf); err != nil {
			return pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
	}
	if len(present) == 0 {
		return nil
	}

	// The presence bitmap is encoded like a BIT STRING.
	n := max(len(adds), len(present))
	e.w.Enter("extensions")
	e.length((n+7)/8 + 1)
	e.w.WriteBits(uint64((8-n%8)%8), 8)
	for i := range n {
		e.w.WriteBit(i < len(present) && (present[i].group != nil || present[i].unknown != nil))
	}
	e.w.Align()
	e.w.Leave()
	for _, a := range present {
		switch {
		case a.unknown != nil:
			e.openField(a.unknown.Raw, nil)
		case len(a.group) == 1 && a.group[0].Group() < 0:
			c := a.group[0]
			b, fields, err := e.sub(c, m[c.Name()], nf)
			if err != nil {
				return pkgerrors.WithMessagef(err, "component %s", c.Name())
			}
			e.openField(b, fields)
		case a.group != nil:
			b, fields, err := e.group(o, a.group, m, nf)
			if err != nil {
				return err
			}
			e.openField(b, fields)
		}
	}
	return nil
}

// preamble writes the extension bit if ext is set and the presence bits of
// the components in cs that may be absent, padded to a full octet. It returns
// the value of each component that is encoded or nil.
func (e *encoder) preamble(o *asn1rt.Object, cs []*asn1rt.Object, m map[string]any, ext, extPresent bool) ([]*any, error) {
	values := make([]*any, len(cs))
	e.w.Enter("preamble")
	defer e.w.Leave()
	if ext {
		e.w.WriteBit(extPresent)
	}
	for i, c := range cs {
		cv, ok := m[c.Name()]
		_, hasDefault := c.Default()
		if ok && hasDefault && e.opts.Canonical {
			d, _ := c.Default()
			ok = !asn1rt.Equal(d, cv)
		}
		switch {
		case c.Optional() || hasDefault:
			e.w.WriteBit(ok)
		case !ok:
			return nil, e.fail(o, fmt.Errorf("missing component %q", c.Name()))
		}
		if ok {
			values[i] = &cv
		}
	}
	e.w.Align()
	return values, nil
}

// group returns the encoding of an extension addition group. The group is
// encoded like a SEQUENCE of its components.
func (e *encoder) group(o *asn1rt.Object, cs []*asn1rt.Object, m map[string]any, f *asn1rt.Frame) ([]byte, []*bitbuf.Field, error) {
	se := &encoder{w: bitbuf.NewWriter(), opts: e.opts}
	if e.w.Recording() {
		se.w.Record()
	}
	values, err := se.preamble(o, cs, m, false, false)
	if err != nil {
		return nil, nil, err
	}
	for i, c := range cs {
		if values[i] == nil {
			continue
		}
		if err = se.encode(c, *values[i], f); err != nil {
			return nil, nil, pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
	}
	return se.w.Bytes(), se.w.Fields(), nil
}

// list writes a SEQUENCE OF or SET OF value. Canonical encodings order the
// elements of a SET OF by their encodings.
func (e *encoder) list(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	l, ok := v.([]any)
	if !ok {
		return e.fail(o, fmt.Errorf("expected []any, got %T", v))
	}
	if n, ok := o.Size().FixedSize(); ok && int64(len(l)) != n {
		return e.fail(o, errOutOfRange)
	}
	elem := o.Elem()
	order := make([]int, len(l))
	for i := range order {
		order[i] = i
	}
	if o.Kind() == asn1rt.KindSetOf && e.opts.Canonical && len(l) > 1 {
		encs := make([][]byte, len(l))
		for i, ev := range l {
			b, _, err := (&encoder{w: bitbuf.NewWriter(), opts: e.opts}).sub(elem, ev, f)
			if err != nil {
				return pkgerrors.WithMessagef(err, "element %d", i)
			}
			encs[i] = b
		}
		slices.SortStableFunc(order, func(a, b int) int { return bytes.Compare(encs[a], encs[b]) })
	}
	e.quantity(len(l))
	for _, i := range order {
		if err := e.encode(elem, l[i], f); err != nil {
			return pkgerrors.WithMessagef(err, "element %d", i)
		}
	}
	return nil
}

// open writes the value of an OPEN TYPE or ANY as an open type field.
func (e *encoder) open(o *asn1rt.Object, v any) error {
	ov, ok := v.(asn1rt.Open)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Open, got %T", v))
	}
	if u, ok := ov.Value.(asn1rt.Unknown); ok {
		e.openField(u.Raw, nil)
		return nil
	}
	t := o.OpenType(ov.Type)
	if t == nil {
		return e.fail(o, fmt.Errorf("unknown open type %q", ov.Type))
	}
	b, fields, err := e.sub(t, ov.Value, nil)
	if err != nil {
		return pkgerrors.WithMessagef(err, "open type %s", ov.Type)
	}
	e.openField(b, fields)
	return nil
}

// charWidth returns the number of octets per character of a string kind with
// a fixed-width encoding or 0.
func charWidth(k asn1rt.Kind) int {
	if k.KnownMultiplier() == 0 {
		return 0
	}
	return max(1, charset.Width(k))
}

// fixedChars reports whether values of the string object o have a fixed number
// of characters and a fixed-width encoding. Such values are written without a
// length determinant.
func fixedChars(o *asn1rt.Object) (int64, bool) {
	if charWidth(o.Kind()) == 0 {
		return 0, false
	}
	return o.Size().FixedSize()
}

// realWidth returns 4 or 8 if all bounds of the REAL constraint c are exactly
// representable as IEEE 754 binary32 or binary64 values. Otherwise it returns
// 0.
func realWidth(c *asn1rt.Constraint) int {
	if c == nil || c.IsExtensible() || len(c.Root) == 0 {
		return 0
	}
	width := 4
	for _, el := range c.Root {
		bounds := []any{el}
		if r, ok := el.(asn1rt.Range); ok {
			bounds = []any{r.Lower, r.Upper}
		}
		for _, b := range bounds {
			r, ok := b.(asn1rt.Real)
			if !ok || r.IsSpecial() {
				return 0
			}
			f := r.Float64()
			if asn1rt.RealFromFloat64(f) != r.Normalize() {
				return 0
			}
			if float64(float32(f)) != f {
				width = 8
			}
		}
	}
	return width
}

// canonicalOrder returns cs sorted by their smallest outer tag. Components
// without tags are sorted last.
func canonicalOrder(cs []*asn1rt.Object) []*asn1rt.Object {
	smallest := func(c *asn1rt.Object) (asn1rt.Tag, bool) {
		tags := c.OuterTags()
		if len(tags) == 0 {
			return asn1rt.Tag{}, false
		}
		return slices.MinFunc(tags, compareTags), true
	}
	sorted := slices.Clone(cs)
	slices.SortStableFunc(sorted, func(a, b *asn1rt.Object) int {
		ta, okA := smallest(a)
		tb, okB := smallest(b)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return compareTags(ta, tb)
	})
	return sorted
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

