// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	pkgerrors "github.com/pkg/errors"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/ber"
	"codello.dev/asn1rt/bitbuf"
	"codello.dev/asn1rt/internal/charset"
)

// encoder writes PER encodings to a bit buffer. Every value is recorded as a
// field named after its object.
type encoder struct {
	w    *bitbuf.Writer
	opts Options
}

func (e *encoder) fail(o *asn1rt.Object, err error) error {
	return &EncodeError{Object: o.QualifiedName(), Err: err}
}

// finish pads the encoding to a complete encoding.
func (e *encoder) finish() {
	if e.w.Len() == 0 {
		e.w.WriteBits(0, 8)
		return
	}
	e.w.Align()
}

// sub returns the complete encoding of v as a value of o produced by a
// separate encoder. The recorded fields are relative to the start of the
// encoding.
func (e *encoder) sub(o *asn1rt.Object, v any, f *asn1rt.Frame) ([]byte, []*bitbuf.Field, error) {
	se := &encoder{w: bitbuf.NewWriter(), opts: e.opts}
	if e.w.Recording() {
		se.w.Record()
	}
	if err := se.encode(o, v, f); err != nil {
		return nil, nil, err
	}
	se.finish()
	return se.w.Bytes(), se.w.Fields(), nil
}

// openField writes b as an open type field. fields describe the contents of
// b.
func (e *encoder) openField(b []byte, fields []*bitbuf.Field) {
	first := true
	_ = e.fragments(len(b), 0, 0, false, func(from, to int) error {
		if first {
			e.w.Embed(fields, e.w.Len())
			first = false
		}
		e.w.WriteBytes(b[from:to])
		return nil
	})
}

// fieldName returns the name of the field recorded for a value of o.
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
		e.w.WriteBit(b)
		return nil
	case asn1rt.KindInteger:
		return e.integer(o, v)
	case asn1rt.KindEnumerated:
		return e.enumerated(o, v)
	case asn1rt.KindReal:
		r, ok := v.(asn1rt.Real)
		if !ok {
			return e.fail(o, fmt.Errorf("expected Real, got %T", v))
		}
		b, err := ber.AppendReal(nil, r)
		if err != nil {
			return e.fail(o, err)
		}
		e.octets(b)
		return nil
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
		e.octets(b)
		return nil
	case asn1rt.KindRelativeOID:
		oid, ok := v.(asn1rt.RelativeOID)
		if !ok {
			return e.fail(o, fmt.Errorf("expected RelativeOID, got %T", v))
		}
		e.octets(ber.AppendRelativeOID(nil, oid))
		return nil
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		t, ok := v.(time.Time)
		if !ok {
			return e.fail(o, fmt.Errorf("expected time.Time, got %T", v))
		}
		s, err := timeString(o, t, e.opts.Canonical)
		if err != nil {
			return e.fail(o, err)
		}
		return e.knownMultiplier(o, s, nil)
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
		if kind.KnownMultiplier() > 0 {
			return e.knownMultiplier(o, s, o.Size())
		}
		b, err := charset.Encode(kind, s)
		if err != nil {
			return e.fail(o, err)
		}
		e.octets(b)
		return nil
	}
}

//region Numbers

// integer writes an INTEGER value according to the value constraint of o.
func (e *encoder) integer(o *asn1rt.Object, v any) error {
	b, ok := asn1rt.BigInt(v)
	if !ok {
		return e.fail(o, fmt.Errorf("expected integer, got %T", v))
	}
	v = asn1rt.NormalizeInt(b)
	c := o.Constraint()
	if c.IsExtensible() {
		inRoot := c.InRoot(v)
		e.w.WriteBit(!inRoot)
		if !inRoot {
			e.unconstrained(v)
			return nil
		}
	}
	lb, ub := c.BigBounds()
	switch {
	case lb != nil && ub != nil:
		if b.Cmp(lb) < 0 || b.Cmp(ub) > 0 {
			return e.fail(o, errOutOfRange)
		}
		e.bigConstrained(new(big.Int).Sub(b, lb), new(big.Int).Sub(ub, lb))
	case lb != nil:
		if err := e.semiConstrained(b, lb); err != nil {
			return e.fail(o, err)
		}
	default:
		e.unconstrained(v)
	}
	return nil
}

// enumerated writes the index of an ENUMERATED value. Root items are indexed
// in ascending order of their values, extension items by their position.
func (e *encoder) enumerated(o *asn1rt.Object, v any) error {
	root := o.EnumRoot()
	var (
		idx   int
		inExt bool
	)
	switch v := v.(type) {
	case string:
		idx = slices.IndexFunc(root, func(it asn1rt.EnumItem) bool { return it.Name == v })
		if idx < 0 {
			idx = slices.IndexFunc(o.EnumExt(), func(it asn1rt.EnumItem) bool { return it.Name == v })
			inExt = true
		}
		if idx < 0 {
			return e.fail(o, fmt.Errorf("unknown enumeration item %q", v))
		}
	case asn1rt.Unknown:
		if v.Index < 0 {
			return e.fail(o, fmt.Errorf("invalid extension index %d", v.Index))
		}
		idx, inExt = v.Index, true
	default:
		return e.fail(o, fmt.Errorf("expected enumeration item, got %T", v))
	}
	if o.Extensible() {
		e.w.WriteBit(inExt)
	} else if inExt {
		return e.fail(o, fmt.Errorf("extension item in non-extensible enumeration"))
	}
	if inExt {
		e.normallySmall(uint64(idx))
		return nil
	}
	if len(root) == 0 {
		return &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("enumeration without root items")}
	}
	e.constrained(uint64(idx), uint64(len(root)))
	return nil
}

//endregion

//region Strings

// sized writes a value of n items with the size constraint size. alignFixed
// reports whether a fixed-size value with ub items is octet-aligned, alignVar
// whether variable-sized values are. write is called for each range of items
// following a length determinant.
func (e *encoder) sized(size *asn1rt.Constraint, n int, alignFixed func(ub int64) bool, alignVar bool, write func(from, to int) error) error {
	aligned := func(from, to int) error {
		if alignVar && e.opts.Aligned {
			e.w.Align()
		}
		return write(from, to)
	}
	if size.IsExtensible() {
		inRoot := size.InRoot(int64(n))
		e.w.WriteBit(!inRoot)
		if !inRoot {
			return e.fragments(n, 0, 0, false, aligned)
		}
	}
	lb, ub, bounded := size.SizeBounds()
	switch {
	case bounded && ub == 0:
		if n != 0 {
			return errOutOfRange
		}
		return nil
	case bounded && lb == ub && ub < maxConstrainedLength:
		if int64(n) != ub {
			return errOutOfRange
		}
		if e.opts.Aligned && alignFixed(ub) {
			e.w.Align()
		}
		return write(0, n)
	}
	return e.fragments(n, lb, ub, bounded, aligned)
}

// bitString writes a BIT STRING value of o. Values of a contained type are
// written as an open type field.
func (e *encoder) bitString(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	bs, ok := v.(asn1rt.BitString)
	size := o.Size()
	if !ok {
		t := o.Contains()
		if t == nil {
			return e.fail(o, fmt.Errorf("expected BitString, got %T", v))
		}
		b, fields, err := e.sub(t, v, f)
		if err != nil {
			return pkgerrors.WithMessage(err, "contained value")
		}
		e.openField(b, fields)
		return nil
	}
	if !bs.IsValid() {
		return e.fail(o, fmt.Errorf("invalid bit string"))
	}
	err := e.sized(size, bs.BitLength, func(ub int64) bool { return ub > 16 }, true, func(from, to int) error {
		e.w.WriteBitString(bs.Bytes[from/8:], to-from)
		return nil
	})
	if err != nil {
		return e.fail(o, err)
	}
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
	err := e.sized(o.Size(), len(b), func(ub int64) bool { return ub > 2 }, true, func(from, to int) error {
		e.w.WriteBytes(b[from:to])
		return nil
	})
	if err != nil {
		return e.fail(o, err)
	}
	return nil
}

// knownMultiplier writes a string with a known-multiplier character set. Each
// character uses the same number of bits.
func (e *encoder) knownMultiplier(o *asn1rt.Object, s string, size *asn1rt.Constraint) error {
	a := alphabetOf(o, e.opts.Aligned)
	rs := []rune(s)
	_, ub, bounded := size.SizeBounds()
	alignVar := a.alignString(ub, bounded)
	err := e.sized(size, len(rs), func(ub int64) bool { return ub*int64(a.bits) > 16 }, alignVar, func(from, to int) error {
		for _, r := range rs[from:to] {
			c, ok := a.code(r)
			if !ok {
				return fmt.Errorf("%w: %q", errNotInAlphabet, r)
			}
			e.w.WriteBits(c, a.bits)
		}
		return nil
	})
	if err != nil {
		return e.fail(o, err)
	}
	return nil
}

//endregion

//region Constructed types

// choice writes the index of the chosen alternative followed by its value.
// Extension alternatives are written as open type fields.
func (e *encoder) choice(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	c, ok := v.(asn1rt.Choice)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Choice, got %T", v))
	}
	root := canonicalOrder(o.RootComponents())
	if i := slices.IndexFunc(root, func(alt *asn1rt.Object) bool { return alt.Name() == c.Name }); i >= 0 {
		if o.Extensible() {
			e.w.WriteBit(false)
		}
		e.constrained(uint64(i), uint64(len(root)))
		return pkgerrors.WithMessagef(e.encode(root[i], c.Value, f), "alternative %s", c.Name)
	}
	if !o.Extensible() {
		return e.fail(o, fmt.Errorf("unknown alternative %q", c.Name))
	}
	ext := extensionAlternatives(o)
	if i := slices.IndexFunc(ext, func(alt *asn1rt.Object) bool { return alt.Name() == c.Name }); i >= 0 {
		b, fields, err := e.sub(ext[i], c.Value, f)
		if err != nil {
			return pkgerrors.WithMessagef(err, "alternative %s", c.Name)
		}
		e.w.WriteBit(true)
		e.normallySmall(uint64(i))
		e.openField(b, fields)
		return nil
	}
	if u, ok := c.Value.(asn1rt.Unknown); ok && asn1rt.IsExtensionName(c.Name) {
		e.w.WriteBit(true)
		e.normallySmall(uint64(asn1rt.ExtensionIndex(c.Name, u)))
		e.openField(u.Raw, nil)
		return nil
	}
	return e.fail(o, fmt.Errorf("unknown alternative %q", c.Name))
}

// components writes a SEQUENCE or SET value: the extension bit, the preamble
// of root components that may be absent, the root components and finally the
// extension additions as open type fields.
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

	// Extension additions are indexed by their position. Unknown extensions
	// keep the index they were decoded with.
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
	if o.Extensible() {
		e.w.WriteBit(len(present) > 0)
	} else if len(present) > 0 {
		return e.fail(o, fmt.Errorf("extension additions in non-extensible %s", o.Kind()))
	}

	values, err := e.preamble(o, root, m)
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

	n := max(len(adds), len(present))
	if err = e.smallLength(n); err != nil {
		return e.fail(o, err)
	}
	for i := range n {
		e.w.WriteBit(i < len(present) && (present[i].group != nil || present[i].unknown != nil))
	}
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

// preamble writes the presence bits of the components in cs that may be
// absent. It returns the value of each component that is encoded or nil.
func (e *encoder) preamble(o *asn1rt.Object, cs []*asn1rt.Object, m map[string]any) ([]*any, error) {
	values := make([]*any, len(cs))
	e.w.Enter("preamble")
	defer e.w.Leave()
	for i, c := range cs {
		cv, ok := m[c.Name()]
		if ok {
			if d, hasDefault := c.Default(); hasDefault && e.opts.Canonical && asn1rt.Equal(d, cv) {
				ok = false
			}
		}
		_, hasDefault := c.Default()
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
	return values, nil
}

// group returns the complete encoding of an extension addition group. The
// group is encoded like a SEQUENCE of its components.
func (e *encoder) group(o *asn1rt.Object, cs []*asn1rt.Object, m map[string]any, f *asn1rt.Frame) ([]byte, []*bitbuf.Field, error) {
	se := &encoder{w: bitbuf.NewWriter(), opts: e.opts}
	if e.w.Recording() {
		se.w.Record()
	}
	values, err := se.preamble(o, cs, m)
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
	se.finish()
	return se.w.Bytes(), se.w.Fields(), nil
}

// list writes a SEQUENCE OF or SET OF value. Canonical encodings order the
// elements of a SET OF by their complete encodings.
func (e *encoder) list(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	l, ok := v.([]any)
	if !ok {
		return e.fail(o, fmt.Errorf("expected []any, got %T", v))
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
	err := e.sized(o.Size(), len(l), func(int64) bool { return false }, false, func(from, to int) error {
		for _, i := range order[from:to] {
			if err := e.encode(elem, l[i], f); err != nil {
				return pkgerrors.WithMessagef(err, "element %d", i)
			}
		}
		return nil
	})
	if err != nil {
		var encErr *EncodeError
		if errors.As(err, &encErr) {
			return err
		}
		return e.fail(o, err)
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

//endregion

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

// extensionAlternatives returns the extension alternatives of a CHOICE in
// definition order.
func extensionAlternatives(o *asn1rt.Object) []*asn1rt.Object {
	var alts []*asn1rt.Object
	for _, g := range o.ExtensionAdditions() {
		alts = append(alts, g...)
	}
	return alts
}

