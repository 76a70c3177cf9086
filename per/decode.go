// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package per

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/ber"
	"codello.dev/asn1rt/bitbuf"
	"codello.dev/asn1rt/internal/charset"
)

// decoder reads PER encodings from a bit buffer. depth counts the enclosing
// constructed values.
type decoder struct {
	r     *bitbuf.Reader
	opts  Options
	depth int
}

func (d *decoder) syntax(o *asn1rt.Object, err error) error {
	return &SyntaxError{BitOffset: d.r.Offset(), Object: o.QualifiedName(), Err: err}
}

// finish consumes the padding of a complete encoding and verifies that no data
// follows. Canonical decoding requires the padding to be zero.
func (d *decoder) finish(o *asn1rt.Object) error {
	n := (8 - d.r.Offset()%8) % 8
	if d.r.Offset() == 0 {
		// An empty encoding is represented by a single zero octet.
		n = 8
	}
	pad, err := d.r.ReadBits(n)
	if err != nil {
		return d.syntax(o, err)
	}
	if d.opts.Canonical && pad != 0 {
		return d.syntax(o, errPadding)
	}
	if d.r.Remaining() > 0 {
		return d.syntax(o, errTrailingData)
	}
	return nil
}

// sub returns a decoder for the complete encoding b nested in the current
// encoding.
func (d *decoder) sub(b []byte) *decoder {
	sd := &decoder{r: bitbuf.NewReader(b), opts: d.opts, depth: d.depth}
	if d.r.Recording() {
		sd.r.Record()
	}
	return sd
}

// contained decodes the complete encoding b of a value of t. start is the
// offset of b in the current encoding.
func (d *decoder) contained(t *asn1rt.Object, b []byte, start int, f *asn1rt.Frame) (any, error) {
	sd := d.sub(b)
	v, err := sd.decode(t, f)
	if err == nil {
		err = sd.finish(t)
	}
	if err != nil {
		return nil, err
	}
	d.r.Embed(sd.r.Fields(), start)
	return v, nil
}

// reported reports whether err already carries the context of the failing
// object.
func reported(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se) ||
		errors.Is(err, asn1rt.ErrSchema) ||
		errors.Is(err, asn1rt.ErrNotSupported) ||
		errors.Is(err, asn1rt.ErrBound) ||
		errors.Is(err, asn1rt.ErrShape)
}

// decode reads a value of o. f holds the enclosing constructed values.
func (d *decoder) decode(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	d.r.Enter(fieldName(o))
	defer d.r.Leave()

	kind := o.Kind()
	if kind.HasComponents() || kind.IsList() || kind.IsOpen() {
		if d.depth >= d.opts.maxDepth() {
			return nil, d.syntax(o, errMaxDepth)
		}
		d.depth++
		defer func() { d.depth-- }()
	}
	v, err := d.value(o, kind, f)
	if err != nil && !reported(err) {
		err = d.syntax(o, err)
	}
	return v, err
}

func (d *decoder) value(o *asn1rt.Object, kind asn1rt.Kind, f *asn1rt.Frame) (any, error) {
	switch kind {
	case asn1rt.KindClass:
		return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	case asn1rt.KindNull:
		return asn1rt.Null{}, nil
	case asn1rt.KindBoolean:
		return d.r.ReadBit()
	case asn1rt.KindInteger:
		return d.integer(o)
	case asn1rt.KindEnumerated:
		return d.enumerated(o)
	case asn1rt.KindReal:
		b, err := d.octets()
		if err != nil {
			return nil, err
		}
		return ber.ParseReal(b)
	case asn1rt.KindBitString:
		return d.bitString(o, f)
	case asn1rt.KindOctetString:
		return d.octetString(o, f)
	case asn1rt.KindOID:
		b, err := d.octets()
		if err != nil {
			return nil, err
		}
		return ber.ParseOID(b)
	case asn1rt.KindRelativeOID:
		b, err := d.octets()
		if err != nil {
			return nil, err
		}
		return ber.ParseRelativeOID(b)
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		s, err := d.knownMultiplier(o, nil)
		if err != nil {
			return nil, err
		}
		return parseTime(o, s)
	case asn1rt.KindChoice:
		return d.choice(o, f)
	case asn1rt.KindSequence, asn1rt.KindSet:
		return d.components(o, f)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		return d.list(o, f)
	case asn1rt.KindOpen, asn1rt.KindAny:
		return d.open(o, f)
	}
	if !kind.IsString() {
		return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
	}
	if kind.KnownMultiplier() > 0 {
		return d.knownMultiplier(o, o.Size())
	}
	b, err := d.octets()
	if err != nil {
		return nil, err
	}
	return charset.Decode(kind, b)
}

//region Numbers

// integer reads an INTEGER value according to the value constraint of o.
func (d *decoder) integer(o *asn1rt.Object) (any, error) {
	c := o.Constraint()
	if c.IsExtensible() {
		ext, err := d.r.ReadBit()
		if err != nil {
			return nil, err
		}
		if ext {
			return d.unconstrained()
		}
	}
	lb, ub := c.BigBounds()
	switch {
	case lb != nil && ub != nil:
		if ub.Cmp(lb) < 0 {
			return nil, errOutOfRange
		}
		off, err := d.bigConstrained(new(big.Int).Sub(ub, lb))
		if err != nil {
			return nil, err
		}
		return asn1rt.NormalizeInt(off.Add(off, lb)), nil
	case lb != nil:
		return d.semiConstrained(lb)
	}
	return d.unconstrained()
}

// enumerated reads the index of an ENUMERATED value. Unknown extension items
// are returned as [asn1rt.Unknown] carrying the index.
func (d *decoder) enumerated(o *asn1rt.Object) (any, error) {
	ext := false
	if o.Extensible() {
		var err error
		if ext, err = d.r.ReadBit(); err != nil {
			return nil, err
		}
	}
	if !ext {
		root := o.EnumRoot()
		if len(root) == 0 {
			return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("enumeration without root items")}
		}
		idx, err := d.constrained(uint64(len(root)))
		if err != nil {
			return nil, err
		}
		return root[idx].Name, nil
	}
	idx, err := d.normallySmall()
	if err != nil {
		return nil, err
	}
	if items := o.EnumExt(); idx < uint64(len(items)) {
		return items[idx].Name, nil
	}
	if idx > maxItems {
		return nil, errOutOfRange
	}
	asn1rt.LogUnknownExtension(o, codecName, int(idx))
	return asn1rt.Unknown{Index: int(idx)}, nil
}

//endregion

//region Strings

// sized reads the length determinants of a value with the size constraint
// size and calls read with the number of items following each of them. It
// returns the total number of items.
func (d *decoder) sized(size *asn1rt.Constraint, alignFixed func(ub int64) bool, alignVar bool, read func(n int) error) (int, error) {
	aligned := func(n int) error {
		if alignVar && d.opts.Aligned {
			d.r.Align()
		}
		return read(n)
	}
	if size.IsExtensible() {
		ext, err := d.r.ReadBit()
		if err != nil {
			return 0, err
		}
		if ext {
			return d.fragments(0, 0, false, aligned)
		}
	}
	lb, ub, bounded := size.SizeBounds()
	switch {
	case bounded && ub == 0:
		return 0, nil
	case bounded && lb == ub && ub < maxConstrainedLength:
		if d.opts.Aligned && alignFixed(ub) {
			d.r.Align()
		}
		return int(ub), read(int(ub))
	}
	return d.fragments(lb, ub, bounded, aligned)
}

// bitString reads a BIT STRING value of o. Values of a contained type that
// cannot be decoded are returned as plain bit strings.
func (d *decoder) bitString(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	if t := o.Contains(); t != nil {
		b, start, err := d.octetsAt()
		if err != nil {
			return nil, err
		}
		if v, err := d.contained(t, b, start, f); err == nil {
			return v, nil
		}
		return asn1rt.BitString{Bytes: b, BitLength: len(b) * 8}, nil
	}
	bs := asn1rt.BitString{Bytes: []byte{}}
	_, err := d.sized(o.Size(), func(ub int64) bool { return ub > 16 }, true, func(n int) error {
		if bs.BitLength%8 != 0 {
			return errFragment
		}
		b, err := d.r.ReadBitString(n)
		bs.Bytes = append(bs.Bytes, b...)
		bs.BitLength += n
		return err
	})
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// octetString reads an OCTET STRING value of o. Values of a contained type
// that cannot be decoded are returned as octets.
func (d *decoder) octetString(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	if t := o.Contains(); t != nil {
		b, start, err := d.octetsAt()
		if err != nil {
			return nil, err
		}
		if v, err := d.contained(t, b, start, f); err == nil {
			return v, nil
		}
		return b, nil
	}
	b := []byte{}
	_, err := d.sized(o.Size(), func(ub int64) bool { return ub > 2 }, true, func(n int) error {
		p, err := d.r.ReadBytes(n)
		b = append(b, p...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// knownMultiplier reads a string with a known-multiplier character set.
func (d *decoder) knownMultiplier(o *asn1rt.Object, size *asn1rt.Constraint) (string, error) {
	a := alphabetOf(o, d.opts.Aligned)
	_, ub, bounded := size.SizeBounds()
	var sb strings.Builder
	_, err := d.sized(size, func(ub int64) bool { return ub*int64(a.bits) > 16 }, a.alignString(ub, bounded), func(n int) error {
		if n*a.bits > d.r.Remaining() {
			return io.ErrUnexpectedEOF
		}
		for range n {
			c, err := d.r.ReadBits(a.bits)
			if err != nil {
				return err
			}
			r, ok := a.char(c)
			if !ok {
				return fmt.Errorf("%w: %d", errNotInAlphabet, c)
			}
			sb.WriteRune(r)
		}
		return nil
	})
	return sb.String(), err
}

//endregion

//region Constructed types

// choice reads the index of the chosen alternative and its value. Unknown
// extension alternatives are returned with their raw encoding.
func (d *decoder) choice(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	ext := false
	if o.Extensible() {
		var err error
		if ext, err = d.r.ReadBit(); err != nil {
			return nil, err
		}
	}
	if !ext {
		root := canonicalOrder(o.RootComponents())
		if len(root) == 0 {
			return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("CHOICE without root alternatives")}
		}
		i, err := d.constrained(uint64(len(root)))
		if err != nil {
			return nil, err
		}
		alt := root[i]
		v, err := d.decode(alt, f)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "alternative %s", alt.Name())
		}
		return asn1rt.Choice{Name: alt.Name(), Value: v}, nil
	}
	i, err := d.normallySmall()
	if err != nil {
		return nil, err
	}
	b, start, err := d.octetsAt()
	if err != nil {
		return nil, err
	}
	if alts := extensionAlternatives(o); i < uint64(len(alts)) {
		alt := alts[i]
		v, err := d.contained(alt, b, start, f)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "alternative %s", alt.Name())
		}
		return asn1rt.Choice{Name: alt.Name(), Value: v}, nil
	}
	if i > maxItems {
		return nil, errOutOfRange
	}
	asn1rt.LogUnknownExtension(o, codecName, int(i))
	return asn1rt.Choice{
		Name:  asn1rt.ExtensionName(int(i)),
		Value: asn1rt.Unknown{Index: int(i), Raw: b},
	}, nil
}

// components reads a SEQUENCE or SET value. Extension additions that the
// schema does not know are stored as unknown extensions.
func (d *decoder) components(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	m := make(map[string]any)
	nf := f.Push(o, m)
	root := o.RootComponents()
	if o.Kind() == asn1rt.KindSet {
		root = canonicalOrder(root)
	}
	ext := false
	if o.Extensible() {
		var err error
		if ext, err = d.r.ReadBit(); err != nil {
			return nil, err
		}
	}
	if err := d.members(root, m, nf); err != nil {
		return nil, err
	}
	if !ext {
		return m, nil
	}

	n, err := d.smallLength()
	if err != nil {
		return nil, err
	}
	present := make([]bool, n)
	for i := range present {
		if present[i], err = d.r.ReadBit(); err != nil {
			return nil, err
		}
	}
	adds := o.ExtensionAdditions()
	for i, p := range present {
		if !p {
			continue
		}
		b, start, err := d.octetsAt()
		if err != nil {
			return nil, err
		}
		switch {
		case i >= len(adds):
			asn1rt.LogUnknownExtension(o, codecName, i)
			m[asn1rt.ExtensionName(i)] = asn1rt.Unknown{Index: i, Raw: b}
		case len(adds[i]) == 1 && adds[i][0].Group() < 0:
			c := adds[i][0]
			v, err := d.contained(c, b, start, nf)
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "component %s", c.Name())
			}
			m[c.Name()] = v
		default:
			sd := d.sub(b)
			err := sd.members(adds[i], m, nf)
			if err == nil {
				err = sd.finish(o)
			}
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "extension group %d", i)
			}
			d.r.Embed(sd.r.Fields(), start)
		}
	}
	return m, nil
}

// members reads the preamble of cs followed by the present components and
// stores their values in m.
func (d *decoder) members(cs []*asn1rt.Object, m map[string]any, f *asn1rt.Frame) error {
	present := make([]bool, len(cs))
	d.r.Enter("preamble")
	for i, c := range cs {
		_, hasDefault := c.Default()
		if !c.Optional() && !hasDefault {
			present[i] = true
			continue
		}
		var err error
		if present[i], err = d.r.ReadBit(); err != nil {
			d.r.Leave()
			return err
		}
	}
	d.r.Leave()
	for i, c := range cs {
		if !present[i] {
			continue
		}
		v, err := d.decode(c, f)
		if err != nil {
			return pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
		m[c.Name()] = v
	}
	return nil
}

// list reads a SEQUENCE OF or SET OF value.
func (d *decoder) list(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	elem := o.Elem()
	l := []any{}
	_, err := d.sized(o.Size(), func(int64) bool { return false }, false, func(n int) error {
		l = slices.Grow(l, min(n, 1024))
		for range n {
			v, err := d.decode(elem, f)
			if err != nil {
				return pkgerrors.WithMessagef(err, "element %d", len(l))
			}
			l = append(l, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// open reads an open type field. The type of the contents is selected by the
// table constraint of o. Contents that cannot be resolved are kept as raw
// encoding.
func (d *decoder) open(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	b, start, err := d.octetsAt()
	if err != nil {
		return nil, err
	}
	if o.Table() != nil {
		res, cands, err := o.ResolveTable(f)
		if err != nil {
			return nil, err
		}
		switch res {
		case asn1rt.OneMatch:
			if t, ok := cands[0].(*asn1rt.Object); ok {
				v, err := d.contained(t, b, start, nil)
				if err != nil {
					return nil, pkgerrors.WithMessagef(err, "open type %s", t.Name())
				}
				return asn1rt.Open{Type: t.Name(), Value: v}, nil
			}
		case asn1rt.ManyMatches:
			for _, c := range cands {
				t, ok := c.(*asn1rt.Object)
				if !ok {
					continue
				}
				if v, err := d.contained(t, b, start, nil); err == nil {
					return asn1rt.Open{Type: t.Name(), Value: v}, nil
				}
			}
		}
	}
	asn1rt.Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"codec":  codecName,
		"octets": len(b),
	}).Warn("open type content not resolved")
	return asn1rt.Open{Value: asn1rt.Unknown{Raw: b}}, nil
}

//endregion
