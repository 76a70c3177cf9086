// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package oer

import (
	"errors"
	"fmt"
	"math"
	"slices"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/ber"
	"codello.dev/asn1rt/bitbuf"
	"codello.dev/asn1rt/internal/charset"
	"codello.dev/asn1rt/internal/twos"
)

// decoder reads OER encodings. depth counts the enclosing constructed values.
// pending holds the tag of an untagged CHOICE alternative that the enclosing
// CHOICE has already consumed.
type decoder struct {
	r       *bitbuf.Reader
	opts    Options
	depth   int
	pending *asn1rt.Tag
}

func (d *decoder) syntax(o *asn1rt.Object, err error) error {
	return &SyntaxError{ByteOffset: d.r.Offset() / 8, Object: o.QualifiedName(), Err: err}
}

// sub returns a decoder for the encoding b nested in the current encoding.
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
	return d.containedTag(t, b, start, f, nil)
}

func (d *decoder) containedTag(t *asn1rt.Object, b []byte, start int, f *asn1rt.Frame, pending *asn1rt.Tag) (any, error) {
	sd := d.sub(b)
	sd.pending = pending
	v, err := sd.decode(t, f)
	if err == nil && sd.r.Remaining() > 0 {
		err = sd.syntax(t, errTrailingData)
	}
	if err != nil {
		return nil, err
	}
	d.r.Embed(sd.r.Fields(), start)
	return v, nil
}

// align skips the padding bits up to the next octet boundary. Canonical
// encodings pad with zeros.
func (d *decoder) align() error {
	pad := (8 - d.r.Offset()%8) % 8
	if pad == 0 {
		return nil
	}
	p, err := d.r.ReadBits(pad)
	if err != nil {
		return err
	}
	if p != 0 && d.opts.Canonical {
		return errNonCanonical
	}
	return nil
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
		b, err := d.r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		if d.opts.Canonical && b != 0 && b != 0xFF {
			return nil, errNonCanonical
		}
		return b != 0, nil
	case asn1rt.KindInteger:
		return d.integer(o.Constraint())
	case asn1rt.KindEnumerated:
		return d.enumerated(o)
	case asn1rt.KindReal:
		return d.real(o)
	case asn1rt.KindBitString:
		return d.bitString(o, f)
	case asn1rt.KindOctetString:
		return d.octetString(o, f)
	case asn1rt.KindOID:
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return ber.ParseOID(b)
	case asn1rt.KindRelativeOID:
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return ber.ParseRelativeOID(b)
	case asn1rt.KindUTCTime:
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return asn1rt.ParseUTCTime(string(b))
	case asn1rt.KindGeneralizedTime:
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		return asn1rt.ParseGeneralizedTime(string(b))
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
	var (
		b   []byte
		err error
	)
	if n, ok := fixedChars(o); ok {
		b, err = d.r.ReadBytes(int(n) * charWidth(kind))
	} else {
		b, err = d.lengthPrefixed()
	}
	if err != nil {
		return nil, err
	}
	return charset.Decode(kind, b)
}

// enumerated reads the value of an ENUMERATED item. Unknown values of an
// extensible enumeration are returned as [asn1rt.Unknown] carrying the value.
func (d *decoder) enumerated(o *asn1rt.Object) (any, error) {
	c, err := d.r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	value := int64(c)
	if c&0x80 != 0 {
		n := int(c & 0x7F)
		if n == 0 || n > 8 {
			return nil, errLength
		}
		b, err := d.r.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		if d.opts.Canonical && !twos.Minimal(b) {
			return nil, errNonCanonical
		}
		value = twos.Parse(b).(int64)
		if d.opts.Canonical && value >= 0 && value < 128 {
			return nil, errNonCanonical
		}
	}
	if it, ok := o.EnumByValue(value); ok {
		return it.Name, nil
	}
	if !o.Extensible() || value < math.MinInt32 || value > math.MaxInt32 {
		return nil, errOutOfRange
	}
	asn1rt.LogUnknownExtension(o, codecName, int(value))
	return asn1rt.Unknown{Index: int(value)}, nil
}

// real reads a REAL value in the format selected by the constraint of o.
func (d *decoder) real(o *asn1rt.Object) (any, error) {
	switch realWidth(o.Constraint()) {
	case 4:
		u, err := d.r.ReadBits(32)
		if err != nil {
			return nil, err
		}
		return asn1rt.RealFromFloat64(float64(math.Float32frombits(uint32(u)))), nil
	case 8:
		u, err := d.r.ReadBits(64)
		if err != nil {
			return nil, err
		}
		return asn1rt.RealFromFloat64(math.Float64frombits(u)), nil
	}
	b, err := d.lengthPrefixed()
	if err != nil {
		return nil, err
	}
	return ber.ParseReal(b)
}

// bitString reads a BIT STRING value of o. Values of a contained type that
// cannot be decoded are returned as plain bit strings.
func (d *decoder) bitString(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	if n, ok := o.Size().FixedSize(); ok && o.Contains() == nil {
		b, err := d.r.ReadBytes(int((n + 7) / 8))
		if err != nil {
			return nil, err
		}
		bs := asn1rt.BitString{Bytes: b, BitLength: int(n)}
		if d.opts.Canonical && !slices.Equal(bs.Padded(), b) {
			return nil, errNonCanonical
		}
		return bs, nil
	}
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errBitStringSize
	}
	unused, err := d.r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if unused > 7 || (n == 1 && unused != 0) {
		return nil, errBitStringSize
	}
	start := d.r.Offset()
	b, err := d.r.ReadBytes(n - 1)
	if err != nil {
		return nil, err
	}
	if t := o.Contains(); t != nil && unused == 0 {
		if v, err := d.contained(t, b, start, f); err == nil {
			return v, nil
		}
	}
	bs := asn1rt.BitString{Bytes: b, BitLength: len(b)*8 - int(unused)}
	if d.opts.Canonical && !slices.Equal(bs.Padded(), b) {
		return nil, errNonCanonical
	}
	return bs, nil
}

// octetString reads an OCTET STRING value of o. Values of a contained type
// that cannot be decoded are returned as octets.
func (d *decoder) octetString(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	if t := o.Contains(); t != nil {
		b, start, err := d.lengthPrefixedAt()
		if err != nil {
			return nil, err
		}
		if v, err := d.contained(t, b, start, f); err == nil {
			return v, nil
		}
		return b, nil
	}
	if n, ok := o.Size().FixedSize(); ok {
		return d.r.ReadBytes(int(n))
	}
	return d.lengthPrefixed()
}

// alternative returns the alternative of the CHOICE o whose encoding starts
// with t.
func alternative(o *asn1rt.Object, t asn1rt.Tag) *asn1rt.Object {
	for _, alt := range o.Components() {
		if chain := alt.TagChain(); len(chain) > 0 {
			if chain[0] == t {
				return alt
			}
		} else if slices.Contains(alt.OuterTags(), t) {
			return alt
		}
	}
	return nil
}

// choice reads the tag of the chosen alternative and its value. Unknown
// extension alternatives are returned with their complete encoding.
func (d *decoder) choice(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	var t asn1rt.Tag
	if d.pending != nil {
		t, d.pending = *d.pending, nil
	} else {
		var err error
		if t, err = d.tag(); err != nil {
			return nil, err
		}
	}
	alt := alternative(o, t)
	if alt == nil {
		if !o.Extensible() {
			return nil, fmt.Errorf("%w: %s", errUnknownTag, t)
		}
		b, err := d.lengthPrefixed()
		if err != nil {
			return nil, err
		}
		raw := appendLength(appendTag(nil, t), len(b))
		raw = append(raw, b...)
		asn1rt.LogUnknownExtension(o, codecName, int(t.Number))
		return asn1rt.Choice{
			Name:  asn1rt.ExtensionName(int(t.Number)),
			Value: asn1rt.Unknown{Index: int(t.Number), Raw: raw},
		}, nil
	}
	var pending *asn1rt.Tag
	if len(alt.TagChain()) == 0 {
		pending = &t
	}
	if !alt.InExtension() {
		d.pending = pending
		v, err := d.decode(alt, f)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "alternative %s", alt.Name())
		}
		return asn1rt.Choice{Name: alt.Name(), Value: v}, nil
	}
	b, start, err := d.lengthPrefixedAt()
	if err != nil {
		return nil, err
	}
	v, err := d.containedTag(alt, b, start, f, pending)
	if err != nil {
		return nil, pkgerrors.WithMessagef(err, "alternative %s", alt.Name())
	}
	return asn1rt.Choice{Name: alt.Name(), Value: v}, nil
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
	ext, err := d.members(root, m, nf, o.Extensible())
	if err != nil {
		return nil, err
	}
	if !ext {
		return m, nil
	}

	d.r.Enter("extensions")
	present, err := d.bitmap()
	d.r.Leave()
	if err != nil {
		return nil, err
	}
	adds := o.ExtensionAdditions()
	for i, p := range present {
		if !p {
			continue
		}
		b, start, err := d.lengthPrefixedAt()
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
			_, err := sd.members(adds[i], m, nf, false)
			if err == nil && sd.r.Remaining() > 0 {
				err = sd.syntax(o, errTrailingData)
			}
			if err != nil {
				return nil, pkgerrors.WithMessagef(err, "extension group %d", i)
			}
			d.r.Embed(sd.r.Fields(), start)
		}
	}
	return m, nil
}

// bitmap reads the presence bitmap of the extension additions.
func (d *decoder) bitmap() ([]bool, error) {
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errLength
	}
	unused, err := d.r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	if unused > 7 || (n == 1 && unused != 0) {
		return nil, errBitStringSize
	}
	count := (n-1)*8 - int(unused)
	if count > maxItems {
		return nil, errOutOfRange
	}
	present := make([]bool, count)
	for i := range present {
		if present[i], err = d.r.ReadBit(); err != nil {
			return nil, err
		}
	}
	return present, d.align()
}

// members reads the preamble of cs followed by the present components and
// stores their values in m. If ext is set the preamble starts with the
// extension bit, which is returned.
func (d *decoder) members(cs []*asn1rt.Object, m map[string]any, f *asn1rt.Frame, ext bool) (bool, error) {
	present := make([]bool, len(cs))
	extPresent := false
	d.r.Enter("preamble")
	err := func() (err error) {
		if ext {
			if extPresent, err = d.r.ReadBit(); err != nil {
				return err
			}
		}
		for i, c := range cs {
			_, hasDefault := c.Default()
			if !c.Optional() && !hasDefault {
				present[i] = true
				continue
			}
			if present[i], err = d.r.ReadBit(); err != nil {
				return err
			}
		}
		return d.align()
	}()
	d.r.Leave()
	if err != nil {
		return false, err
	}
	for i, c := range cs {
		if !present[i] {
			continue
		}
		v, err := d.decode(c, f)
		if err != nil {
			return false, pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
		m[c.Name()] = v
	}
	return extPresent, nil
}

// list reads a SEQUENCE OF or SET OF value.
func (d *decoder) list(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	n, err := d.quantity()
	if err != nil {
		return nil, err
	}
	elem := o.Elem()
	l := make([]any, 0, min(n, 1024))
	for range n {
		v, err := d.decode(elem, f)
		if err != nil {
			return nil, pkgerrors.WithMessagef(err, "element %d", len(l))
		}
		l = append(l, v)
	}
	return l, nil
}

// open reads an open type field. The type of the contents is selected by the
// table constraint of o. Contents that cannot be resolved are kept as raw
// encoding.
func (d *decoder) open(o *asn1rt.Object, f *asn1rt.Frame) (any, error) {
	b, start, err := d.lengthPrefixedAt()
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
