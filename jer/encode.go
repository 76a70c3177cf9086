// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jer

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"codello.dev/asn1rt"
)

var compact = jsoniter.Config{
	EscapeHTML:  false,
	UseNumber:   true,
	SortMapKeys: true,
}.Froze()

// config returns the JSON configuration for opts.
func config(opts Options) jsoniter.API {
	if opts.Indent <= 0 {
		return compact
	}
	return jsoniter.Config{
		EscapeHTML:    false,
		UseNumber:     true,
		SortMapKeys:   true,
		IndentionStep: opts.Indent,
	}.Froze()
}

// encoder writes JER encodings into a JSON stream.
type encoder struct {
	s    *jsoniter.Stream
	opts Options
}

func (e *encoder) fail(o *asn1rt.Object, err error) error {
	return &EncodeError{Object: o.QualifiedName(), Err: err}
}

// encode writes v as a value of o. f holds the enclosing constructed values.
func (e *encoder) encode(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	switch kind := o.Kind(); kind {
	case asn1rt.KindClass:
		return &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	case asn1rt.KindNull:
		e.s.WriteNil()
		return nil
	case asn1rt.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return e.fail(o, fmt.Errorf("expected bool, got %T", v))
		}
		e.s.WriteBool(b)
		return nil
	case asn1rt.KindInteger:
		i, ok := asn1rt.BigInt(v)
		if !ok {
			return e.fail(o, fmt.Errorf("expected integer, got %T", v))
		}
		e.s.WriteRaw(i.String())
		return nil
	case asn1rt.KindEnumerated:
		return e.enumerated(o, v)
	case asn1rt.KindReal:
		r, ok := v.(asn1rt.Real)
		if !ok {
			return e.fail(o, fmt.Errorf("expected Real, got %T", v))
		}
		s, quoted, err := formatReal(r)
		if err != nil {
			return e.fail(o, err)
		}
		if quoted {
			e.s.WriteString(s)
		} else {
			e.s.WriteRaw(s)
		}
		return nil
	case asn1rt.KindBitString:
		return e.bitString(o, v, f)
	case asn1rt.KindOctetString:
		b, ok := v.([]byte)
		if !ok {
			t := o.Contains()
			if t == nil {
				return e.fail(o, fmt.Errorf("expected []byte, got %T", v))
			}
			return pkgerrors.WithMessage(e.encode(t, v, f), "contained value")
		}
		e.s.WriteString(strings.ToUpper(hex.EncodeToString(b)))
		return nil
	case asn1rt.KindOID:
		oid, ok := v.(asn1rt.ObjectIdentifier)
		if !ok {
			return e.fail(o, fmt.Errorf("expected ObjectIdentifier, got %T", v))
		}
		e.s.WriteString(oid.String())
		return nil
	case asn1rt.KindRelativeOID:
		oid, ok := v.(asn1rt.RelativeOID)
		if !ok {
			return e.fail(o, fmt.Errorf("expected RelativeOID, got %T", v))
		}
		e.s.WriteString(oid.String())
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
			s, err = asn1rt.FormatUTCTime(t, false)
		} else {
			s, err = asn1rt.FormatGeneralizedTime(t, false)
		}
		if err != nil {
			return e.fail(o, err)
		}
		e.s.WriteString(s)
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
		e.s.WriteString(s)
		return nil
	}
}

// raw writes the JSON text of an unknown value. Unknown values decoded by
// other codecs hold no JSON text and cannot be written.
func (e *encoder) raw(o *asn1rt.Object, u asn1rt.Unknown) error {
	if !jsoniter.Valid(u.Raw) {
		return &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: o.Kind(), Codec: codecName}
	}
	e.s.WriteRaw(string(u.Raw))
	return nil
}

func (e *encoder) enumerated(o *asn1rt.Object, v any) error {
	switch v := v.(type) {
	case string:
		if _, _, ok := o.EnumItem(v); !ok {
			return e.fail(o, fmt.Errorf("unknown enumeration item %q", v))
		}
		e.s.WriteString(v)
		return nil
	case asn1rt.Unknown:
		return e.raw(o, v)
	}
	return e.fail(o, fmt.Errorf("expected enumeration item, got %T", v))
}

// formatReal returns the JSON text of r. Special values are returned as
// strings and reported as quoted.
func formatReal(r asn1rt.Real) (s string, quoted bool, err error) {
	switch r {
	case asn1rt.PlusInfinity:
		return "INF", true, nil
	case asn1rt.MinusInfinity:
		return "-INF", true, nil
	case asn1rt.NotANumber:
		return "NaN", true, nil
	case asn1rt.MinusZero:
		return "-0", true, nil
	}
	if !r.IsValid() {
		return "", false, fmt.Errorf("invalid real %s", r)
	}
	if r.Mantissa == 0 {
		return "0", false, nil
	}
	if r.Base == 10 {
		return strconv.FormatInt(r.Mantissa, 10) + "E" + strconv.FormatInt(r.Exponent, 10), false, nil
	}
	f := r.Float64()
	if math.IsInf(f, 0) || asn1rt.RealFromFloat64(f) != r.Normalize() {
		return "", false, fmt.Errorf("%s is not a binary64 value", r)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), false, nil
}

// bitString writes a BIT STRING value. Values of a fixed size are written as
// a hexadecimal string, all others as an object holding the bits and their
// number.
func (e *encoder) bitString(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	bs, ok := v.(asn1rt.BitString)
	if !ok {
		t := o.Contains()
		if t == nil {
			return e.fail(o, fmt.Errorf("expected BitString, got %T", v))
		}
		return pkgerrors.WithMessage(e.encode(t, v, f), "contained value")
	}
	if !bs.IsValid() {
		return e.fail(o, fmt.Errorf("invalid bit string"))
	}
	data := strings.ToUpper(hex.EncodeToString(bs.Padded()))
	if n, ok := o.Size().FixedSize(); ok {
		if int64(bs.BitLength) != n {
			return e.fail(o, fmt.Errorf("bit string of length %d, want %d", bs.BitLength, n))
		}
		e.s.WriteString(data)
		return nil
	}
	e.s.WriteObjectStart()
	e.s.WriteObjectField("value")
	e.s.WriteString(data)
	e.s.WriteMore()
	e.s.WriteObjectField("length")
	e.s.WriteInt(bs.BitLength)
	e.s.WriteObjectEnd()
	return nil
}

// choice writes a CHOICE value as an object with a single member. Unknown
// alternatives decoded from JSON keep their member name after the extension
// prefix.
func (e *encoder) choice(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	c, ok := v.(asn1rt.Choice)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Choice, got %T", v))
	}
	e.s.WriteObjectStart()
	defer e.s.WriteObjectEnd()
	if alt := o.Component(c.Name); alt != nil {
		e.s.WriteObjectField(c.Name)
		return pkgerrors.WithMessagef(e.encode(alt, c.Value, f), "alternative %s", c.Name)
	}
	if u, ok := c.Value.(asn1rt.Unknown); ok && asn1rt.IsExtensionName(c.Name) && o.Extensible() {
		e.s.WriteObjectField(strings.TrimPrefix(c.Name, asn1rt.ExtensionPrefix))
		return e.raw(o, u)
	}
	return e.fail(o, fmt.Errorf("unknown alternative %q", c.Name))
}

// components writes a SEQUENCE or SET value as an object. Members follow the
// order of the components in the schema.
func (e *encoder) components(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	m, ok := v.(map[string]any)
	if !ok {
		return e.fail(o, fmt.Errorf("expected map[string]any, got %T", v))
	}
	nf := f.Push(o, m)
	e.s.WriteObjectStart()
	first := true
	for _, c := range o.Components() {
		cv, ok := m[c.Name()]
		if !ok {
			if !c.Absentable() {
				return e.fail(o, fmt.Errorf("%w %q", errMissing, c.Name()))
			}
			continue
		}
		if !first {
			e.s.WriteMore()
		}
		first = false
		e.s.WriteObjectField(c.Name())
		if err := e.encode(c, cv, nf); err != nil {
			return pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
	}
	for name := range m {
		if asn1rt.IsExtensionName(name) {
			asn1rt.Logger.WithFields(logrus.Fields{
				"object":    o.QualifiedName(),
				"codec":     codecName,
				"component": name,
			}).Warn("unknown extension omitted")
		}
	}
	e.s.WriteObjectEnd()
	return nil
}

func (e *encoder) list(o *asn1rt.Object, v any, f *asn1rt.Frame) error {
	l, ok := v.([]any)
	if !ok {
		return e.fail(o, fmt.Errorf("expected []any, got %T", v))
	}
	elem := o.Elem()
	e.s.WriteArrayStart()
	for i, ev := range l {
		if i > 0 {
			e.s.WriteMore()
		}
		if err := e.encode(elem, ev, f); err != nil {
			return pkgerrors.WithMessagef(err, "element %d", i)
		}
	}
	e.s.WriteArrayEnd()
	return nil
}

// open writes the value of an OPEN TYPE or ANY in the encoding of its type.
func (e *encoder) open(o *asn1rt.Object, v any) error {
	ov, ok := v.(asn1rt.Open)
	if !ok {
		return e.fail(o, fmt.Errorf("expected Open, got %T", v))
	}
	if u, ok := ov.Value.(asn1rt.Unknown); ok {
		return e.raw(o, u)
	}
	t := o.OpenType(ov.Type)
	if t == nil {
		return e.fail(o, fmt.Errorf("unknown open type %q", ov.Type))
	}
	return pkgerrors.WithMessagef(e.encode(t, ov.Value, nil), "open type %s", ov.Type)
}
