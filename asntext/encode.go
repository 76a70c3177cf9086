// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asntext

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"codello.dev/asn1rt"
)

type encoder struct {
	b strings.Builder
}

func (e *encoder) unsupported(o *asn1rt.Object) error {
	return &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: o.Kind(), Codec: codecName}
}

func (e *encoder) shape(o *asn1rt.Object, v any, want string) error {
	return &asn1rt.ShapeError{Object: o.QualifiedName(), Value: v, Err: fmt.Errorf("expected %s, got %T", want, v)}
}

func (e *encoder) encode(o *asn1rt.Object, v any) error {
	switch kind := o.Kind(); kind {
	case asn1rt.KindClass:
		return e.unsupported(o)
	case asn1rt.KindNull:
		e.b.WriteString("NULL")
	case asn1rt.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return e.shape(o, v, "bool")
		}
		if b {
			e.b.WriteString("TRUE")
		} else {
			e.b.WriteString("FALSE")
		}
	case asn1rt.KindInteger:
		i, ok := asn1rt.BigInt(v)
		if !ok {
			return e.shape(o, v, "integer")
		}
		e.b.WriteString(i.String())
	case asn1rt.KindEnumerated:
		s, ok := v.(string)
		if !ok {
			return e.unsupported(o)
		}
		e.b.WriteString(s)
	case asn1rt.KindReal:
		r, ok := v.(asn1rt.Real)
		if !ok {
			return e.shape(o, v, "Real")
		}
		e.b.WriteString(r.String())
	case asn1rt.KindBitString:
		bs, ok := v.(asn1rt.BitString)
		if !ok {
			return e.containing(o, v)
		}
		e.b.WriteByte('\'')
		for i := range bs.BitLength {
			e.b.WriteByte('0' + byte(bs.At(i)))
		}
		e.b.WriteString("'B")
	case asn1rt.KindOctetString:
		b, ok := v.([]byte)
		if !ok {
			return e.containing(o, v)
		}
		e.b.WriteByte('\'')
		e.b.WriteString(strings.ToUpper(hex.EncodeToString(b)))
		e.b.WriteString("'H")
	case asn1rt.KindOID, asn1rt.KindRelativeOID:
		var arcs []uint
		switch oid := v.(type) {
		case asn1rt.ObjectIdentifier:
			arcs = oid
		case asn1rt.RelativeOID:
			arcs = oid
		default:
			return e.shape(o, v, "object identifier")
		}
		e.b.WriteString("{ ")
		for _, a := range arcs {
			fmt.Fprintf(&e.b, "%d ", a)
		}
		e.b.WriteByte('}')
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		t, ok := v.(time.Time)
		if !ok {
			return e.shape(o, v, "time.Time")
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
			return err
		}
		e.quoted(s)
	case asn1rt.KindChoice:
		c, ok := v.(asn1rt.Choice)
		if !ok {
			return e.shape(o, v, "Choice")
		}
		alt := o.Component(c.Name)
		if alt == nil {
			return e.unsupported(o)
		}
		e.b.WriteString(c.Name)
		e.b.WriteString(" : ")
		return pkgerrors.WithMessagef(e.encode(alt, c.Value), "alternative %s", c.Name)
	case asn1rt.KindSequence, asn1rt.KindSet:
		return e.components(o, v)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		l, ok := v.([]any)
		if !ok {
			return e.shape(o, v, "[]any")
		}
		if len(l) == 0 {
			e.b.WriteString("{ }")
			return nil
		}
		e.b.WriteString("{ ")
		for i, ev := range l {
			if i > 0 {
				e.b.WriteString(", ")
			}
			if err := e.encode(o.Elem(), ev); err != nil {
				return pkgerrors.WithMessagef(err, "element %d", i)
			}
		}
		e.b.WriteString(" }")
	case asn1rt.KindOpen, asn1rt.KindAny:
		ov, ok := v.(asn1rt.Open)
		if !ok {
			return e.shape(o, v, "Open")
		}
		t := o.OpenType(ov.Type)
		if t == nil {
			return e.unsupported(o)
		}
		e.b.WriteString(ov.Type)
		e.b.WriteString(" : ")
		return pkgerrors.WithMessagef(e.encode(t, ov.Value), "open type %s", ov.Type)
	default:
		if !kind.IsString() {
			return &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
		}
		s, ok := v.(string)
		if !ok {
			return e.shape(o, v, "string")
		}
		e.quoted(s)
	}
	return nil
}

// quoted writes s as a cstring. Quotation marks are doubled.
func (e *encoder) quoted(s string) {
	e.b.WriteByte('"')
	e.b.WriteString(strings.ReplaceAll(s, `"`, `""`))
	e.b.WriteByte('"')
}

// containing writes the value of a contained type.
func (e *encoder) containing(o *asn1rt.Object, v any) error {
	t := o.Contains()
	if t == nil {
		return e.shape(o, v, "bits or octets")
	}
	e.b.WriteString("CONTAINING ")
	return pkgerrors.WithMessage(e.encode(t, v), "contained value")
}

// components writes a SEQUENCE or SET value in the order of the components of
// o.
func (e *encoder) components(o *asn1rt.Object, v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return e.shape(o, v, "map[string]any")
	}
	for name := range m {
		if o.Component(name) == nil {
			return e.unsupported(o)
		}
	}
	first := true
	e.b.WriteByte('{')
	for _, c := range o.Components() {
		cv, ok := m[c.Name()]
		if !ok {
			continue
		}
		if first {
			e.b.WriteByte(' ')
		} else {
			e.b.WriteString(", ")
		}
		first = false
		e.b.WriteString(c.Name())
		e.b.WriteByte(' ')
		if err := e.encode(c, cv); err != nil {
			return pkgerrors.WithMessagef(err, "component %s", c.Name())
		}
	}
	e.b.WriteString(" }")
	return nil
}
