// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"codello.dev/asn1rt"
)

// decoder converts parsed JSON documents into values. path holds the steps
// from the top-level value to the value being decoded.
type decoder struct {
	opts  Options
	depth int
	path  []any
}

func (d *decoder) syntax(err error) error {
	return &SyntaxError{Path: slices.Clone(d.path), Err: err}
}

func (d *decoder) push(step any) { d.path = append(d.path, step) }
func (d *decoder) pop()          { d.path = d.path[:len(d.path)-1] }

// rawJSON returns the compact JSON text of a parsed document.
func rawJSON(doc any) []byte {
	b, err := compact.Marshal(doc)
	if err != nil {
		return nil
	}
	return b
}

// decode converts doc into a value of o. f holds the enclosing constructed
// values.
func (d *decoder) decode(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	if d.depth >= d.opts.maxDepth() {
		return nil, d.syntax(errMaxDepth)
	}
	d.depth++
	defer func() { d.depth-- }()

	v, err := d.value(o, doc, f)
	if err != nil {
		var se *SyntaxError
		var nse *asn1rt.NotSupportedError
		if pkgerrors.As(err, &se) || pkgerrors.As(err, &nse) {
			return nil, err
		}
		return nil, d.syntax(pkgerrors.WithMessage(err, o.QualifiedName()))
	}
	return v, nil
}

func (d *decoder) value(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	switch kind := o.Kind(); kind {
	case asn1rt.KindClass:
		return nil, &asn1rt.NotSupportedError{Object: o.QualifiedName(), Kind: kind, Codec: codecName}
	case asn1rt.KindNull:
		if doc != nil {
			return nil, fmt.Errorf("expected null, got %s", rawJSON(doc))
		}
		return asn1rt.Null{}, nil
	case asn1rt.KindBoolean:
		b, ok := doc.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %s", rawJSON(doc))
		}
		return b, nil
	case asn1rt.KindInteger:
		n, ok := doc.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected number, got %s", rawJSON(doc))
		}
		i, ok := new(big.Int).SetString(n.String(), 10)
		if !ok {
			return nil, fmt.Errorf("%w %s", errInvalidNumber, n)
		}
		return asn1rt.NormalizeInt(i), nil
	case asn1rt.KindEnumerated:
		return d.enumerated(o, doc)
	case asn1rt.KindReal:
		return parseReal(doc)
	case asn1rt.KindBitString:
		return d.bitString(o, doc, f)
	case asn1rt.KindOctetString:
		if t := o.Contains(); t != nil {
			if s, ok := doc.(string); !ok || !isHex(s) {
				return d.decode(t, doc, f)
			}
		}
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, errInvalidHex
		}
		return b, nil
	case asn1rt.KindOID:
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		return asn1rt.ParseObjectIdentifier(s)
	case asn1rt.KindRelativeOID:
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		return asn1rt.ParseRelativeOID(s)
	case asn1rt.KindUTCTime, asn1rt.KindGeneralizedTime:
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		if kind == asn1rt.KindUTCTime {
			return asn1rt.ParseUTCTime(s)
		}
		return asn1rt.ParseGeneralizedTime(s)
	case asn1rt.KindChoice:
		return d.choice(o, doc, f)
	case asn1rt.KindSequence, asn1rt.KindSet:
		return d.components(o, doc, f)
	case asn1rt.KindSequenceOf, asn1rt.KindSetOf:
		l, ok := doc.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %s", rawJSON(doc))
		}
		out := make([]any, len(l))
		for i, el := range l {
			d.push(i)
			ev, err := d.decode(o.Elem(), el, f)
			d.pop()
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case asn1rt.KindOpen, asn1rt.KindAny:
		return d.open(o, doc, f)
	default:
		if !kind.IsString() {
			return nil, &asn1rt.SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", kind)}
		}
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		return s, nil
	}
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// enumerated decodes an ENUMERATED identifier. Identifiers unknown to an
// extensible type are kept as their JSON text.
func (d *decoder) enumerated(o *asn1rt.Object, doc any) (any, error) {
	name, ok := doc.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
	}
	if _, _, ok = o.EnumItem(name); ok {
		return name, nil
	}
	if !o.Extensible() {
		return nil, fmt.Errorf("unknown enumeration item %q", name)
	}
	asn1rt.Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"codec":  codecName,
		"item":   name,
	}).Warn("unknown enumeration item")
	return asn1rt.Unknown{Index: -1, Raw: rawJSON(name)}, nil
}

// parseReal decodes a REAL value. Numbers whose shortest binary64
// representation matches their text decode in base 2. All other numbers decode
// in base 10 if the mantissa fits.
func parseReal(doc any) (asn1rt.Real, error) {
	switch doc := doc.(type) {
	case string:
		switch doc {
		case "INF":
			return asn1rt.PlusInfinity, nil
		case "-INF":
			return asn1rt.MinusInfinity, nil
		case "NaN":
			return asn1rt.NotANumber, nil
		case "-0":
			return asn1rt.MinusZero, nil
		}
		return asn1rt.Real{}, fmt.Errorf("invalid special real %q", doc)
	case json.Number:
		s := doc.String()
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !pkgerrors.Is(err, strconv.ErrRange) {
			return asn1rt.Real{}, fmt.Errorf("%w %s", errInvalidNumber, s)
		}
		if err == nil && strconv.FormatFloat(f, 'g', -1, 64) == s {
			return asn1rt.RealFromFloat64(f), nil
		}
		if r, ok := decimalReal(s); ok {
			return r, nil
		}
		if math.IsInf(f, 0) {
			return asn1rt.Real{}, fmt.Errorf("%w %s", errInvalidNumber, s)
		}
		return asn1rt.RealFromFloat64(f), nil
	}
	return asn1rt.Real{}, fmt.Errorf("expected number, got %s", rawJSON(doc))
}

// decimalReal converts the JSON number s into a base 10 Real.
func decimalReal(s string) (asn1rt.Real, bool) {
	mant, exp, _ := strings.Cut(strings.ToLower(s), "e")
	var e int64
	if exp != "" {
		var err error
		if e, err = strconv.ParseInt(exp, 10, 64); err != nil {
			return asn1rt.Real{}, false
		}
	}
	if i, frac, ok := strings.Cut(mant, "."); ok {
		mant = i + frac
		e -= int64(len(frac))
	}
	m, err := strconv.ParseInt(mant, 10, 64)
	if err != nil {
		return asn1rt.Real{}, false
	}
	return asn1rt.Real{Mantissa: m, Base: 10, Exponent: e}.Normalize(), true
}

// bitString decodes a BIT STRING value. Values of a contained type fall back
// to bits if the document is not a valid value of that type.
func (d *decoder) bitString(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	if t := o.Contains(); t != nil {
		if v, err := d.decode(t, doc, f); err == nil {
			return v, nil
		}
	}
	if n, ok := o.Size().FixedSize(); ok {
		s, ok := doc.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", rawJSON(doc))
		}
		b, err := hex.DecodeString(s)
		if err != nil || int64(len(b)) != (n+7)/8 {
			return nil, errInvalidHex
		}
		return asn1rt.BitString{Bytes: b, BitLength: int(n)}, nil
	}
	m, ok := doc.(map[string]any)
	if !ok || len(m) != 2 {
		return nil, fmt.Errorf("expected object with value and length, got %s", rawJSON(doc))
	}
	s, ok := m["value"].(string)
	if !ok {
		return nil, fmt.Errorf("expected string value, got %s", rawJSON(m["value"]))
	}
	num, ok := m["length"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("expected numeric length, got %s", rawJSON(m["length"]))
	}
	n, err := strconv.Atoi(num.String())
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w length %s", errInvalidNumber, num)
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != (n+7)/8 {
		return nil, errInvalidHex
	}
	bs := asn1rt.BitString{Bytes: b, BitLength: n}
	return asn1rt.BitString{Bytes: bs.Padded(), BitLength: n}, nil
}

// choice decodes an object with a single member naming the alternative.
// Unknown members of an extensible CHOICE are kept as their JSON text.
func (d *decoder) choice(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	m, ok := doc.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, errChoiceMembers
	}
	for name, av := range m {
		alt := o.Component(name)
		if alt == nil {
			if !o.Extensible() {
				return nil, fmt.Errorf("unknown alternative %q", name)
			}
			asn1rt.Logger.WithFields(logrus.Fields{
				"object":      o.QualifiedName(),
				"codec":       codecName,
				"alternative": name,
			}).Warn("unknown extension alternative")
			return asn1rt.Choice{
				Name:  asn1rt.ExtensionPrefix + name,
				Value: asn1rt.Unknown{Index: -1, Raw: rawJSON(av)},
			}, nil
		}
		d.push(name)
		v, err := d.decode(alt, av, f)
		d.pop()
		if err != nil {
			return nil, err
		}
		return asn1rt.Choice{Name: name, Value: v}, nil
	}
	return nil, errChoiceMembers
}

// components decodes a SEQUENCE or SET object. Components are decoded in the
// order of the schema so that table constraints can refer to earlier
// components.
func (d *decoder) components(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %s", rawJSON(doc))
	}
	m := make(map[string]any, len(obj))
	nf := f.Push(o, m)
	for _, c := range o.Components() {
		cv, ok := obj[c.Name()]
		if !ok {
			if !c.Absentable() {
				return nil, fmt.Errorf("%w %q", errMissing, c.Name())
			}
			continue
		}
		d.push(c.Name())
		v, err := d.decode(c, cv, nf)
		d.pop()
		if err != nil {
			return nil, err
		}
		m[c.Name()] = v
	}
	for name := range obj {
		if o.Component(name) != nil {
			continue
		}
		if !o.Extensible() {
			return nil, fmt.Errorf("%w %q", errUnknownMember, name)
		}
		asn1rt.Logger.WithFields(logrus.Fields{
			"object":    o.QualifiedName(),
			"codec":     codecName,
			"component": name,
		}).Warn("unknown extension ignored")
	}
	return m, nil
}

// open decodes the value of an OPEN TYPE or ANY by resolving its table
// constraint. Unresolved content keeps its JSON text.
func (d *decoder) open(o *asn1rt.Object, doc any, f *asn1rt.Frame) (any, error) {
	if o.Table() != nil {
		res, cands, err := o.ResolveTable(f)
		if err != nil {
			return nil, err
		}
		switch res {
		case asn1rt.OneMatch:
			if t, ok := cands[0].(*asn1rt.Object); ok {
				v, err := d.decode(t, doc, nil)
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
				if v, err := d.decode(t, doc, nil); err == nil {
					return asn1rt.Open{Type: t.Name(), Value: v}, nil
				}
			}
		}
	}
	asn1rt.Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"codec":  codecName,
	}).Warn("open type content not resolved")
	return asn1rt.Open{Value: asn1rt.Unknown{Index: -1, Raw: rawJSON(doc)}}, nil
}
