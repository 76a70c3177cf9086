// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schemafile

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/internal/tagspec"
)

// kinds maps the lower case ASN.1 names of the built-in types to their kinds.
var kinds = func() map[string]asn1rt.Kind {
	m := make(map[string]asn1rt.Kind)
	for k := asn1rt.KindNull; k.IsValid(); k++ {
		m[strings.ToLower(k.String())] = k
	}
	return m
}()

// ParseKind returns the kind with the given ASN.1 name. Case is ignored.
func ParseKind(name string) (asn1rt.Kind, bool) {
	k, ok := kinds[strings.ToLower(strings.Join(strings.Fields(name), " "))]
	return k, ok
}

// builder creates the objects of a schema. Links to other types and values
// are resolved once all named types exist.
type builder struct {
	s       *asn1rt.Schema
	pending []func() error
	result  *multierror.Error
}

func (b *builder) fail(path string, err error) {
	b.result = multierror.Append(b.result, errors.WithMessage(err, path))
}

// later schedules f to run after all named types have been created.
func (b *builder) later(path string, f func() error) {
	b.pending = append(b.pending, func() error {
		return errors.WithMessage(f(), path)
	})
}

// Build creates and finalizes the schema described by d. All problems of the
// description are reported together.
func Build(d *Description) (*asn1rt.Schema, error) {
	b := &builder{s: asn1rt.NewSchema()}
	for _, t := range d.Types {
		if t == nil {
			continue
		}
		if t.Kind == "" {
			b.fail(t.Name, errors.New("named type without kind"))
			continue
		}
		b.object(t, true, t.Name)
	}
	for _, f := range b.pending {
		if err := f(); err != nil {
			b.result = multierror.Append(b.result, err)
		}
	}
	if err := b.result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := b.s.Finalize(); err != nil {
		return nil, errors.Wrap(err, "finalize schema")
	}
	return b.s, nil
}

func bound(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// object creates the object described by t and its children.
func (b *builder) object(t *Type, named bool, path string) *asn1rt.Object {
	kind := asn1rt.KindInvalid
	var opts []asn1rt.Option
	if t.Kind != "" {
		k, ok := ParseKind(t.Kind)
		if !ok {
			b.fail(path, errors.Errorf("unknown kind %q", t.Kind))
		}
		kind = k
	}
	switch {
	case t.Type != "":
		opts = append(opts, asn1rt.TypeRef(t.Type))
	case t.Kind == "":
		b.fail(path, errors.New("neither kind nor type given"))
	}
	if t.Spec != "" {
		p, err := tagspec.Parse(t.Spec)
		if err != nil {
			b.fail(path, errors.Wrap(err, "spec"))
		} else {
			opts = append(opts, p.Options()...)
		}
	}
	if t.Extensible {
		opts = append(opts, asn1rt.Extensible())
	}
	if t.Extension {
		opts = append(opts, asn1rt.InExtension())
	}
	if len(t.Items) > 0 {
		items, err := parseItems(t.Items, true)
		if err != nil {
			b.fail(path, err)
		}
		opts = append(opts, asn1rt.EnumRoot(items...))
	}
	if len(t.ExtItems) > 0 {
		items, err := parseItems(t.ExtItems, false)
		if err != nil {
			b.fail(path, err)
		}
		opts = append(opts, asn1rt.EnumExt(items...))
	}
	if t.Range != nil {
		opts = append(opts, asn1rt.ValueRange(bound(t.Range.Min), bound(t.Range.Max)))
	}
	if t.Size != nil {
		lb, ub := int64(0), int64(-1)
		if t.Size.Min != nil {
			lb = *t.Size.Min
		}
		if t.Size.Max != nil {
			ub = *t.Size.Max
		}
		opts = append(opts, asn1rt.SizeRange(lb, ub))
	}

	var o *asn1rt.Object
	if named {
		o = b.s.Type(kind, t.Name, opts...)
	} else {
		o = b.s.New(kind, t.Name, opts...)
	}
	for _, c := range t.Components {
		if c == nil {
			continue
		}
		o.Add(b.object(c, false, path+"."+c.Name))
	}
	if t.Of != nil {
		o.Add(b.object(t.Of, false, path+".of"))
	}

	if t.Containing != "" {
		b.later(path, func() error {
			ct := b.s.Lookup(t.Containing)
			if ct == nil {
				return errors.Errorf("unknown contained type %q", t.Containing)
			}
			asn1rt.Containing(ct)(o)
			return nil
		})
	}
	if t.Table != nil {
		b.later(path, func() error {
			set := b.s.Lookup(t.Table.Set)
			if set == nil {
				return errors.Errorf("unknown object set %q", t.Table.Set)
			}
			asn1rt.Table(set, t.Table.Field, t.Table.Path...)(o)
			return nil
		})
	}
	if len(t.Values) > 0 {
		b.later(path, func() error {
			vs := make([]any, len(t.Values))
			for i, v := range t.Values {
				cv, err := b.convert(o, v)
				if err != nil {
					return err
				}
				vs[i] = cv
			}
			asn1rt.SingleValue(vs...)(o)
			return nil
		})
	}
	if t.Default != nil {
		b.later(path, func() error {
			v, err := b.convert(o, t.Default)
			if err != nil {
				return errors.WithMessage(err, "default")
			}
			asn1rt.Default(v)(o)
			return nil
		})
	}
	if t.Class != "" {
		b.later(path, func() error { return b.objectSet(o, t) })
	}
	return o
}

// objectSet turns o into the set of information objects listed by t.
func (b *builder) objectSet(o *asn1rt.Object, t *Type) error {
	class := b.s.Lookup(t.Class)
	if class == nil || class.Kind() != asn1rt.KindClass {
		return errors.Errorf("unknown class %q", t.Class)
	}
	asn1rt.RefersTo(class)(o)
	var vs asn1rt.ValueSet
	for i, entry := range t.Set {
		m := make(map[string]any, len(entry))
		for name, v := range entry {
			field := class.Component(name)
			if field == nil {
				return errors.Errorf("entry %d: unknown field %q", i, name)
			}
			cv, err := b.convert(field, v)
			if err != nil {
				return errors.WithMessagef(err, "entry %d field %s", i, name)
			}
			m[name] = cv
		}
		vs.Root = append(vs.Root, m)
	}
	asn1rt.AsSet(vs)(o)
	return nil
}

// parseItems parses enumeration items of the form "name" or "name(value)".
// Items without a value are numbered by position if auto is set.
func parseItems(specs []string, auto bool) ([]asn1rt.EnumItem, error) {
	items := make([]asn1rt.EnumItem, len(specs))
	for i, spec := range specs {
		name, rest, ok := strings.Cut(strings.TrimSpace(spec), "(")
		items[i].Name = strings.TrimSpace(name)
		if !ok {
			if !auto {
				return nil, errors.Errorf("extension item %q without value", spec)
			}
			items[i].Value = int64(i)
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(rest, ")")), 10, 64)
		if err != nil || !strings.HasSuffix(rest, ")") {
			return nil, errors.Errorf("invalid enumeration item %q", spec)
		}
		items[i].Value = n
	}
	return items, nil
}

// kindOf returns the kind of o, following a type reference that has not
// been resolved yet.
func (b *builder) kindOf(o *asn1rt.Object) asn1rt.Kind {
	for range 32 {
		if o.Kind() != asn1rt.KindInvalid || o.TypeName() == "" {
			break
		}
		t := b.s.Lookup(o.TypeName())
		if t == nil {
			break
		}
		o = t
	}
	return o.Kind()
}

// convert turns a value decoded from a description into a value of o.
func (b *builder) convert(o *asn1rt.Object, v any) (any, error) {
	switch kind := b.kindOf(o); kind {
	case asn1rt.KindNull:
		return asn1rt.Null{}, nil
	case asn1rt.KindBoolean:
		if x, ok := v.(bool); ok {
			return x, nil
		}
	case asn1rt.KindInteger:
		if i, ok := toInt(v); ok {
			return asn1rt.NormalizeInt(i), nil
		}
	case asn1rt.KindReal:
		if f, ok := toFloat(v); ok {
			return asn1rt.RealFromFloat64(f), nil
		}
	case asn1rt.KindOID:
		if s, ok := v.(string); ok {
			return asn1rt.ParseObjectIdentifier(s)
		}
	case asn1rt.KindOpen, asn1rt.KindAny:
		if s, ok := v.(string); ok {
			t := b.s.Lookup(s)
			if t == nil {
				return nil, errors.Errorf("unknown type %q", s)
			}
			return t, nil
		}
	default:
		if s, ok := v.(string); ok && (kind == asn1rt.KindEnumerated || kind.IsString()) {
			return s, nil
		}
		if s, ok := v.(string); ok && kind == asn1rt.KindRelativeOID {
			return asn1rt.ParseRelativeOID(s)
		}
	}
	return nil, errors.Errorf("cannot use %v (%T) as %s value", v, v, b.kindOf(o))
}

// toInt converts the numbers produced by the YAML, JSON and CBOR decoders.
func toInt(v any) (*big.Int, bool) {
	switch v := v.(type) {
	case json.Number:
		return new(big.Int).SetString(v.String(), 10)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, false
		}
		i, _ := big.NewFloat(v).Int(nil)
		return i, true
	}
	return asn1rt.BigInt(v)
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	}
	if i, ok := asn1rt.BigInt(v); ok {
		f, _ := new(big.Float).SetInt(i).Float64()
		return f, true
	}
	return 0, false
}
