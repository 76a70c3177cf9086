// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"
)

// Policy selects the checks applied when a value is assigned to an object.
type Policy struct {
	// Shape verifies that the value is a legal in-memory representation for
	// the type of the object.
	Shape bool
	// Bounds verifies value, size, alphabet and table constraints.
	Bounds bool
}

// Validated checks both shape and bounds. It is the default policy.
var Validated = Policy{Shape: true, Bounds: true}

// Unchecked performs no checks.
var Unchecked = Policy{}

// Assign validates v and stores it in the value slot of o.
func (o *Object) Assign(v any) error {
	return o.AssignWith(v, Validated)
}

// AssignWith stores v in the value slot of o after applying the checks
// selected by p. On error the slot is unchanged.
func (o *Object) AssignWith(v any, p Policy) error {
	v = normalizeValue(v)
	if err := o.Validate(v, nil, p); err != nil {
		return err
	}
	o.val, o.hasVal = v, true
	return nil
}

// Validate checks v against o according to p without assigning it. If f is
// nil, table constraints are resolved against the value slots of the
// enclosing objects.
func (o *Object) Validate(v any, f *Frame, p Policy) error {
	if o.mode == ModeSet {
		vs, ok := v.(ValueSet)
		if !ok {
			return &ShapeError{Object: o.QualifiedName(), Value: v, Err: errors.New("expected ValueSet")}
		}
		if p.Shape {
			for _, e := range vs.All() {
				if _, isRange := e.(Range); isRange {
					continue
				}
				if err := o.checkShape(e); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if p.Shape {
		if err := o.checkShape(v); err != nil {
			return err
		}
	}
	if p.Bounds {
		if f == nil {
			f = o.slotFrame()
		}
		if err := o.checkBounds(v, f); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the value in the slot of o. The second return value is false
// if no value has been assigned.
func (o *Object) Value() (any, bool) {
	return o.val, o.hasVal
}

// HasValue reports whether a value has been assigned to o.
func (o *Object) HasValue() bool { return o.hasVal }

// Clear empties the value slot of o. Objects in [ModeValue] and [ModeSet]
// hold the value or value set they were defined with, and Clear leaves them
// unchanged. The same applies to [Object.Reset].
func (o *Object) Clear() {
	if o.mode != ModeType {
		return
	}
	o.val, o.hasVal = nil, false
}

// Reset clears the value slot of o and of all objects reachable from o.
// Recursive types are visited once.
func (o *Object) Reset() {
	o.reset(make(map[Handle]bool))
}

func (o *Object) reset(visiting map[Handle]bool) {
	o.Clear()
	c := o.content()
	if visiting[c.handle] {
		return
	}
	visiting[c.handle] = true
	defer delete(visiting, c.handle)
	for _, comp := range c.components {
		comp.reset(visiting)
	}
	if c.elem != nil {
		c.elem.reset(visiting)
	}
}

//region Shape

func (o *Object) shapeError(v any, format string, args ...any) error {
	return &ShapeError{Object: o.QualifiedName(), Value: v, Err: fmt.Errorf(format, args...)}
}

// checkShape verifies that v is a legal representation for the type of o.
func (o *Object) checkShape(v any) error {
	switch o.kind {
	case KindNull:
		if _, ok := v.(Null); !ok {
			return o.shapeError(v, "expected Null")
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return o.shapeError(v, "expected bool")
		}
	case KindInteger:
		if _, ok := BigInt(v); !ok {
			return o.shapeError(v, "expected integer")
		}
	case KindReal:
		r, ok := v.(Real)
		if !ok || !r.IsValid() {
			return o.shapeError(v, "expected valid Real")
		}
	case KindEnumerated:
		switch v := v.(type) {
		case string:
			if _, _, ok := o.EnumItem(v); !ok {
				return o.shapeError(v, "unknown enumeration item %q", v)
			}
		case Unknown:
			if !o.Extensible() {
				return o.shapeError(v, "unknown item of non-extensible ENUMERATED")
			}
		default:
			return o.shapeError(v, "expected enumeration item name")
		}
	case KindBitString:
		switch b := v.(type) {
		case BitString:
			if !b.IsValid() {
				return o.shapeError(v, "invalid BitString")
			}
		default:
			if t := o.Contains(); t != nil {
				return t.checkShape(v)
			}
			return o.shapeError(v, "expected BitString")
		}
	case KindOctetString:
		if _, ok := v.([]byte); !ok {
			if t := o.Contains(); t != nil {
				return t.checkShape(v)
			}
			return o.shapeError(v, "expected []byte")
		}
	case KindOID:
		oid, ok := v.(ObjectIdentifier)
		if !ok || !oid.IsValid() {
			return o.shapeError(v, "expected valid ObjectIdentifier")
		}
	case KindRelativeOID:
		if _, ok := v.(RelativeOID); !ok {
			return o.shapeError(v, "expected RelativeOID")
		}
	case KindUTCTime, KindGeneralizedTime:
		if _, ok := v.(time.Time); !ok {
			return o.shapeError(v, "expected time.Time")
		}
	case KindChoice:
		c, ok := v.(Choice)
		if !ok {
			return o.shapeError(v, "expected Choice")
		}
		if alt := o.Component(c.Name); alt != nil {
			return alt.checkShape(c.Value)
		}
		if _, unk := c.Value.(Unknown); unk && IsExtensionName(c.Name) && o.Extensible() {
			return nil
		}
		return o.shapeError(v, "unknown alternative %q", c.Name)
	case KindSequence, KindSet, KindClass:
		m, ok := v.(map[string]any)
		if !ok {
			return o.shapeError(v, "expected map[string]any")
		}
		for name, fv := range m {
			comp := o.Component(name)
			if comp == nil {
				if _, unk := fv.(Unknown); unk && IsExtensionName(name) && o.Extensible() {
					continue
				}
				return o.shapeError(v, "unknown component %q", name)
			}
			if o.kind == KindClass && comp.kind.IsOpen() {
				if _, ok := fv.(*Object); !ok {
					return comp.shapeError(fv, "expected type reference")
				}
				continue
			}
			if err := comp.checkShape(fv); err != nil {
				return err
			}
		}
		for _, comp := range o.Components() {
			if _, ok := m[comp.name]; !ok && !comp.Absentable() {
				return o.shapeError(v, "missing component %q", comp.name)
			}
		}
	case KindSequenceOf, KindSetOf:
		l, ok := v.([]any)
		if !ok {
			return o.shapeError(v, "expected []any")
		}
		elem := o.Elem()
		for _, e := range l {
			if err := elem.checkShape(e); err != nil {
				return err
			}
		}
	case KindOpen, KindAny:
		ov, ok := v.(Open)
		if !ok {
			return o.shapeError(v, "expected Open")
		}
		if _, unk := ov.Value.(Unknown); unk {
			return nil
		}
		t := o.OpenType(ov.Type)
		if t == nil {
			return o.shapeError(v, "unknown open type %q", ov.Type)
		}
		return t.checkShape(ov.Value)
	default:
		if o.kind.IsString() {
			s, ok := v.(string)
			if !ok {
				return o.shapeError(v, "expected string")
			}
			if !ValidString(o.kind, s) {
				return o.shapeError(v, "invalid character for %s", o.kind)
			}
			return nil
		}
		return &SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("invalid kind %d", o.kind)}
	}
	return nil
}

//endregion

//region Bounds

func (o *Object) boundError(v any, format string, args ...any) error {
	return &BoundError{Object: o.QualifiedName(), Value: v, Err: fmt.Errorf(format, args...)}
}

// checkBounds verifies the constraints of o for a value of correct shape. f
// holds the enclosing values for table constraints.
func (o *Object) checkBounds(v any, f *Frame) error {
	switch o.kind {
	case KindInteger, KindReal, KindOID, KindRelativeOID, KindBoolean, KindUTCTime, KindGeneralizedTime:
		if c := o.Constraint(); !c.Contains(v) {
			return o.boundError(v, "not in constraint")
		}
	case KindBitString:
		b, ok := v.(BitString)
		if !ok {
			if t := o.Contains(); t != nil {
				return t.checkBounds(v, nil)
			}
			return nil
		}
		if s := o.Size(); !s.Contains(int64(b.BitLength)) {
			return o.boundError(v, "size %d not in constraint", b.BitLength)
		}
	case KindOctetString:
		b, ok := v.([]byte)
		if !ok {
			if t := o.Contains(); t != nil {
				return t.checkBounds(v, nil)
			}
			return nil
		}
		if s := o.Size(); !s.Contains(int64(len(b))) {
			return o.boundError(nil, "size %d not in constraint", len(b))
		}
	case KindChoice:
		c, _ := v.(Choice)
		if alt := o.Component(c.Name); alt != nil {
			return alt.checkBounds(c.Value, f)
		}
	case KindSequence, KindSet:
		m, _ := v.(map[string]any)
		nf := f.Push(o, m)
		for _, comp := range o.Components() {
			fv, ok := m[comp.name]
			if !ok {
				continue
			}
			if err := comp.checkBounds(fv, nf); err != nil {
				return err
			}
			if comp.Table() != nil && !comp.kind.IsOpen() {
				if err := comp.checkTable(fv, nf); err != nil {
					return err
				}
			}
		}
	case KindSequenceOf, KindSetOf:
		l, _ := v.([]any)
		if s := o.Size(); !s.Contains(int64(len(l))) {
			return o.boundError(nil, "size %d not in constraint", len(l))
		}
		elem := o.Elem()
		for _, e := range l {
			if err := elem.checkBounds(e, f); err != nil {
				return err
			}
		}
	case KindOpen, KindAny:
		ov, _ := v.(Open)
		if _, unk := ov.Value.(Unknown); unk {
			return nil
		}
		t := o.OpenType(ov.Type)
		if t == nil {
			return o.boundError(ov.Type, "unknown open type")
		}
		if o.Table() != nil {
			res, cands, err := o.ResolveTable(f)
			if err != nil {
				return err
			}
			if res != NoMatch && !slices.ContainsFunc(cands, func(c any) bool { return c == any(t) }) {
				return o.boundError(ov.Type, "type not permitted by %s", o.Table())
			}
		}
		return t.checkBounds(ov.Value, nil)
	case KindEnumerated, KindNull, KindClass:
	default:
		if o.kind.IsString() {
			s, _ := v.(string)
			if sz := o.Size(); !sz.Contains(int64(utf8.RuneCountInString(s))) {
				return o.boundError(v, "size not in constraint")
			}
			if !o.Alphabet().permits(s) {
				return o.boundError(v, "character not in permitted alphabet")
			}
			if c := o.Constraint(); !c.Contains(v) {
				return o.boundError(v, "not in constraint")
			}
		}
	}
	return nil
}

// checkTable verifies that the value v of a component constrained by a table
// is among the values the table permits.
func (o *Object) checkTable(v any, f *Frame) error {
	tc := o.Table()
	res, vals, err := o.ResolveTable(f)
	if err != nil {
		return err
	}
	if vs, _ := tc.Set.val.(ValueSet); vs.Extensible {
		return nil
	}
	if res == NoMatch && len(tc.Path) > 0 {
		return nil
	}
	if !slices.ContainsFunc(vals, func(c any) bool { return Equal(c, v) }) {
		return o.boundError(v, "not in %s", tc)
	}
	return nil
}

//endregion
