// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// A value or type path is a sequence of steps. A step is a component
// identifier (string) for CHOICE, SEQUENCE, SET and CLASS, an index (any Go
// integer) for SEQUENCE OF and SET OF, and the name of the contained type
// for OPEN TYPE and ANY. Within a REAL value the steps "mantissa", "base" and
// "exponent" select a part of the triple.

var (
	errNoValue        = errors.New("no value assigned")
	errNotNavigable   = errors.New("placeholder is not navigable")
	errNoSuchStep     = errors.New("step does not resolve")
	errWrongStepType  = errors.New("wrong step type")
	errIndexRange     = errors.New("index out of range")
	errNotContainer   = errors.New("value has no components")
	errRealComponent  = errors.New("unknown REAL component")
	errInnerRealValue = errors.New("REAL component must be the last step")
)

func (o *Object) pathError(path []any, err error) error {
	return &PathError{Object: o.QualifiedName(), Path: slices.Clone(path), Err: err}
}

func stepName(step any) (string, bool) {
	s, ok := step.(string)
	return s, ok
}

func stepIndex(step any) (int, bool) {
	if _, isString := step.(string); isString {
		return 0, false
	}
	i, ok := Int64(step)
	if !ok || i < 0 || int64(int(i)) != i {
		return 0, false
	}
	return int(i), true
}

// Navigate follows path from o through the type graph and returns the object
// it leads to. Steps into unknown extensions or unresolved open type content
// fail.
func (o *Object) Navigate(path ...any) (*Object, error) {
	cur := o
	for i, step := range path {
		next, err := cur.step(step)
		if err != nil {
			return nil, o.pathError(path[:i+1], err)
		}
		cur = next
	}
	return cur, nil
}

func (o *Object) step(step any) (*Object, error) {
	switch {
	case o.kind.HasComponents():
		name, ok := stepName(step)
		if !ok {
			return nil, errWrongStepType
		}
		if IsExtensionName(name) || name == Unresolved {
			return nil, errNotNavigable
		}
		if c := o.Component(name); c != nil {
			return c, nil
		}
	case o.kind.IsList():
		if _, ok := stepIndex(step); !ok {
			return nil, errWrongStepType
		}
		return o.Elem(), nil
	case o.kind.IsOpen():
		name, ok := stepName(step)
		if !ok {
			return nil, errWrongStepType
		}
		if name == Unresolved || name == "" {
			return nil, errNotNavigable
		}
		if t := o.OpenType(name); t != nil {
			return t, nil
		}
	}
	return nil, errNoSuchStep
}

// ValueAt returns the part of the value of o selected by path.
func (o *Object) ValueAt(path ...any) (any, error) {
	if !o.hasVal {
		return nil, o.pathError(path, errNoValue)
	}
	obj, v := o, o.val
	for i, step := range path {
		var err error
		obj, v, err = obj.valueStep(v, step, i == len(path)-1)
		if err != nil {
			return nil, o.pathError(path[:i+1], err)
		}
	}
	return v, nil
}

func (o *Object) valueStep(v any, step any, last bool) (*Object, any, error) {
	switch o.kind {
	case KindChoice:
		name, ok := stepName(step)
		c, isChoice := v.(Choice)
		switch {
		case !ok:
			return nil, nil, errWrongStepType
		case !isChoice || c.Name != name:
			return nil, nil, errNoSuchStep
		case IsExtensionName(name):
			if !last {
				return nil, nil, errNotNavigable
			}
			return nil, c.Value, nil
		}
		return o.Component(name), c.Value, nil
	case KindSequence, KindSet, KindClass:
		name, ok := stepName(step)
		if !ok {
			return nil, nil, errWrongStepType
		}
		m, _ := v.(map[string]any)
		fv, present := m[name]
		if !present {
			return nil, nil, errNoSuchStep
		}
		if IsExtensionName(name) {
			if !last {
				return nil, nil, errNotNavigable
			}
			return nil, fv, nil
		}
		return o.Component(name), fv, nil
	case KindSequenceOf, KindSetOf:
		i, ok := stepIndex(step)
		if !ok {
			return nil, nil, errWrongStepType
		}
		l, _ := v.([]any)
		if i >= len(l) {
			return nil, nil, errIndexRange
		}
		return o.Elem(), l[i], nil
	case KindOpen, KindAny:
		name, ok := stepName(step)
		ov, isOpen := v.(Open)
		switch {
		case !ok:
			return nil, nil, errWrongStepType
		case !isOpen:
			return nil, nil, errNoSuchStep
		case name == Unresolved && ov.Type == "":
			if !last {
				return nil, nil, errNotNavigable
			}
			return nil, ov.Value, nil
		case ov.Type != name:
			return nil, nil, errNoSuchStep
		}
		t := o.OpenType(name)
		if t == nil {
			return nil, nil, errNoSuchStep
		}
		return t, ov.Value, nil
	case KindReal:
		if !last {
			return nil, nil, errInnerRealValue
		}
		r, _ := v.(Real)
		switch step {
		case "mantissa", 0:
			return nil, r.Mantissa, nil
		case "base", 1:
			return nil, int64(r.Base), nil
		case "exponent", 2:
			return nil, r.Exponent, nil
		}
		return nil, nil, errRealComponent
	}
	return nil, nil, errNotContainer
}

// SetValueAt replaces the part of the value of o selected by path with v. The
// value of o is not modified in place: every container on the path is copied
// and the resulting root value is assigned to o with full validation. Missing
// containers on the path are created.
func (o *Object) SetValueAt(v any, path ...any) error {
	root, err := o.setIn(o.val, v, path, 0)
	if err != nil {
		return err
	}
	return o.Assign(root)
}

func (o *Object) setIn(cur, v any, path []any, i int) (any, error) {
	if i == len(path) {
		return normalizeValue(v), nil
	}
	step := path[i]
	fail := func(err error) (any, error) {
		return nil, o.pathError(path[:i+1], err)
	}
	switch o.kind {
	case KindChoice:
		name, ok := stepName(step)
		if !ok {
			return fail(errWrongStepType)
		}
		alt := o.Component(name)
		if alt == nil {
			if IsExtensionName(name) && i == len(path)-1 {
				return Choice{Name: name, Value: v}, nil
			}
			return fail(errNoSuchStep)
		}
		var inner any
		if c, ok := cur.(Choice); ok && c.Name == name {
			inner = c.Value
		}
		nv, err := alt.setIn(inner, v, path, i+1)
		if err != nil {
			return nil, err
		}
		return Choice{Name: name, Value: nv}, nil
	case KindSequence, KindSet, KindClass:
		name, ok := stepName(step)
		if !ok {
			return fail(errWrongStepType)
		}
		m, _ := cur.(map[string]any)
		nm := maps.Clone(m)
		if nm == nil {
			nm = make(map[string]any)
		}
		comp := o.Component(name)
		if comp == nil {
			if IsExtensionName(name) && i == len(path)-1 {
				nm[name] = v
				return nm, nil
			}
			return fail(errNoSuchStep)
		}
		nv, err := comp.setIn(m[name], v, path, i+1)
		if err != nil {
			return nil, err
		}
		nm[name] = nv
		return nm, nil
	case KindSequenceOf, KindSetOf:
		idx, ok := stepIndex(step)
		if !ok {
			return fail(errWrongStepType)
		}
		l, _ := cur.([]any)
		if idx > len(l) {
			return fail(errIndexRange)
		}
		nl := slices.Clone(l)
		var inner any
		if idx == len(l) {
			nl = append(nl, nil)
		} else {
			inner = l[idx]
		}
		nv, err := o.Elem().setIn(inner, v, path, i+1)
		if err != nil {
			return nil, err
		}
		nl[idx] = nv
		return nl, nil
	case KindOpen, KindAny:
		name, ok := stepName(step)
		if !ok {
			return fail(errWrongStepType)
		}
		if name == Unresolved {
			return fail(errNotNavigable)
		}
		t := o.OpenType(name)
		if t == nil {
			return fail(errNoSuchStep)
		}
		var inner any
		if ov, ok := cur.(Open); ok && ov.Type == name {
			inner = ov.Value
		}
		nv, err := t.setIn(inner, v, path, i+1)
		if err != nil {
			return nil, err
		}
		return Open{Type: name, Value: nv}, nil
	case KindReal:
		if i != len(path)-1 {
			return fail(errInnerRealValue)
		}
		r, _ := cur.(Real)
		n, ok := Int64(v)
		if !ok {
			return fail(fmt.Errorf("REAL component must be an integer, got %T", v))
		}
		switch step {
		case "mantissa", 0:
			r.Mantissa = n
		case "base", 1:
			r.Base = int(n)
		case "exponent", 2:
			r.Exponent = n
		default:
			return fail(errRealComponent)
		}
		return r, nil
	}
	return fail(errNotContainer)
}

// A PathValue is a leaf of a value together with the path leading to it.
type PathValue struct {
	Path  []any
	Value any
}

// ValuePaths returns the path and value of every basic value nested in the
// value of o. Constructed values are visited in order of declaration. Unknown
// extensions and unresolved open type content are reported as leaves under
// their placeholder identifiers.
func (o *Object) ValuePaths() ([]PathValue, error) {
	if !o.hasVal {
		return nil, o.pathError(nil, errNoValue)
	}
	var out []PathValue
	o.collectPaths(o.val, nil, &out)
	return out, nil
}

func (o *Object) collectPaths(v any, path []any, out *[]PathValue) {
	leaf := func(p []any, v any) {
		*out = append(*out, PathValue{Path: slices.Clone(p), Value: v})
	}
	switch o.kind {
	case KindChoice:
		c, _ := v.(Choice)
		p := append(path, c.Name)
		if alt := o.Component(c.Name); alt != nil {
			alt.collectPaths(c.Value, p, out)
		} else {
			leaf(p, c.Value)
		}
	case KindSequence, KindSet, KindClass:
		m, _ := v.(map[string]any)
		for _, comp := range o.Components() {
			if fv, ok := m[comp.name]; ok {
				p := append(path, comp.name)
				if o.kind == KindClass && comp.kind.IsOpen() {
					leaf(p, fv)
					continue
				}
				comp.collectPaths(fv, p, out)
			}
		}
		var ext []string
		for name := range m {
			if IsExtensionName(name) {
				ext = append(ext, name)
			}
		}
		slices.Sort(ext)
		for _, name := range ext {
			leaf(append(path, name), m[name])
		}
	case KindSequenceOf, KindSetOf:
		l, _ := v.([]any)
		for i, e := range l {
			o.Elem().collectPaths(e, append(path, i), out)
		}
	case KindOpen, KindAny:
		ov, _ := v.(Open)
		t := o.OpenType(ov.Type)
		if _, unk := ov.Value.(Unknown); unk || t == nil {
			leaf(append(path, Unresolved), ov.Value)
			return
		}
		t.collectPaths(ov.Value, append(path, ov.Type), out)
	default:
		leaf(path, v)
	}
}
