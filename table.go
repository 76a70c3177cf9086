// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"fmt"
	"strings"
)

// TableConstraint links an object to a field of a CLASS value set. See
// [Table].
type TableConstraint struct {
	Set   *Object
	Field string
	Path  []string
}

// String returns a notation similar to ASN.1 component relation constraints.
func (tc *TableConstraint) String() string {
	var s strings.Builder
	s.WriteString(tc.Set.name)
	s.WriteString(".&")
	s.WriteString(tc.Field)
	if len(tc.Path) > 0 {
		s.WriteString(" ({@")
		s.WriteString(strings.Join(tc.Path, "."))
		s.WriteString("})")
	}
	return s.String()
}

// Resolution is the outcome of resolving a table constraint.
type Resolution uint8

const (
	// NoMatch indicates that no entry of the value set matched.
	NoMatch Resolution = iota
	// OneMatch indicates exactly one matching entry.
	OneMatch
	// ManyMatches indicates several matching entries.
	ManyMatches
)

func (r Resolution) String() string {
	switch r {
	case NoMatch:
		return "no match"
	case OneMatch:
		return "one match"
	case ManyMatches:
		return "many matches"
	}
	return fmt.Sprintf("Resolution(%d)", uint8(r))
}

// A Frame is the value of a constructed object during a traversal. Frames are
// chained from the innermost enclosing value outwards and are used to find
// the values that table constraints depend on.
type Frame struct {
	Object *Object
	Value  map[string]any
	Parent *Frame
}

// Push returns a frame for the constructed value v of o enclosed by f.
func (f *Frame) Push(o *Object, v map[string]any) *Frame {
	return &Frame{Object: o, Value: v, Parent: f}
}

// slotFrame builds a frame chain from the value slots of the enclosing objects
// of o.
func (o *Object) slotFrame() *Frame {
	var chain []*Object
	for p := o.parent; p != nil; p = p.parent {
		chain = append(chain, p)
	}
	var f *Frame
	for i := len(chain) - 1; i >= 0; i-- {
		m, _ := chain[i].val.(map[string]any)
		f = f.Push(chain[i], m)
	}
	return f
}

// locate follows path from the frame f to the determining component.
func locate(f *Frame, path []string) (*Object, any, bool) {
	cur := f
	for i, step := range path {
		if cur == nil {
			return nil, nil, false
		}
		if step == ".." {
			cur = cur.Parent
			continue
		}
		if cur.Object == nil {
			return nil, nil, false
		}
		obj := cur.Object.Component(step)
		v, ok := cur.Value[step]
		if obj == nil || !ok {
			return nil, nil, false
		}
		if i == len(path)-1 {
			return obj, v, true
		}
		m, _ := v.(map[string]any)
		if m == nil {
			if c, ok := v.(Choice); ok {
				m = map[string]any{c.Name: c.Value}
			}
		}
		cur = &Frame{Object: obj, Value: m, Parent: cur}
	}
	return nil, nil, false
}

// ResolveTable resolves the table constraint of o against the enclosing values
// in f. If f is nil the value slots of the enclosing objects are used. The
// returned values are the values of the constrained field in the matching
// entries, in the order of the value set.
//
// A determining component that cannot be found is not an error: the result is
// [NoMatch] and a warning is logged. Several matches for a key of a UNIQUE
// field are reported as a [SchemaError].
func (o *Object) ResolveTable(f *Frame) (Resolution, []any, error) {
	tc := o.Table()
	if tc == nil {
		return NoMatch, nil, nil
	}
	if f == nil {
		f = o.slotFrame()
	}
	entries := tc.Set.setEntries()
	if len(tc.Path) == 0 {
		var vals []any
		for _, e := range entries {
			if v, ok := e[tc.Field]; ok {
				vals = append(vals, v)
			}
		}
		return resolution(len(vals)), vals, nil
	}

	det, key, ok := locate(f, tc.Path)
	if !ok {
		logUnresolved(o, "determining component "+strings.Join(tc.Path, ".")+" not present")
		return NoMatch, nil, nil
	}
	keyField := ""
	if dt := det.Table(); dt != nil && dt.Set == tc.Set {
		keyField = dt.Field
	} else {
		keyField = tc.Set.uniqueField()
	}
	if keyField == "" {
		return NoMatch, nil, &SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf("no key field for %s", tc)}
	}

	idx := tc.Set.match(keyField, key)
	var vals []any
	for _, i := range idx {
		if v, ok := entries[i][tc.Field]; ok {
			vals = append(vals, v)
		}
	}
	res := resolution(len(vals))
	if len(idx) > 1 {
		if kf := tc.Set.Component(keyField); kf != nil && kf.unique {
			return ManyMatches, vals, &SchemaError{
				Object: tc.Set.QualifiedName(),
				Err:    fmt.Errorf("key %v of UNIQUE field %s matches %d entries", key, keyField, len(idx)),
			}
		}
	}
	return res, vals, nil
}

func resolution(n int) Resolution {
	switch n {
	case 0:
		return NoMatch
	case 1:
		return OneMatch
	}
	return ManyMatches
}

// setEntries returns the information objects of a CLASS value set.
func (o *Object) setEntries() []map[string]any {
	vs, ok := o.val.(ValueSet)
	if !ok {
		return nil
	}
	all := vs.All()
	entries := make([]map[string]any, 0, len(all))
	for _, v := range all {
		if m, ok := v.(map[string]any); ok {
			entries = append(entries, m)
		} else {
			entries = append(entries, nil)
		}
	}
	return entries
}

// uniqueField returns the first UNIQUE field of a CLASS.
func (o *Object) uniqueField() string {
	for _, c := range o.Components() {
		if c.unique {
			return c.name
		}
	}
	return ""
}

type lookupIndex struct {
	field string
	keys  map[string][]int
}

func buildLookup(set *Object) *lookupIndex {
	field := set.uniqueField()
	if field == "" {
		return nil
	}
	idx := &lookupIndex{field: field, keys: make(map[string][]int)}
	for i, e := range set.setEntries() {
		if v, ok := e[field]; ok {
			k := keyOf(v)
			idx.keys[k] = append(idx.keys[k], i)
		}
	}
	return idx
}

// match returns the indexes of the entries whose field has the given value.
func (o *Object) match(field string, key any) []int {
	if o.lookup != nil && o.lookup.field == field {
		return o.lookup.keys[keyOf(key)]
	}
	var idx []int
	for i, e := range o.setEntries() {
		if v, ok := e[field]; ok && Equal(v, key) {
			idx = append(idx, i)
		}
	}
	return idx
}
