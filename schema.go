// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// A Schema owns a graph of [Object] values. Objects are created through the
// schema and reference each other by pointer. Named top-level types are
// registered with the schema and can be looked up by name.
//
// A schema is built in two phases. During construction objects are created and
// wired together. [Schema.Finalize] then checks the graph, resolves type
// references by name and precomputes tag chains and lookup indexes. After
// finalization the structure of the schema is read-only.
type Schema struct {
	objects []*Object
	types   []*Object
	byName  map[string]*Object
	errs    []error
	final   bool
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{byName: make(map[string]*Object)}
}

// New creates an object of the given kind. The object is not registered as a
// named type. Use it for components, elements and anonymous types.
func (s *Schema) New(kind Kind, name string, opts ...Option) *Object {
	if s.final {
		panic("asn1rt: New on finalized schema")
	}
	o := &Object{schema: s, handle: Handle(len(s.objects)), name: name, kind: kind, group: -1}
	s.objects = append(s.objects, o)
	for _, opt := range opts {
		opt(o)
	}
	if !kind.IsValid() && o.typeName == "" {
		o.fail(fmt.Errorf("invalid kind %d", kind))
	}
	return o
}

// Type creates an object of the given kind and registers it as a named type.
func (s *Schema) Type(kind Kind, name string, opts ...Option) *Object {
	o := s.New(kind, name, opts...)
	s.register(o)
	return o
}

// Ref creates an object that refers to the type t. The new object has the kind
// of t and delegates its content to t unless options give it its own.
func (s *Schema) Ref(t *Object, name string, opts ...Option) *Object {
	kind := KindInvalid
	if t != nil {
		kind = t.kind
	}
	return s.New(kind, name, append([]Option{RefersTo(t)}, opts...)...)
}

func (s *Schema) register(o *Object) {
	if o.name == "" {
		o.fail(errors.New("type without name"))
		return
	}
	if _, dup := s.byName[o.name]; dup {
		o.fail(fmt.Errorf("duplicate type %q", o.name))
		return
	}
	s.byName[o.name] = o
	s.types = append(s.types, o)
}

// Lookup returns the named type or value with the given name, or nil.
func (s *Schema) Lookup(name string) *Object {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

// Types returns the named types of s in order of registration.
func (s *Schema) Types() []*Object {
	return s.types
}

// Object returns the object with handle h or nil.
func (s *Schema) Object(h Handle) *Object {
	if int(h) >= len(s.objects) {
		return nil
	}
	return s.objects[h]
}

// Len returns the number of objects in s.
func (s *Schema) Len() int {
	return len(s.objects)
}

// Finalized reports whether [Schema.Finalize] completed successfully.
func (s *Schema) Finalized() bool {
	return s.final
}

// Finalize checks the schema and prepares it for use by codecs. All problems
// found are reported together. After a successful call the structure of s
// must not be changed anymore.
func (s *Schema) Finalize() error {
	if s.final {
		return nil
	}
	for _, o := range s.objects {
		if o.typeName != "" && o.ref == nil {
			t := s.byName[o.typeName]
			if t == nil {
				o.fail(fmt.Errorf("unknown type %q", o.typeName))
				continue
			}
			o.ref = t
			if o.kind == KindInvalid {
				o.kind = t.kind
			}
		}
	}
	if err := s.Check(); err != nil {
		return err
	}
	for _, o := range s.objects {
		if len(o.enumRoot) > 0 {
			slices.SortStableFunc(o.enumRoot, compareItems)
			slices.SortStableFunc(o.enumExt, compareItems)
		}
	}
	for _, o := range s.objects {
		o.chain = o.computeChain(0)
	}
	for _, o := range s.objects {
		if o.kind == KindClass && o.mode == ModeSet {
			o.lookup = buildLookup(o)
		}
	}
	var result *multierror.Error
	for _, o := range s.objects {
		if o.mode == ModeValue && o.hasVal {
			if err := o.checkShape(o.val); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	s.final = true
	return nil
}

func compareItems(a, b EnumItem) int {
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	}
	return 0
}

// Check verifies the structural consistency of the schema. It returns all
// problems found as a single error.
func (s *Schema) Check() error {
	var result *multierror.Error
	result = multierror.Append(result, s.errs...)
	for _, o := range s.objects {
		if err := o.check(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (o *Object) check() error {
	var result *multierror.Error
	fail := func(format string, args ...any) {
		result = multierror.Append(result, &SchemaError{Object: o.QualifiedName(), Err: fmt.Errorf(format, args...)})
	}

	seen := map[*Object]bool{o: true}
	for r := o.ref; r != nil; r = r.ref {
		if seen[r] {
			fail("circular type reference")
			return result.ErrorOrNil()
		}
		seen[r] = true
	}
	if o.ref != nil && o.ref.kind != o.kind {
		fail("kind %s does not match referenced type %s", o.kind, o.ref.kind)
	}

	c := o.content()
	switch {
	case o.param:
	case o.kind.IsList():
		if c.elem == nil {
			fail("missing element type")
		}
	case o.kind == KindChoice:
		if len(c.components) == 0 {
			fail("CHOICE without alternatives")
		}
		if o.ownContent {
			checkDistinctTags(c.components, fail)
		}
	case o.kind == KindSet:
		if o.ownContent {
			checkDistinctTags(c.components, fail)
		}
	case o.kind == KindEnumerated:
		if len(c.enumRoot) == 0 {
			fail("ENUMERATED without items")
		}
		names := make(map[string]bool)
		values := make(map[int64]bool)
		for _, it := range slices.Concat(c.enumRoot, c.enumExt) {
			if names[it.Name] || values[it.Value] {
				fail("duplicate enumeration item %s(%d)", it.Name, it.Value)
			}
			names[it.Name], values[it.Value] = true, true
		}
	}

	if o.size != nil && !(o.kind.IsString() || o.kind.IsList() || o.kind == KindBitString || o.kind == KindOctetString) {
		fail("size constraint on %s", o.kind)
	}
	if o.alphabet != nil && !o.kind.IsString() {
		fail("permitted alphabet on %s", o.kind)
	}
	if o.contains != nil && o.kind != KindBitString && o.kind != KindOctetString {
		fail("content constraint on %s", o.kind)
	}
	if tc := o.table; tc != nil {
		switch {
		case tc.Set.kind != KindClass || tc.Set.mode != ModeSet:
			fail("table constraint refers to %s %s", tc.Set.kind, tc.Set.mode)
		case tc.Set.Component(tc.Field) == nil:
			fail("class %s has no field %q", tc.Set.name, tc.Field)
		}
	}
	if o.hasDefault && o.parent != nil && o.parent.kind != KindClass {
		if err := o.checkShape(o.def); err != nil {
			fail("invalid default: %v", err)
		}
	}
	if o.mode == ModeSet {
		vs, ok := o.val.(ValueSet)
		switch {
		case !ok:
			fail("value set without values")
		default:
			for _, v := range vs.All() {
				if _, isRange := v.(Range); isRange {
					continue
				}
				if err := o.checkShape(v); err != nil {
					result = multierror.Append(result, err)
				}
			}
		}
	}
	return result.ErrorOrNil()
}

// checkDistinctTags reports alternatives or SET components whose outermost
// tags collide. Untagged CHOICE components contribute the tags of all their
// alternatives.
func checkDistinctTags(cs []*Object, fail func(string, ...any)) {
	seen := make(map[Tag]string)
	for _, c := range cs {
		for _, t := range outerTags(c, nil) {
			if prev, dup := seen[t]; dup {
				fail("components %q and %q share tag %s", prev, c.name, t)
				continue
			}
			seen[t] = c.name
		}
	}
}

// outerTags returns the tags an encoding of o can start with. OPEN TYPE and ANY
// can start with any tag and contribute nothing.
func outerTags(o *Object, visiting map[*Object]bool) []Tag {
	if chain := o.TagChain(); len(chain) > 0 {
		return chain[:1]
	}
	if o.kind != KindChoice {
		return nil
	}
	c := o.content()
	if visiting[c] {
		return nil
	}
	if visiting == nil {
		visiting = make(map[*Object]bool)
	}
	visiting[c] = true
	var tags []Tag
	for _, alt := range c.components {
		tags = append(tags, outerTags(alt, visiting)...)
	}
	return tags
}

// OuterTags returns the tags an encoding of o can start with in tag-length-value
// encodings. For untagged CHOICE types these are the tags of all
// alternatives.
func (o *Object) OuterTags() []Tag {
	return outerTags(o, nil)
}
