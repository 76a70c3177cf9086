// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Mode indicates whether an [Object] describes a type, a single value or a set
// of values.
type Mode uint8

const (
	ModeType Mode = iota
	ModeValue
	ModeSet
)

// String returns the upper case name of m.
func (m Mode) String() string {
	switch m {
	case ModeType:
		return "TYPE"
	case ModeValue:
		return "VALUE"
	case ModeSet:
		return "SET"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Handle identifies an [Object] within its [Schema]. Handles are stable for
// the lifetime of the schema and are used to track visited objects in
// traversals.
type Handle uint32

// EnumItem is a single named item of an ENUMERATED type.
type EnumItem struct {
	Name  string
	Value int64
}

// An Object is a node of the schema graph. It describes one ASN.1 type, value
// or value set, owns its components and holds a value slot.
//
// The structure of an object is built once and is read-only after
// [Schema.Finalize]. Only the value slot changes at runtime. Objects can be
// read from multiple goroutines simultaneously but assigning values is not
// synchronized.
//
// An object created with a reference to another type and no content of its
// own delegates its content (components, items and constraints) to the
// referenced type. This is how recursive types are expressed.
type Object struct {
	schema *Schema
	handle Handle
	name   string
	kind   Kind
	mode   Mode

	tag     Tag
	tagMode TagMode
	tagged  bool

	typeName string
	ref      *Object
	param    bool

	parent *Object

	components []*Object
	index      map[string]int
	elem       *Object
	enumRoot   []EnumItem
	enumExt    []EnumItem
	extensible bool
	ownContent bool

	optional   bool
	hasDefault bool
	def        any
	unique     bool
	group      int
	inExt      bool

	cons     *Constraint
	size     *Constraint
	alphabet *Constraint
	contains *Object
	table    *TableConstraint

	val    any
	hasVal bool

	chain  []Tag
	lookup *lookupIndex
}

//region Attributes

// Schema returns the schema o belongs to.
func (o *Object) Schema() *Schema { return o.schema }

// Handle returns the stable handle of o.
func (o *Object) Handle() Handle { return o.handle }

// Name returns the identifier of o. For components this is the component
// identifier, for named types the type name.
func (o *Object) Name() string { return o.name }

// Kind returns the built-in kind o derives from.
func (o *Object) Kind() Kind { return o.kind }

// Mode returns whether o describes a type, a value or a value set.
func (o *Object) Mode() Mode { return o.mode }

// Tag returns the tag attached to o itself. The last return value is false if
// o is untagged.
func (o *Object) Tag() (Tag, TagMode, bool) {
	return o.tag, o.tagMode, o.tagged
}

// TypeName returns the name of the type o refers to, or the empty string.
func (o *Object) TypeName() string { return o.typeName }

// Ref returns the resolved type o refers to, or nil.
func (o *Object) Ref() *Object { return o.ref }

// Parameterized reports whether o is a parameterized type. Parameterized types
// carry no usable content.
func (o *Object) Parameterized() bool { return o.param }

// Parent returns the object o is a component or element of, or nil.
func (o *Object) Parent() *Object { return o.parent }

// QualifiedName returns the dot separated names of o and its parents.
func (o *Object) QualifiedName() string {
	var parts []string
	for p := o; p != nil; p = p.parent {
		name := p.name
		if name == "" {
			name = "_item_"
			if p.parent == nil {
				name = p.kind.String()
			}
		}
		parts = append(parts, name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}

// String returns the name and kind of o.
func (o *Object) String() string {
	if o.name == "" {
		return o.kind.String()
	}
	return o.name + " " + o.kind.String()
}

// content returns the object that holds the components, items and element of
// o. This is o itself unless o delegates to the type it refers to.
func (o *Object) content() *Object {
	c := o
	for i := 0; c.ref != nil && !c.ownContent && i <= len(o.schema.objects); i++ {
		c = c.ref
	}
	return c
}

// ContentOwner returns the object holding the content of o. For objects that
// delegate their content to a referenced type this is the referenced type.
func (o *Object) ContentOwner() *Object { return o.content() }

// Components returns the components of a CHOICE, SEQUENCE, SET or CLASS in
// order of declaration. The returned slice must not be modified.
func (o *Object) Components() []*Object { return o.content().components }

// Component returns the component with the given identifier or nil.
func (o *Object) Component(name string) *Object {
	c := o.content()
	if i, ok := c.index[name]; ok {
		return c.components[i]
	}
	return nil
}

// Elem returns the element type of a SEQUENCE OF or SET OF.
func (o *Object) Elem() *Object { return o.content().elem }

// EnumRoot returns the root items of an ENUMERATED type in ascending order of
// their values.
func (o *Object) EnumRoot() []EnumItem { return o.content().enumRoot }

// EnumExt returns the extension items of an ENUMERATED type in ascending order
// of their values.
func (o *Object) EnumExt() []EnumItem { return o.content().enumExt }

// EnumItem looks up the enumeration item with the given name. The second
// return value reports whether the item is an extension item.
func (o *Object) EnumItem(name string) (item EnumItem, ext bool, ok bool) {
	c := o.content()
	for _, it := range c.enumRoot {
		if it.Name == name {
			return it, false, true
		}
	}
	for _, it := range c.enumExt {
		if it.Name == name {
			return it, true, true
		}
	}
	return EnumItem{}, false, false
}

// EnumByValue looks up the enumeration item with the given numeric value.
func (o *Object) EnumByValue(v int64) (EnumItem, bool) {
	c := o.content()
	for _, it := range c.enumRoot {
		if it.Value == v {
			return it, true
		}
	}
	for _, it := range c.enumExt {
		if it.Value == v {
			return it, true
		}
	}
	return EnumItem{}, false
}

// Extensible reports whether o carries an extension marker.
func (o *Object) Extensible() bool { return o.content().extensible }

// RootComponents returns the components of o that are not extension
// additions.
func (o *Object) RootComponents() []*Object {
	var cs []*Object
	for _, c := range o.Components() {
		if !c.inExt {
			cs = append(cs, c)
		}
	}
	return cs
}

// ExtensionAdditions returns the extension additions of a SEQUENCE, SET or
// CHOICE. Each addition is either a single component or the components of an
// extension addition group.
func (o *Object) ExtensionAdditions() [][]*Object {
	var adds [][]*Object
	last := -1
	for _, c := range o.Components() {
		if !c.inExt {
			continue
		}
		if c.group >= 0 && c.group == last && len(adds) > 0 {
			adds[len(adds)-1] = append(adds[len(adds)-1], c)
			continue
		}
		adds = append(adds, []*Object{c})
		last = c.group
	}
	return adds
}

// Optional reports whether o is an OPTIONAL component.
func (o *Object) Optional() bool { return o.optional }

// Default returns the DEFAULT value of a component.
func (o *Object) Default() (any, bool) { return o.def, o.hasDefault }

// Absentable reports whether o may be absent from its parent value, that is
// whether it is optional, has a default value or is an extension addition.
func (o *Object) Absentable() bool { return o.optional || o.hasDefault || o.inExt }

// Unique reports whether o is a UNIQUE field of a CLASS.
func (o *Object) Unique() bool { return o.unique }

// Group returns the extension addition group index of o, or -1.
func (o *Object) Group() int { return o.group }

// InExtension reports whether o is an extension addition.
func (o *Object) InExtension() bool { return o.inExt }

// Constraint returns the value constraint of o or nil.
func (o *Object) Constraint() *Constraint {
	for c, i := o, 0; c != nil && i <= len(o.schema.objects); c, i = c.ref, i+1 {
		if c.cons != nil {
			return c.cons
		}
	}
	return nil
}

// Size returns the size constraint of o or nil.
func (o *Object) Size() *Constraint {
	for c, i := o, 0; c != nil && i <= len(o.schema.objects); c, i = c.ref, i+1 {
		if c.size != nil {
			return c.size
		}
	}
	return nil
}

// Alphabet returns the permitted alphabet constraint of o or nil.
func (o *Object) Alphabet() *Constraint {
	for c, i := o, 0; c != nil && i <= len(o.schema.objects); c, i = c.ref, i+1 {
		if c.alphabet != nil {
			return c.alphabet
		}
	}
	return nil
}

// Contains returns the type of the content constraint of a BIT STRING or
// OCTET STRING, or nil.
func (o *Object) Contains() *Object {
	for c, i := o, 0; c != nil && i <= len(o.schema.objects); c, i = c.ref, i+1 {
		if c.contains != nil {
			return c.contains
		}
	}
	return nil
}

// Table returns the table constraint linkage of o, or nil.
func (o *Object) Table() *TableConstraint {
	for c, i := o, 0; c != nil && i <= len(o.schema.objects); c, i = c.ref, i+1 {
		if c.table != nil {
			return c.table
		}
	}
	return nil
}

// TagChain returns the tags an encoding of o carries in tag-length-value
// encodings, outermost first. The chain is empty for untagged CHOICE, OPEN
// TYPE and ANY objects.
func (o *Object) TagChain() []Tag {
	if o.chain != nil || o.schema.final {
		return o.chain
	}
	return o.computeChain(0)
}

func (o *Object) computeChain(depth int) []Tag {
	var base []Tag
	if o.ref != nil && depth <= len(o.schema.objects) {
		base = o.ref.computeChain(depth + 1)
	} else if n, ok := o.kind.UniversalTag(); ok {
		base = []Tag{Universal(n)}
	}
	if !o.tagged {
		return slices.Clip(base)
	}
	if o.tagMode == Implicit && len(base) > 0 {
		return append([]Tag{o.tag}, base[1:]...)
	}
	return append([]Tag{o.tag}, base...)
}

// OpenTypes returns the candidate types of an OPEN TYPE or ANY object as given
// by its table constraint.
func (o *Object) OpenTypes() []*Object {
	tc := o.Table()
	if tc == nil || tc.Set == nil {
		return nil
	}
	var ts []*Object
	for _, e := range tc.Set.setEntries() {
		if t, ok := e[tc.Field].(*Object); ok && !slices.Contains(ts, t) {
			ts = append(ts, t)
		}
	}
	return ts
}

// OpenType returns the candidate type of an OPEN TYPE or ANY with the given
// name. Types named by the table constraint take precedence over the types of
// the schema.
func (o *Object) OpenType(name string) *Object {
	for _, t := range o.OpenTypes() {
		if t.name == name {
			return t
		}
	}
	return o.schema.Lookup(name)
}

//endregion

//region Options

// An Option configures an [Object] during construction.
type Option func(o *Object)

// Tagged attaches a tag to the object.
func Tagged(class Class, number uint, mode TagMode) Option {
	return func(o *Object) {
		if !class.IsValid() {
			o.fail(errors.New("invalid tag class"))
			return
		}
		o.tag, o.tagMode, o.tagged = Tag{Class: class, Number: number}, mode, true
	}
}

// Optional marks a component as OPTIONAL.
func Optional() Option {
	return func(o *Object) { o.optional = true }
}

// Default gives a component a DEFAULT value.
func Default(v any) Option {
	return func(o *Object) { o.def, o.hasDefault = normalizeValue(v), true }
}

// Unique marks a field of a CLASS as UNIQUE.
func Unique() Option {
	return func(o *Object) { o.unique = true }
}

// InExtension marks a component as an extension addition.
func InExtension() Option {
	return func(o *Object) { o.inExt = true }
}

// Group marks a component as member of the extension addition group with the
// given index. Consecutive components with the same index form one group.
func Group(i int) Option {
	return func(o *Object) { o.inExt, o.group = true, i }
}

// Extensible adds an extension marker to a CHOICE, SEQUENCE, SET or
// ENUMERATED type.
func Extensible() Option {
	return func(o *Object) { o.extensible = true }
}

// Components adds components to a CHOICE, SEQUENCE, SET or CLASS.
func Components(children ...*Object) Option {
	return func(o *Object) { o.Add(children...) }
}

// Of sets the element type of a SEQUENCE OF or SET OF.
func Of(elem *Object) Option {
	return func(o *Object) { o.Add(elem) }
}

// Items sets the root items of an ENUMERATED type, numbered from zero.
func Items(names ...string) Option {
	return func(o *Object) {
		for i, n := range names {
			o.enumRoot = append(o.enumRoot, EnumItem{Name: n, Value: int64(i)})
		}
		o.ownContent = true
	}
}

// EnumRoot sets the root items of an ENUMERATED type.
func EnumRoot(items ...EnumItem) Option {
	return func(o *Object) {
		o.enumRoot = append(o.enumRoot, items...)
		o.ownContent = true
	}
}

// EnumExt sets the extension items of an ENUMERATED type and marks it
// extensible.
func EnumExt(items ...EnumItem) Option {
	return func(o *Object) {
		o.enumExt = append(o.enumExt, items...)
		o.extensible = true
		o.ownContent = true
	}
}

// ValueRange constrains the object to values between lb and ub inclusive. A
// nil bound stands for MIN or MAX.
func ValueRange(lb, ub any) Option {
	return WithConstraint(Constraint{Root: []any{Range{Lower: normalizeValue(lb), Upper: normalizeValue(ub)}}})
}

// SingleValue constrains the object to the given values.
func SingleValue(vs ...any) Option {
	c := Constraint{}
	for _, v := range vs {
		c.Root = append(c.Root, normalizeValue(v))
	}
	return WithConstraint(c)
}

// WithConstraint sets the value constraint of the object.
func WithConstraint(c Constraint) Option {
	return func(o *Object) {
		c := c.normalize()
		o.cons = &c
	}
}

// SizeRange constrains the size of a string or list type. A negative ub
// stands for MAX.
func SizeRange(lb, ub int64) Option {
	r := Range{Lower: lb, Upper: ub}
	if ub < 0 {
		r.Upper = nil
	}
	return WithSize(Constraint{Root: []any{r}})
}

// WithSize sets the size constraint of the object.
func WithSize(c Constraint) Option {
	return func(o *Object) {
		c := c.normalize()
		o.size = &c
	}
}

// PermittedAlphabet sets the permitted alphabet of a character string type.
// Elements of the constraint are strings (each character is permitted) or
// ranges of single character strings.
func PermittedAlphabet(c Constraint) Option {
	return func(o *Object) { o.alphabet = &c }
}

// Containing sets the content constraint of a BIT STRING or OCTET STRING.
func Containing(t *Object) Option {
	return func(o *Object) { o.contains = t }
}

// Table links the object to a CLASS value set. Field is the class field that
// provides the type or values of the object. Path leads from the enclosing
// value to the component whose value selects the entries of the set. The
// step ".." moves to the enclosing value of the enclosing value.
func Table(set *Object, field string, path ...string) Option {
	return func(o *Object) {
		if set == nil || field == "" {
			o.fail(errors.New("incomplete table constraint"))
			return
		}
		o.table = &TableConstraint{Set: set, Field: field, Path: slices.Clone(path)}
	}
}

// RefersTo makes the object refer to the named type t. Tags and constraints
// of t apply unless the object overrides them.
func RefersTo(t *Object) Option {
	return func(o *Object) {
		if t == nil {
			o.fail(errors.New("reference to nil type"))
			return
		}
		o.ref, o.typeName = t, t.name
	}
}

// TypeRef makes the object refer to the type with the given name. The name is
// resolved by [Schema.Finalize].
func TypeRef(name string) Option {
	return func(o *Object) { o.typeName = name }
}

// Parameterized marks the object as a parameterized type.
func Parameterized() Option {
	return func(o *Object) { o.param = true }
}

// AsValue turns the object into a defined value.
func AsValue(v any) Option {
	return func(o *Object) { o.mode, o.val, o.hasVal = ModeValue, normalizeValue(v), true }
}

// AsSet turns the object into a value set. For CLASS objects this defines the
// information objects used by table constraints.
func AsSet(vs ValueSet) Option {
	return func(o *Object) {
		for i := range vs.Root {
			vs.Root[i] = normalizeValue(vs.Root[i])
		}
		for i := range vs.Ext {
			vs.Ext[i] = normalizeValue(vs.Ext[i])
		}
		o.mode, o.val, o.hasVal = ModeSet, vs, true
	}
}

//endregion

// Add appends components to a CHOICE, SEQUENCE, SET or CLASS or sets the
// element type of a SEQUENCE OF or SET OF. Add panics if the schema has been
// finalized. Other problems are reported by [Schema.Finalize].
func (o *Object) Add(children ...*Object) *Object {
	if o.schema.final {
		panic("asn1rt: Add on finalized schema")
	}
	o.ownContent = true
	for _, c := range children {
		if c == nil {
			o.fail(errors.New("nil component"))
			continue
		}
		if c.parent != nil {
			o.fail(fmt.Errorf("component %q already belongs to %s", c.name, c.parent.QualifiedName()))
			continue
		}
		if c.schema != o.schema {
			o.fail(fmt.Errorf("component %q belongs to a different schema", c.name))
			continue
		}
		switch {
		case o.kind.IsList():
			if o.elem != nil {
				o.fail(errors.New("element type already set"))
				continue
			}
			o.elem = c
		case o.kind.HasComponents():
			if _, dup := o.index[c.name]; dup || c.name == "" {
				o.fail(fmt.Errorf("duplicate or empty component identifier %q", c.name))
				continue
			}
			if o.index == nil {
				o.index = make(map[string]int)
			}
			o.index[c.name] = len(o.components)
			o.components = append(o.components, c)
		default:
			o.fail(fmt.Errorf("%s cannot have components", o.kind))
			continue
		}
		c.parent = o
	}
	return o
}

func (o *Object) fail(err error) {
	o.schema.errs = append(o.schema.errs, &SchemaError{Object: o.QualifiedName(), Err: err})
}
