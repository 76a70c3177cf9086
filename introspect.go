// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"strings"
)

// ShapeOptions control [Object.Shape].
type ShapeOptions struct {
	// OpenTypes expands the candidate types of OPEN TYPE and ANY objects as
	// given by their table constraints.
	OpenTypes bool
}

// A ShapeNode describes the structure of an object. Children are the
// components, the element type or the open type candidates of the object.
type ShapeNode struct {
	Name      string
	Kind      Kind
	Type      string
	Tags      []Tag
	Optional  bool
	Default   bool
	Extension bool
	// Recursive is set on nodes whose type is already being expanded further
	// up the tree. Such nodes have no children.
	Recursive bool
	Children  []*ShapeNode
}

// String renders n and its children as an indented tree.
func (n *ShapeNode) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *ShapeNode) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if n.Name != "" {
		b.WriteString(n.Name)
		b.WriteByte(' ')
	}
	for _, t := range n.Tags {
		b.WriteString(t.String())
		b.WriteByte(' ')
	}
	if n.Type != "" {
		b.WriteString(n.Type)
		b.WriteString(" (")
		b.WriteString(n.Kind.String())
		b.WriteByte(')')
	} else {
		b.WriteString(n.Kind.String())
	}
	switch {
	case n.Optional:
		b.WriteString(" OPTIONAL")
	case n.Default:
		b.WriteString(" DEFAULT")
	}
	if n.Extension {
		b.WriteString(" -- extension")
	}
	if n.Recursive {
		b.WriteString(" -- recursive")
	}
	b.WriteByte('\n')
	for _, c := range n.Children {
		c.write(b, depth+1)
	}
}

// Shape returns a recursive description of the type of o. Types that refer to
// themselves are expanded once, the re-entry is marked as recursive.
func (o *Object) Shape(opts ShapeOptions) *ShapeNode {
	return o.shape(opts, make(map[Handle]bool))
}

func (o *Object) shape(opts ShapeOptions, visiting map[Handle]bool) *ShapeNode {
	n := &ShapeNode{
		Name:      o.name,
		Kind:      o.kind,
		Type:      o.typeName,
		Tags:      o.TagChain(),
		Optional:  o.optional,
		Default:   o.hasDefault,
		Extension: o.inExt,
	}
	c := o.content()
	if visiting[c.handle] {
		n.Recursive = true
		return n
	}
	visiting[c.handle] = true
	defer delete(visiting, c.handle)
	for _, comp := range c.components {
		n.Children = append(n.Children, comp.shape(opts, visiting))
	}
	if c.elem != nil {
		n.Children = append(n.Children, c.elem.shape(opts, visiting))
	}
	if opts.OpenTypes && o.kind.IsOpen() {
		for _, t := range o.OpenTypes() {
			n.Children = append(n.Children, t.shape(opts, visiting))
		}
	}
	return n
}

// Complexity summarizes the size of a type.
type Complexity struct {
	// Leaves is the number of basic types reachable without re-entering a
	// recursive type.
	Leaves int
	// Depth is the maximum nesting depth. A basic type has depth 0.
	Depth int
	// Recursions lists the qualified names of the objects at which a
	// recursive type is re-entered.
	Recursions []string
}

// Complexity measures the type of o. Recursive types are counted once.
func (o *Object) Complexity() Complexity {
	var cx Complexity
	cx.Depth = o.complexity(&cx, make(map[Handle]bool))
	return cx
}

func (o *Object) complexity(cx *Complexity, visiting map[Handle]bool) int {
	c := o.content()
	if visiting[c.handle] {
		cx.Recursions = append(cx.Recursions, o.QualifiedName())
		return 0
	}
	children := c.components
	if c.elem != nil {
		children = []*Object{c.elem}
	}
	if len(children) == 0 {
		cx.Leaves++
		return 0
	}
	visiting[c.handle] = true
	defer delete(visiting, c.handle)
	depth := 0
	for _, comp := range children {
		depth = max(depth, comp.complexity(cx, visiting)+1)
	}
	return depth
}
