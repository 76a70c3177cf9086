// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the error kinds of this package. Every error type below
// matches its sentinel through [errors.Is].
var (
	ErrSchema       = errors.New("schema construction error")
	ErrShape        = errors.New("invalid value shape")
	ErrBound        = errors.New("value out of bounds")
	ErrPath         = errors.New("invalid path")
	ErrNotSupported = errors.New("not supported")
)

// A SchemaError indicates a malformed schema attribute. Against a correctly
// built schema these errors do not occur.
type SchemaError struct {
	Object string // qualified name of the offending object
	Err    error
}

func (e *SchemaError) Error() string {
	var s strings.Builder
	s.WriteString("schema error")
	if e.Object != "" {
		s.WriteString(" in ")
		s.WriteString(e.Object)
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *SchemaError) Unwrap() error        { return e.Err }
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// A ShapeError indicates that a value is not a legal in-memory representation
// for the type of an object.
type ShapeError struct {
	Object string
	Value  any
	Err    error
}

func (e *ShapeError) Error() string {
	var s strings.Builder
	s.WriteString("invalid value")
	if e.Value != nil {
		fmt.Fprintf(&s, " of type %T", e.Value)
	}
	if e.Object != "" {
		s.WriteString(" for ")
		s.WriteString(e.Object)
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *ShapeError) Unwrap() error        { return e.Err }
func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// A BoundError indicates that a value violates a constraint of an object,
// including table constraints.
type BoundError struct {
	Object string
	Value  any
	Err    error
}

func (e *BoundError) Error() string {
	var s strings.Builder
	s.WriteString("value")
	if e.Value != nil {
		fmt.Fprintf(&s, " %v", e.Value)
	}
	s.WriteString(" out of bounds")
	if e.Object != "" {
		s.WriteString(" for ")
		s.WriteString(e.Object)
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *BoundError) Unwrap() error        { return e.Err }
func (e *BoundError) Is(target error) bool { return target == ErrBound }

// A PathError indicates that a path given to a navigation or value path
// operation does not resolve.
type PathError struct {
	Object string
	Path   []any
	Err    error
}

func (e *PathError) Error() string {
	var s strings.Builder
	s.WriteString("invalid path ")
	s.WriteString(FormatPath(e.Path))
	if e.Object != "" {
		s.WriteString(" in ")
		s.WriteString(e.Object)
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *PathError) Unwrap() error        { return e.Err }
func (e *PathError) Is(target error) bool { return target == ErrPath }

// A NotSupportedError indicates that an operation has no defined behavior for
// the kind of an object in the given codec.
type NotSupportedError struct {
	Object string
	Kind   Kind
	Codec  string
}

func (e *NotSupportedError) Error() string {
	var s strings.Builder
	s.WriteString(e.Codec)
	s.WriteString(": ")
	s.WriteString(e.Kind.String())
	s.WriteString(" not supported")
	if e.Object != "" {
		s.WriteString(" for ")
		s.WriteString(e.Object)
	}
	return s.String()
}

func (e *NotSupportedError) Is(target error) bool { return target == ErrNotSupported }

// FormatPath returns a readable representation of a value path.
func FormatPath(path []any) string {
	var s strings.Builder
	s.WriteByte('[')
	for i, p := range path {
		if i > 0 {
			s.WriteString(", ")
		}
		switch p := p.(type) {
		case string:
			s.WriteString(p)
		default:
			fmt.Fprint(&s, p)
		}
	}
	s.WriteByte(']')
	return s.String()
}
