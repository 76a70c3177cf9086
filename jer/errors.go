// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNoValue       = errors.New("no value assigned")
	errMaxDepth      = errors.New("maximum nesting depth exceeded")
	errInvalidNumber = errors.New("invalid number")
	errInvalidHex    = errors.New("invalid hexadecimal string")
	errUnknownMember = errors.New("unknown member")
	errMissing       = errors.New("missing component")
	errChoiceMembers = errors.New("choice value must have exactly one member")
)

// A SyntaxError suggests that the JSON text is invalid for the object being
// decoded. Path locates the offending value relative to the top-level value.
// Its steps are component names and element indices.
type SyntaxError struct {
	Path []any
	Err  error
}

func (e *SyntaxError) Error() string {
	var s strings.Builder
	s.WriteString("jer: syntax error")
	if len(e.Path) > 0 {
		s.WriteString(" at /")
		for i, step := range e.Path {
			if i > 0 {
				s.WriteByte('/')
			}
			fmt.Fprint(&s, step)
		}
	}
	if e.Err != nil {
		s.WriteString(": ")
		s.WriteString(e.Err.Error())
	}
	return s.String()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// EncodeError indicates that a value could not be encoded for an object.
type EncodeError struct {
	Object string // qualified name of the object
	Err    error
}

func (e *EncodeError) Error() string {
	var s strings.Builder
	s.WriteString("jer: encode error")
	if e.Object != "" {
		s.WriteString(" for ")
		s.WriteString(e.Object)
	}
	s.WriteString(": ")
	s.WriteString(e.Err.Error())
	return s.String()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
