// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tagspec parses the compact component descriptions used in schema
// files. A description is either a comma separated list of flags such as
//
//	application,tag:5,explicit,optional
//
// or a tag in ASN.1 notation followed by keywords:
//
//	[APPLICATION 5] EXPLICIT OPTIONAL
package tagspec

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"codello.dev/asn1rt"
)

// Params is the parsed representation of a component description.
type Params struct {
	Tag       asn1rt.Tag // the EXPLICIT or IMPLICIT class and tag number
	Tagged    bool       // true iff a tag number was given
	Explicit  bool       // true iff an EXPLICIT tag is in use
	Optional  bool       // true iff the component is OPTIONAL
	Unique    bool       // true iff the CLASS field is UNIQUE
	Extension bool       // true iff the component is an extension addition
	Group     int        // extension addition group index or -1
}

// Parse parses a component description. Unknown flags are reported as errors.
func Parse(str string) (Params, error) {
	str = strings.TrimSpace(str)
	if strings.HasPrefix(str, "[") {
		return parseNotation(str)
	}
	return parseFlags(str)
}

func parseFlags(str string) (ret Params, err error) {
	ret.Group = -1
	hasClass := false
	if str == "" {
		return ret, nil
	}
	for part := range strings.SplitSeq(str, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "optional":
			ret.Optional = true
		case part == "explicit":
			ret.Explicit = true
		case part == "implicit":
			ret.Explicit = false
		case part == "unique":
			ret.Unique = true
		case part == "ext":
			ret.Extension = true
		case strings.HasPrefix(part, "group:"):
			g, err := strconv.Atoi(part[6:])
			if err != nil || g < 0 {
				return ret, fmt.Errorf("invalid group %q", part[6:])
			}
			ret.Group, ret.Extension = g, true
		case strings.HasPrefix(part, "tag:"):
			i, err := strconv.ParseUint(part[4:], 10, bits.UintSize)
			if err != nil {
				return ret, fmt.Errorf("invalid tag number %q", part[4:])
			}
			if !hasClass {
				ret.Tag.Class = asn1rt.ClassContextSpecific
			}
			ret.Tag.Number, ret.Tagged = uint(i), true
		case part == "application":
			ret.Tag.Class, hasClass = asn1rt.ClassApplication, true
		case part == "private":
			ret.Tag.Class, hasClass = asn1rt.ClassPrivate, true
		case part == "universal":
			ret.Tag.Class, hasClass = asn1rt.ClassUniversal, true
		case part == "context":
			ret.Tag.Class, hasClass = asn1rt.ClassContextSpecific, true
		default:
			return ret, fmt.Errorf("unknown flag %q", part)
		}
	}
	if hasClass && !ret.Tagged {
		return ret, errors.New("tag class without tag number")
	}
	return ret, nil
}

func parseNotation(str string) (ret Params, err error) {
	ret.Group = -1
	end := strings.IndexByte(str, ']')
	if end < 0 {
		return ret, errors.New("missing ]")
	}
	fields := strings.Fields(str[1:end])
	ret.Tag.Class = asn1rt.ClassContextSpecific
	switch len(fields) {
	case 1:
	case 2:
		switch fields[0] {
		case "UNIVERSAL":
			ret.Tag.Class = asn1rt.ClassUniversal
		case "APPLICATION":
			ret.Tag.Class = asn1rt.ClassApplication
		case "PRIVATE":
			ret.Tag.Class = asn1rt.ClassPrivate
		default:
			return ret, fmt.Errorf("unknown tag class %q", fields[0])
		}
		fields = fields[1:]
	default:
		return ret, fmt.Errorf("invalid tag %q", str[:end+1])
	}
	n, err := strconv.ParseUint(fields[0], 10, bits.UintSize)
	if err != nil {
		return ret, fmt.Errorf("invalid tag number %q", fields[0])
	}
	ret.Tag.Number, ret.Tagged = uint(n), true
	for _, kw := range strings.Fields(str[end+1:]) {
		switch kw {
		case "EXPLICIT":
			ret.Explicit = true
		case "IMPLICIT":
			ret.Explicit = false
		case "OPTIONAL":
			ret.Optional = true
		case "UNIQUE":
			ret.Unique = true
		default:
			return ret, fmt.Errorf("unknown keyword %q", kw)
		}
	}
	return ret, nil
}

// Options converts p into options for [asn1rt.Schema.New].
func (p Params) Options() []asn1rt.Option {
	var opts []asn1rt.Option
	if p.Tagged {
		mode := asn1rt.Implicit
		if p.Explicit {
			mode = asn1rt.Explicit
		}
		opts = append(opts, asn1rt.Tagged(p.Tag.Class, p.Tag.Number, mode))
	}
	if p.Optional {
		opts = append(opts, asn1rt.Optional())
	}
	if p.Unique {
		opts = append(opts, asn1rt.Unique())
	}
	switch {
	case p.Group >= 0:
		opts = append(opts, asn1rt.Group(p.Group))
	case p.Extension:
		opts = append(opts, asn1rt.InExtension())
	}
	return opts
}
