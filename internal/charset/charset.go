// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package charset converts character string values to and from the octets
// used by the octet-oriented encoding rules. BMPString is UTF-16BE,
// UniversalString UTF-32BE and all other string kinds are transferred as the
// bytes of the Go string.
package charset

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"codello.dev/asn1rt"
)

var (
	bmp       = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	universal = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)

	errOddLength   = errors.New("odd-length BMPString")
	errLength4     = errors.New("length of UniversalString is no multiple of 4")
	errInvalidUTF8 = errors.New("invalid UTF-8")
	errNotBMP      = errors.New("character outside the Basic Multilingual Plane")
)

func codingOf(k asn1rt.Kind) encoding.Encoding {
	switch k {
	case asn1rt.KindBMPString:
		return bmp
	case asn1rt.KindUniversalString:
		return universal
	}
	return nil
}

// Width returns the number of octets per character of k if it is fixed, or 0.
func Width(k asn1rt.Kind) int {
	switch k {
	case asn1rt.KindBMPString:
		return 2
	case asn1rt.KindUniversalString:
		return 4
	}
	return 0
}

// Encode returns the content octets of the string s of kind k.
func Encode(k asn1rt.Kind, s string) ([]byte, error) {
	enc := codingOf(k)
	if enc == nil {
		return []byte(s), nil
	}
	if k == asn1rt.KindBMPString {
		for _, r := range s {
			if r > 0xFFFF {
				return nil, errNotBMP
			}
		}
	}
	return enc.NewEncoder().Bytes([]byte(s))
}

// Decode converts content octets of kind k into a Go string.
func Decode(k asn1rt.Kind, b []byte) (string, error) {
	switch k {
	case asn1rt.KindBMPString:
		if len(b)%2 != 0 {
			return "", errOddLength
		}
	case asn1rt.KindUniversalString:
		if len(b)%4 != 0 {
			return "", errLength4
		}
	case asn1rt.KindUTF8String:
		if !utf8.Valid(b) {
			return "", errInvalidUTF8
		}
		return string(b), nil
	default:
		return string(b), nil
	}
	out, err := codingOf(k).NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
