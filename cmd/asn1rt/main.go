// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command asn1rt encodes, decodes and inspects ASN.1 values of the types
// described by a schema file.
//
//	asn1rt --schema person.yaml encode --codec coer --hex Person value.yaml
//	asn1rt --schema person.yaml decode --codec coer --hex --output yaml Person
//	asn1rt --schema person.yaml inspect Person
//
// Settings are read from flags, from ASN1RT_* environment variables and from
// an asn1rt.yaml file in the working directory.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Errorf("asn1rt: %v", err)
		os.Exit(1)
	}
}
