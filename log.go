// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asn1rt

import (
	"github.com/sirupsen/logrus"
)

// Logger receives warnings about unknown extensions and unresolved table
// constraints. It defaults to the standard logrus logger. Replace it before
// using the package concurrently.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// LogUnknownExtension reports that a codec met an extension of o that the
// schema does not know. Unknown extensions are values, not errors.
func LogUnknownExtension(o *Object, codec string, index int) {
	Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"kind":   o.Kind().String(),
		"codec":  codec,
		"index":  index,
	}).Warn("unknown extension")
}

func logUnresolved(o *Object, reason string) {
	Logger.WithFields(logrus.Fields{
		"object": o.QualifiedName(),
		"reason": reason,
	}).Warn("table constraint not resolved")
}
