// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type encodeOpts struct {
	input string
	hex   bool
}

func newEncodeCmd(v *viper.Viper) *cobra.Command {
	var opts encodeOpts
	cmd := &cobra.Command{
		Use:   "encode TYPE [FILE]",
		Short: "Encode a value document using the selected codec",
		Long: `encode reads a value of TYPE from FILE or standard input and writes its
encoding to standard output. Values are given in JSON (as defined by the JSON
encoding rules), in YAML with the same structure or in ASN.1 value notation.`,
		Example: `asn1rt -s schema.yaml encode -c coer --hex Person person.yaml`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := selectCodec(v)
			if err != nil {
				return err
			}
			o, err := lookupType(v, args[0])
			if err != nil {
				return err
			}
			path := ""
			if len(args) > 1 {
				path = args[1]
			}
			data, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			val, err := readValue(o, data, valueFormat(path, opts.input))
			if err != nil {
				return errors.WithMessage(err, "read value")
			}
			b, err := c.marshal(o, val)
			if err != nil {
				return errors.WithMessage(err, "encode")
			}
			if opts.hex {
				_, err = io.WriteString(cmd.OutOrStdout(), strings.ToUpper(hex.EncodeToString(b))+"\n")
			} else {
				_, err = cmd.OutOrStdout().Write(b)
			}
			return err
		},
	}
	addEncodeFlags(cmd.Flags(), &opts)
	return cmd
}

func addEncodeFlags(fs *pflag.FlagSet, opts *encodeOpts) {
	fs.StringVarP(&opts.input, "input", "i", formatJSON, "format of the value if not given by the file extension (json, yaml or asn)")
	fs.BoolVarP(&opts.hex, "hex", "x", false, "write the encoding as hexadecimal text")
}

// readInput returns the contents of the file at path or of standard input if
// path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return b, errors.Wrap(err, "read input")
	}
	b, err := os.ReadFile(path)
	return b, errors.Wrap(err, "read input")
}
