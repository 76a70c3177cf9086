// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type decodeOpts struct {
	output    string
	indent    int
	hex       bool
	structure bool
}

func newDecodeCmd(v *viper.Viper) *cobra.Command {
	var opts decodeOpts
	cmd := &cobra.Command{
		Use:   "decode TYPE [FILE]",
		Short: "Decode an encoding using the selected codec",
		Long: `decode reads an encoding of a TYPE value from FILE or standard input and
writes the value to standard output.`,
		Example: `asn1rt -s schema.yaml decode -c der -o yaml Person person.der`,
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
			if opts.hex {
				if data, err = decodeHex(data); err != nil {
					return err
				}
			}

			if opts.structure {
				if c.structure == nil {
					return errors.Errorf("codec %s has no structure dump", v.GetString("codec"))
				}
				s, err := c.structure(o, data)
				if err != nil {
					return errors.WithMessage(err, "decode")
				}
				_, err = io.WriteString(cmd.OutOrStdout(), s.String())
				return err
			}

			val, err := c.unmarshal(o, data)
			if err != nil {
				return errors.WithMessage(err, "decode")
			}
			out, err := writeValue(o, val, opts.output, opts.indent)
			if err != nil {
				return errors.WithMessage(err, "write value")
			}
			if len(out) == 0 || out[len(out)-1] != '\n' {
				out = append(out, '\n')
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	addDecodeFlags(cmd.Flags(), &opts)
	return cmd
}

func addDecodeFlags(fs *pflag.FlagSet, opts *decodeOpts) {
	fs.StringVarP(&opts.output, "output", "o", formatJSON, "format of the value (json, yaml or asn)")
	fs.IntVar(&opts.indent, "indent", 0, "indentation of JSON output")
	fs.BoolVarP(&opts.hex, "hex", "x", false, "read the encoding as hexadecimal text")
	fs.BoolVar(&opts.structure, "structure", false, "print the layout of the encoding instead of the value")
}
