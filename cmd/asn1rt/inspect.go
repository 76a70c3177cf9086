// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codello.dev/asn1rt"
)

func newInspectCmd(v *viper.Viper) *cobra.Command {
	var openTypes bool
	cmd := &cobra.Command{
		Use:   "inspect [TYPE]",
		Short: "Show the types of a schema",
		Long: `inspect lists the named types of the schema. If TYPE is given its structure
is shown instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				s, err := loadSchema(v)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, t := range s.Types() {
					fmt.Fprintf(w, "%s\t%s\n", t.Name(), describe(t))
				}
				return w.Flush()
			}
			o, err := lookupType(v, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, o.Shape(asn1rt.ShapeOptions{OpenTypes: openTypes}))
			cx := o.Complexity()
			fmt.Fprintf(out, "depth %d", cx.Depth)
			if len(cx.Recursions) > 0 {
				fmt.Fprintf(out, ", recursive at %s", strings.Join(cx.Recursions, ", "))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&openTypes, "open-types", false, "expand the candidate types of open types")
	return cmd
}

// describe returns the kind of t and the type it refers to.
func describe(t *asn1rt.Object) string {
	var b strings.Builder
	for _, tag := range t.OuterTags() {
		b.WriteString(tag.String())
		b.WriteByte(' ')
	}
	if name := t.TypeName(); name != "" {
		b.WriteString(name)
		b.WriteString(" (")
		b.WriteString(t.Kind().String())
		b.WriteByte(')')
	} else {
		b.WriteString(t.Kind().String())
	}
	if t.Extensible() {
		b.WriteString(" ...")
	}
	return b.String()
}
