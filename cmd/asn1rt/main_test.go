// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
types:
  - name: Color
    kind: ENUMERATED
    items: [red, green, blue]
    extItems: ["yellow(5)"]
  - name: Person
    kind: SEQUENCE
    extensible: true
    components:
      - {name: name, kind: UTF8String, size: {min: 1, max: 64}}
      - {name: age, kind: INTEGER, range: {min: 0, max: 150}, spec: optional}
      - {name: email, kind: IA5String, spec: optional}
      - {name: color, type: Color, default: red}
      - {name: nickname, kind: VisibleString, spec: "[5] OPTIONAL", ext: true}
`

// writeFiles creates the named files in a temporary directory and returns
// the directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

// run executes the command line args with the given standard input and
// returns standard output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncode(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"schema.yaml": testSchema,
		"person.json": `{"name": "A"}`,
		"person.yaml": "name: A\nnickname: Al\n",
		"color.asn":   "blue -- value notation --",
	})
	schema := filepath.Join(dir, "schema.yaml")

	tests := map[string]struct {
		args []string
		want string
	}{
		"JSON": {[]string{"encode", "Person", filepath.Join(dir, "person.json")}, "000141\n"},
		"YAML": {[]string{"encode", "Person", filepath.Join(dir, "person.yaml")}, "8001410207800302416C\n"},
		"ASN":  {[]string{"encode", "Color", filepath.Join(dir, "color.asn")}, "02\n"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			args := append([]string{"-s", schema, "-c", "coer"}, tc.args...)
			got, err := run(t, "", append(args, "--hex")...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("Stdin", func(t *testing.T) {
		got, err := run(t, "name: A\n", "-s", schema, "-c", "coer", "encode", "-i", "yaml", "-x", "Person")
		require.NoError(t, err)
		assert.Equal(t, "000141\n", got)
	})
	t.Run("Binary", func(t *testing.T) {
		got, err := run(t, `"green"`, "-s", schema, "-c", "oer", "encode", "Color")
		require.NoError(t, err)
		assert.Equal(t, "\x01", got)
	})
}

func TestDecode(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")

	tests := map[string]struct {
		args []string
		in   string
		want string
	}{
		"JSON":   {[]string{"decode", "-x", "Person"}, "00 01 41", `{"name":"A"}` + "\n"},
		"YAML":   {[]string{"decode", "-x", "-o", "yaml", "Person"}, "4001411E", "age: 30\nname: A\n"},
		"ASN":    {[]string{"decode", "-x", "-o", "asn", "Color"}, "05", "yellow\n"},
		"Indent": {[]string{"decode", "-x", "--indent", "2", "Person"}, "000141", "{\n  \"name\": \"A\"\n}\n"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			args := append([]string{"-s", schema, "-c", "coer"}, tc.args...)
			got, err := run(t, tc.in, args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode_Structure(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")

	enc, err := run(t, `{"name":"A","age":30}`, "-s", schema, "encode", "-x", "Person")
	require.NoError(t, err)

	got, err := run(t, enc, "-s", schema, "decode", "-x", "--structure", "Person")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "1E")

	_, err = run(t, `{"name":"A"}`, "-s", schema, "-c", "jer", "decode", "--structure", "Person")
	assert.ErrorContains(t, err, "no structure dump")
}

func TestRoundTrip_Codecs(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")
	value := `{"name":"Ada","age":36,"color":"blue","nickname":"Countess"}`

	for _, c := range codecNames() {
		if c == "asntext" {
			// value notation is decoded for simple types only
			continue
		}
		t.Run(c, func(t *testing.T) {
			enc, err := run(t, value, "-s", schema, "-c", c, "encode", "-x", "Person")
			require.NoError(t, err)
			got, err := run(t, enc, "-s", schema, "-c", c, "decode", "-x", "Person")
			require.NoError(t, err)
			assert.JSONEq(t, value, got)
		})
	}
}

func TestConfig(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")
	cfg := filepath.Join(dir, "asn1rt.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("schema: "+schema+"\ncodec: coer\nlog-level: debug\n"), 0o600))

	t.Run("File", func(t *testing.T) {
		got, err := run(t, `"blue"`, "--config", cfg, "encode", "-x", "Color")
		require.NoError(t, err)
		assert.Equal(t, "02\n", got)
	})
	t.Run("Environment", func(t *testing.T) {
		t.Setenv("ASN1RT_SCHEMA", schema)
		t.Setenv("ASN1RT_CODEC", "coer")
		got, err := run(t, `"blue"`, "encode", "-x", "Color")
		require.NoError(t, err)
		assert.Equal(t, "02\n", got)
	})
	t.Run("FlagOverridesFile", func(t *testing.T) {
		got, err := run(t, `"blue"`, "--config", cfg, "-c", "jer", "encode", "Color")
		require.NoError(t, err)
		assert.Equal(t, `"blue"`, got)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := run(t, "", "--config", filepath.Join(dir, "missing.yaml"), "inspect")
		assert.ErrorContains(t, err, "read config")
	})
}

func TestInspect(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")

	got, err := run(t, "", "-s", schema, "inspect")
	require.NoError(t, err)
	assert.Contains(t, got, "Color")
	assert.Contains(t, got, "SEQUENCE ...")

	got, err = run(t, "", "-s", schema, "inspect", "Person")
	require.NoError(t, err)
	assert.Contains(t, got, "Color (ENUMERATED) DEFAULT")
	assert.Contains(t, got, "depth 1")
}

func TestErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"schema.yaml": testSchema})
	schema := filepath.Join(dir, "schema.yaml")

	tests := map[string]struct {
		args []string
		in   string
		want string
	}{
		"NoSchema":     {[]string{"inspect"}, "", "no schema given"},
		"UnknownType":  {[]string{"-s", schema, "encode", "Animal"}, "", `schema has no type "Animal"`},
		"UnknownCodec": {[]string{"-s", schema, "-c", "xer", "encode", "Color"}, `"red"`, `unknown codec "xer"`},
		"BadValue":     {[]string{"-s", schema, "encode", "Person"}, `{"age": 1}`, "read value"},
		"BadHex":       {[]string{"-s", schema, "decode", "-x", "Color"}, "zz", "decode hex input"},
		"LogFormat":    {[]string{"-s", schema, "--log-format", "xml", "inspect"}, "", "unknown log format"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, tc.in, tc.args...)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
