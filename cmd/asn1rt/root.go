// Copyright 2025 Kim Wittenburg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codello.dev/asn1rt"
	"codello.dev/asn1rt/schemafile"
)

const longRootDescription = `asn1rt encodes and decodes ASN.1 values using BER, CER, DER, PER, OER, JER
and the ASN.1 value notation. Types are taken from a schema file in YAML,
JSON, JSON with comments or CBOR.
`

// newRootCmd builds the command tree. Every call uses a fresh configuration.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "asn1rt",
		Short:         "Encode, decode and inspect ASN.1 values",
		Long:          longRootDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				return err
			}
			return setupLogging(v, cmd.ErrOrStderr())
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfgFile, "config", "", "config file (default is ./asn1rt.yaml)")
	fs.StringP("schema", "s", "", "schema description file")
	fs.StringP("codec", "c", "der", "transfer syntax, one of "+strings.Join(codecNames(), ", "))
	fs.Int("max-depth", 0, "maximum nesting of decoded values (0 for the default)")
	fs.Bool("unchecked", false, "skip shape and bound checks of values")
	fs.String("log-level", "warning", "log level (debug, info, warning, error)")
	fs.String("log-format", "text", "log format (text or json)")
	if err := v.BindPFlags(fs); err != nil {
		panic(err)
	}

	cmd.AddCommand(newEncodeCmd(v), newDecodeCmd(v), newInspectCmd(v))
	return cmd
}

// loadConfig reads the config file and environment variables into v. A
// missing default config file is not an error.
func loadConfig(v *viper.Viper, file string) error {
	v.SetEnvPrefix("ASN1RT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("asn1rt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// setupLogging configures the logger used by the codecs.
func setupLogging(v *viper.Viper, out io.Writer) error {
	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch format := v.GetString("log-format"); format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	asn1rt.Logger = logger
	if f := v.ConfigFileUsed(); f != "" {
		logger.WithField("file", f).Debug("config loaded")
	}
	return nil
}

// lookupType loads the configured schema and returns its type name.
func lookupType(v *viper.Viper, name string) (*asn1rt.Object, error) {
	s, err := loadSchema(v)
	if err != nil {
		return nil, err
	}
	o := s.Lookup(name)
	if o == nil {
		return nil, errors.Errorf("schema has no type %q", name)
	}
	return o, nil
}

func loadSchema(v *viper.Viper) (*asn1rt.Schema, error) {
	path := v.GetString("schema")
	if path == "" {
		return nil, errors.New("no schema given (use --schema)")
	}
	s, err := schemafile.Load(path)
	if err != nil {
		return nil, err
	}
	asn1rt.Logger.WithField("schema", path).Debugf("loaded %d types", len(s.Types()))
	return s, nil
}
