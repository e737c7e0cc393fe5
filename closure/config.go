// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional on-disk configuration for an Engine, typically
// loaded from codeseal.config.yaml next to the binary.
type Config struct {
	// IncludeDocComments carries doc comments into the rendered code when
	// true. Overrides the CODESEAL_INCLUDE_DOC_COMMENTS environment toggle.
	IncludeDocComments *bool `yaml:"include_doc_comments,omitempty"`

	// Formatter selects an external formatter binary. When nil the
	// in-process formatter is used.
	Formatter *FormatterConfig `yaml:"formatter,omitempty"`
}

// FormatterConfig configures an ExecFormatter.
type FormatterConfig struct {
	Path        string   `yaml:"path"`
	Args        []string `yaml:"args,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	TimeoutMS   int      `yaml:"timeout_ms,omitempty"`
	OKExitCodes []int    `yaml:"ok_exit_codes,omitempty"`
}

// LoadConfig reads the YAML config at path. A missing file is not an error;
// it simply yields the zero Config (all defaults).
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Options translates the config into Engine options.
func (c Config) Options() []Option {
	var opts []Option
	if c.IncludeDocComments != nil {
		opts = append(opts, WithIncludeDocComments(*c.IncludeDocComments))
	}
	if c.Formatter != nil && c.Formatter.Path != "" {
		opts = append(opts, WithFormatter(&ExecFormatter{
			Path:        c.Formatter.Path,
			Args:        c.Formatter.Args,
			Retries:     c.Formatter.Retries,
			Timeout:     time.Duration(c.Formatter.TimeoutMS) * time.Millisecond,
			OKExitCodes: c.Formatter.OKExitCodes,
		}))
	}
	return opts
}
