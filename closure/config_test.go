// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "codeseal.config.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.IncludeDocComments)
	assert.Nil(t, cfg.Formatter)
	assert.Empty(t, cfg.Options())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeseal.config.yaml")
	data := []byte(`
include_doc_comments: true
formatter:
  path: /usr/local/bin/gofumpt
  args: ["-e"]
  retries: 5
  timeout_ms: 2500
  ok_exit_codes: [0]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.IncludeDocComments)
	assert.True(t, *cfg.IncludeDocComments)
	require.NotNil(t, cfg.Formatter)
	assert.Equal(t, "/usr/local/bin/gofumpt", cfg.Formatter.Path)
	assert.Equal(t, []string{"-e"}, cfg.Formatter.Args)
	assert.Len(t, cfg.Options(), 2)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeseal.config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("formatter: ["), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestConfigOptionsBuildExecFormatter(t *testing.T) {
	cfg := Config{Formatter: &FormatterConfig{Path: "/bin/true", TimeoutMS: 1000}}
	opts := cfg.Options()
	require.Len(t, opts, 1)

	e := New(opts...)
	exec, ok := e.formatter.(*ExecFormatter)
	require.True(t, ok)
	assert.Equal(t, "/bin/true", exec.Path)
	assert.Equal(t, time.Second, exec.Timeout)
}
