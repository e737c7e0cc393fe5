// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoFormatterNormalizes(t *testing.T) {
	out, err := GoFormatter{}.Format(context.Background(), []byte("package x\nfunc  F( ) {   }\n"))
	require.NoError(t, err)
	assert.Equal(t, "package x\n\nfunc F() {}\n", string(out))
}

func TestGoFormatterRejectsInvalidSource(t *testing.T) {
	_, err := GoFormatter{}.Format(context.Background(), []byte("not go at all"))
	require.Error(t, err)
}

func TestExecFormatterPassesThroughStdout(t *testing.T) {
	f := &ExecFormatter{Path: "/bin/cat", Retries: 1}
	out, err := f.Format(context.Background(), []byte("package x\n"))
	require.NoError(t, err)
	assert.Equal(t, "package x\n", string(out))
}

func TestExecFormatterAcceptsConfiguredExitCodes(t *testing.T) {
	// Exit code 1 means "issues found and fixed" for fixer-style tools and
	// is accepted by default.
	f := &ExecFormatter{Path: "/bin/sh", Args: []string{"-c", "cat; exit 1"}, Retries: 1}
	out, err := f.Format(context.Background(), []byte("package x\n"))
	require.NoError(t, err)
	assert.Equal(t, "package x\n", string(out))
}

func TestExecFormatterRejectsOtherExitCodes(t *testing.T) {
	f := &ExecFormatter{Path: "/bin/sh", Args: []string{"-c", "exit 2"}, Retries: 2}
	_, err := f.Format(context.Background(), []byte("package x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestExecFormatterHonorsTimeout(t *testing.T) {
	f := &ExecFormatter{
		Path:    "/bin/sh",
		Args:    []string{"-c", "sleep 5"},
		Retries: 1,
		Timeout: 50 * time.Millisecond,
	}
	start := time.Now()
	_, err := f.Format(context.Background(), []byte("package x\n"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
