// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/format"
	"os/exec"
	"time"
)

// Formatter normalizes a complete Go source file so that semantically
// identical code always normalizes to byte-identical text.
//
// Description:
//
//	The formatter is an injectable collaborator: tests stub it, and
//	deployments that cannot rely on an external binary use the in-process
//	implementation. Any error returned here is surfaced to callers as a
//	ClosureComputationError.
type Formatter interface {
	// Format returns the normalized form of src. src is always a complete
	// source file including its package clause.
	Format(ctx context.Context, src []byte) ([]byte, error)
}

// GoFormatter is the default in-process formatter backed by go/format.
// It is deterministic and never transiently fails: an error means the
// assembled source is invalid.
type GoFormatter struct{}

// Format implements Formatter.
func (GoFormatter) Format(_ context.Context, src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("gofmt: %w", err)
	}
	return out, nil
}

// Default ExecFormatter policy values.
const (
	// DefaultFormatterRetries bounds retries of transient subprocess
	// failures before they are classified as permanent.
	DefaultFormatterRetries = 3

	// DefaultFormatterTimeout bounds a single subprocess invocation.
	DefaultFormatterTimeout = 10 * time.Second
)

// ExecFormatter shells out to an external gofmt-compatible formatter that
// reads source on stdin and writes the formatted result to stdout.
//
// Exit-code policy: codes in OKExitCodes are success ("no issues" and
// "issues auto-fixed" for fixer-style tools). Any other exit code, a failed
// invocation, or a timeout is retried up to Retries times and then treated
// as a permanent failure.
//
// Thread Safety: Safe for concurrent use (stateless per call).
type ExecFormatter struct {
	// Path is the formatter binary to invoke.
	Path string

	// Args are passed to the binary. May be empty.
	Args []string

	// OKExitCodes are exit codes treated as success. Defaults to {0, 1}.
	OKExitCodes []int

	// Retries bounds retry attempts. Defaults to DefaultFormatterRetries.
	Retries int

	// Timeout bounds each invocation. Defaults to DefaultFormatterTimeout.
	Timeout time.Duration
}

// Format implements Formatter.
func (f *ExecFormatter) Format(ctx context.Context, src []byte) ([]byte, error) {
	retries := f.Retries
	if retries <= 0 {
		retries = DefaultFormatterRetries
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFormatterTimeout
	}
	okCodes := f.OKExitCodes
	if len(okCodes) == 0 {
		okCodes = []int{0, 1}
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		out, err := f.runOnce(ctx, src, timeout, okCodes)
		if err == nil {
			return out, nil
		}
		lastErr = err
		formatterRetriesTotal.Inc()
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("formatter %s failed after %d attempts: %w", f.Path, retries, lastErr)
}

// runOnce performs a single bounded invocation.
func (f *ExecFormatter) runOnce(ctx context.Context, src []byte, timeout time.Duration, okCodes []int) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.Path, f.Args...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		for _, ok := range okCodes {
			if code == ok {
				return stdout.Bytes(), nil
			}
		}
		return nil, fmt.Errorf("exit code %d: %s", code, firstLine(stderr.String()))
	}
	return nil, err
}

// firstLine trims subprocess stderr down to its first line for error text.
func firstLine(s string) string {
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
