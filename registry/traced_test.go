// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/codeseal/codeseal/closure"
	"github.com/codeseal/codeseal/internal/fixtures"
	"github.com/codeseal/codeseal/registry"
)

// withSpanRecorder installs a recording tracer provider for the duration of
// a test.
func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWrapAttachesVersionAttributes(t *testing.T) {
	recorder := withSpanRecorder(t)
	store := registry.NewStore()

	shout := registry.Wrap(store, fixtures.Shout, registry.WithTags("greeting"))
	out, err := shout(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, "HELLO, WORLD!", out)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "Shout", span.Name())

	hash, ok := spanAttr(span, "codeseal.version.hash")
	require.True(t, ok)
	assert.Len(t, hash.AsString(), 64)
	version, ok := spanAttr(span, "codeseal.version.version")
	require.True(t, ok)
	assert.Equal(t, registry.InitialVersion, version.AsString())
	tags, ok := spanAttr(span, "codeseal.version.tags")
	require.True(t, ok)
	assert.Equal(t, []string{"greeting"}, tags.AsStringSlice())
}

func TestWrapDegradesWhenVersioningFails(t *testing.T) {
	recorder := withSpanRecorder(t)
	engine := closure.New(closure.WithFormatter(&closure.ExecFormatter{
		Path:    "/nonexistent/formatter-binary",
		Retries: 1,
		Timeout: time.Second,
	}))
	store := registry.NewStore(registry.WithEngine(engine))

	shout := registry.Wrap(store, fixtures.Shout)
	out, err := shout(context.Background(), "world")

	// The wrapped callable still executes and is traced.
	require.NoError(t, err)
	assert.Equal(t, "HELLO, WORLD!", out)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "codeseal.call", span.Name())

	_, hasHash := spanAttr(span, "codeseal.version.hash")
	assert.False(t, hasHash)
	degraded, ok := spanAttr(span, "codeseal.version.degraded")
	require.True(t, ok)
	assert.True(t, degraded.AsBool())
}
