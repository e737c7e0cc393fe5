// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Wrap returns fn instrumented with version-aware tracing.
//
// Description:
//
//	Every call opens a span carrying the callable's version identity
//	(hash, signature hash, version, tags, metadata). Version resolution
//	happens lazily on first call and is cached by the store. When the
//	callable's source cannot be analyzed, the wrapper degrades: the call
//	executes and is traced normally, just without version attributes.
//	Versioning failures never affect the wrapped callable's behavior.
func Wrap[In, Out any](store *Store, fn func(context.Context, In) (Out, error), opts ...InfoOption) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (Out, error) {
		info, verr := store.VersionInfo(ctx, fn, opts...)

		spanName := "codeseal.call"
		if info != nil {
			spanName = info.Name
		}
		ctx, span := tracer.Start(ctx, spanName)
		defer span.End()

		if verr == nil && info != nil {
			span.SetAttributes(versionAttributes(info)...)
		} else {
			span.SetAttributes(attribute.Bool("codeseal.version.degraded", true))
		}

		out, err := fn(ctx, in)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}

// versionAttributes flattens a VersionInfo into span attributes under the
// codeseal.version.* namespace.
func versionAttributes(info *VersionInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("codeseal.version.name", info.Name),
		attribute.String("codeseal.version.version", info.Version),
		attribute.String("codeseal.version.hash", info.Hash),
		attribute.String("codeseal.version.signature_hash", info.SignatureHash),
	}
	if info.UUID != "" {
		attrs = append(attrs, attribute.String("codeseal.version.uuid", info.UUID))
	}
	if info.Description != "" {
		attrs = append(attrs, attribute.String("codeseal.version.description", info.Description))
	}
	if len(info.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("codeseal.version.tags", info.Tags))
	}
	for k, v := range info.Metadata {
		attrs = append(attrs, attribute.String("codeseal.version.meta."+k, v))
	}
	return attrs
}
