// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("codeseal.closure")

var (
	computeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeseal",
		Subsystem: "closure",
		Name:      "compute_duration_seconds",
		Help:      "Wall time of closure computations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	computationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeseal",
		Subsystem: "closure",
		Name:      "computations_total",
		Help:      "Closure computations by outcome.",
	}, []string{"status"})

	formatterRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeseal",
		Subsystem: "closure",
		Name:      "formatter_retries_total",
		Help:      "Retried external formatter invocations.",
	})
)

// startComputeSpan opens the tracing span covering one closure computation.
func startComputeSpan(ctx context.Context, qualifiedName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "closure.compute",
		trace.WithAttributes(attribute.String("codeseal.closure.name", qualifiedName)))
}

// finishComputeSpan records the outcome on the span and ends it.
func finishComputeSpan(span trace.Span, c *Closure, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if c != nil {
		span.SetAttributes(
			attribute.String("codeseal.closure.hash", c.Hash),
			attribute.String("codeseal.closure.signature_hash", c.SignatureHash),
			attribute.Int("codeseal.closure.dependencies", len(c.Dependencies)),
			attribute.Int("codeseal.closure.code_bytes", len(c.Code)),
		)
	}
	span.End()
}

// recordCompute updates the computation metrics.
func recordCompute(elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	computeDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	computationsTotal.WithLabelValues(status).Inc()
}
