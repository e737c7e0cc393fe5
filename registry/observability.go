// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("codeseal.registry")

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeseal",
		Subsystem: "registry",
		Name:      "lookups_total",
		Help:      "Version lookups by cache outcome.",
	}, []string{"result"})

	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeseal",
		Subsystem: "registry",
		Name:      "catalog_requests_total",
		Help:      "Catalog requests by operation and outcome.",
	}, []string{"op", "status"})
)

func recordLookup(result string) {
	lookupsTotal.WithLabelValues(result).Inc()
}

func recordCatalogRequest(op, status string) {
	catalogRequestsTotal.WithLabelValues(op, status).Inc()
}
