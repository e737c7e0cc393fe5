// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeseal/codeseal/closure"
	"github.com/codeseal/codeseal/internal/fixtures"
	"github.com/codeseal/codeseal/registry"
)

func TestVersionInfoCachedPerCallable(t *testing.T) {
	store := registry.NewStore()

	first, err := store.VersionInfo(context.Background(), fixtures.SubFn,
		registry.WithTags("beta", "alpha", "beta"))
	require.NoError(t, err)
	second, err := store.VersionInfo(context.Background(), fixtures.SubFn)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"alpha", "beta"}, first.Tags)
	assert.Equal(t, "SubFn", first.Name)
	assert.Equal(t, registry.InitialVersion, first.Version)
	assert.Empty(t, first.UUID)
	assert.Equal(t, "SubFn greets through the undocumented leaf.", first.Description)
}

func TestUUIDAbsentWithoutCatalog(t *testing.T) {
	store := registry.NewStore()

	info, err := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.NoError(t, err)

	// Record identity is catalog-assigned; locally versioned records
	// carry none.
	assert.Empty(t, info.UUID)
	payload, err := json.Marshal(info)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "uuid")
}

func TestClosureSharesCacheWithVersionInfo(t *testing.T) {
	store := registry.NewStore()

	c, err := store.Closure(context.Background(), fixtures.SubFn)
	require.NoError(t, err)
	info, err := store.VersionInfo(context.Background(), fixtures.SubFn)
	require.NoError(t, err)
	again, err := store.Closure(context.Background(), fixtures.SubFn)
	require.NoError(t, err)

	assert.Same(t, c, again)
	assert.Equal(t, c.Hash, info.Hash)
	assert.Equal(t, c.Code, info.Code)
}

func TestVersionInfoOverrides(t *testing.T) {
	store := registry.NewStore()

	info, err := store.VersionInfo(context.Background(), fixtures.TwinA,
		registry.WithName("doubler"),
		registry.WithDescription("doubles its input"),
		registry.WithMetadata(map[string]string{"team": "analysis"}))
	require.NoError(t, err)

	assert.Equal(t, "doubler", info.Name)
	assert.Equal(t, "doubles its input", info.Description)
	assert.Equal(t, "analysis", info.Metadata["team"])
}

func TestInvalidateForcesRecomputation(t *testing.T) {
	store := registry.NewStore()

	first, err := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.NoError(t, err)
	store.Invalidate(fixtures.SingleFn)
	second, err := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	// Content identity is stable across recomputation.
	assert.Equal(t, first.Hash, second.Hash)
}

func TestComputationFailureIsSticky(t *testing.T) {
	engine := closure.New(closure.WithFormatter(&closure.ExecFormatter{
		Path:    "/nonexistent/formatter-binary",
		Retries: 1,
		Timeout: time.Second,
	}))
	store := registry.NewStore(registry.WithEngine(engine))

	_, err := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.Error(t, err)
	_, again := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.Error(t, again)
	assert.Equal(t, err.Error(), again.Error())
}

func TestNotAFuncIsRejected(t *testing.T) {
	store := registry.NewStore()
	_, err := store.VersionInfo(context.Background(), "not a func")
	require.Error(t, err)
}

func TestCatalogAssignsKnownVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(registry.CatalogRecord{
			Version: "2.3",
			UUID:    "cat-uuid-1",
		})
	}))
	defer server.Close()

	store := registry.NewStore(registry.WithCatalog(&registry.HTTPCatalog{BaseURL: server.URL}))
	info, err := store.VersionInfo(context.Background(), fixtures.SingleFn)
	require.NoError(t, err)

	assert.Equal(t, "2.3", info.Version)
	assert.Equal(t, "cat-uuid-1", info.UUID)
}

func TestCatalogRegistersUnknownHash(t *testing.T) {
	var registered atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPost:
			var record registry.CatalogRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
			registered.Store(record)
			record.UUID = "cat-uuid-new"
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(record)
		}
	}))
	defer server.Close()

	store := registry.NewStore(registry.WithCatalog(&registry.HTTPCatalog{BaseURL: server.URL}))
	info, err := store.VersionInfo(context.Background(), fixtures.TwinB)
	require.NoError(t, err)

	assert.Equal(t, registry.InitialVersion, info.Version)
	assert.Equal(t, "cat-uuid-new", info.UUID)
	record, ok := registered.Load().(registry.CatalogRecord)
	require.True(t, ok)
	assert.Equal(t, info.Hash, record.Hash)
	assert.Equal(t, info.Name, record.Name)
	assert.Empty(t, record.UUID)
}

func TestCatalogRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(registry.CatalogRecord{Version: "4.0"})
	}))
	defer server.Close()

	catalog := &registry.HTTPCatalog{BaseURL: server.URL, Backoff: time.Millisecond}
	store := registry.NewStore(registry.WithCatalog(catalog))
	info, err := store.VersionInfo(context.Background(), fixtures.ConstFn)
	require.NoError(t, err)

	assert.Equal(t, "4.0", info.Version)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCatalogOutageDegradesToLocalVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	catalog := &registry.HTTPCatalog{BaseURL: server.URL, Retries: 2, Backoff: time.Millisecond}
	store := registry.NewStore(registry.WithCatalog(catalog))
	info, err := store.VersionInfo(context.Background(), fixtures.BuiltinOnly)

	require.NoError(t, err)
	assert.Equal(t, registry.InitialVersion, info.Version)
}
