// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/codeseal/codeseal/closure"
)

// DefaultCacheSize bounds the per-callable version cache.
const DefaultCacheSize = 128

// Store caches VersionInfo per live callable.
//
// Description:
//
//	One closure computation per callable identity: results (including
//	failures) are cached by the callable's entry PC, and concurrent
//	first requests for the same callable are collapsed so the expensive
//	source analysis runs once. When a catalog is configured, version
//	strings reconcile against it; catalog failures degrade to local
//	versioning and are never surfaced to callers.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	engine  *closure.Engine
	catalog Catalog
	logger  *slog.Logger

	cache  *lru.Cache[uintptr, *storeEntry]
	single singleflight.Group
}

// storeEntry is a cached computation outcome. Failures are sticky: a
// callable whose source cannot be analyzed will not be re-analyzed on every
// call.
type storeEntry struct {
	closure *closure.Closure
	info    *VersionInfo
	err     error
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	engine    *closure.Engine
	catalog   Catalog
	logger    *slog.Logger
	cacheSize int
}

// WithEngine sets the closure engine. Defaults to closure.New().
func WithEngine(engine *closure.Engine) StoreOption {
	return func(c *storeConfig) { c.engine = engine }
}

// WithCatalog attaches a version catalog.
func WithCatalog(catalog Catalog) StoreOption {
	return func(c *storeConfig) { c.catalog = catalog }
}

// WithStoreLogger sets the structured logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheSize overrides DefaultCacheSize.
func WithCacheSize(size int) StoreOption {
	return func(c *storeConfig) {
		if size > 0 {
			c.cacheSize = size
		}
	}
}

// NewStore creates a Store.
func NewStore(opts ...StoreOption) *Store {
	cfg := storeConfig{
		engine:    closure.New(),
		logger:    slog.Default(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	// Only errors on non-positive size, which the option guards against.
	cache, err := lru.New[uintptr, *storeEntry](cfg.cacheSize)
	if err != nil {
		panic(fmt.Sprintf("registry: cache init: %v", err))
	}
	return &Store{
		engine:  cfg.engine,
		catalog: cfg.catalog,
		logger:  cfg.logger,
		cache:   cache,
	}
}

// VersionInfo returns the cached version record for fn, computing it on
// first use.
//
// Inputs:
//
//	fn - A live func value. Anything else fails without being cached.
//	opts - Record customization, applied only on the computing call; later
//	       calls for the same callable return the original record.
//
// Outputs:
//
//	*VersionInfo - The same instance for every call with the same callable.
//	error - The (sticky) computation failure, if any.
func (s *Store) VersionInfo(ctx context.Context, fn any, opts ...InfoOption) (*VersionInfo, error) {
	entry, err := s.lookup(ctx, fn, opts)
	if err != nil {
		return nil, err
	}
	return entry.info, nil
}

// lookup returns the cache entry for fn, computing it on first use.
func (s *Store) lookup(ctx context.Context, fn any, opts []InfoOption) (*storeEntry, error) {
	key, err := callableKey(fn)
	if err != nil {
		return nil, err
	}
	if entry, ok := s.cache.Get(key); ok {
		recordLookup("hit")
		return entry, entry.err
	}

	result, _, _ := s.single.Do(fmt.Sprintf("%x", key), func() (any, error) {
		// Re-check: a concurrent caller may have populated the cache while
		// this call waited on the flight group.
		if entry, ok := s.cache.Get(key); ok {
			return entry, nil
		}
		entry := s.compute(ctx, fn, opts)
		s.cache.Add(key, entry)
		return entry, nil
	})
	entry := result.(*storeEntry)
	if entry.err != nil {
		recordLookup("error")
	} else {
		recordLookup("miss")
	}
	return entry, entry.err
}

// Closure returns the cached computed closure for fn, sharing the same
// cache entry as VersionInfo: whichever is asked first triggers the one
// computation, and both return results of that computation afterwards.
//
// Inputs:
//
//	fn - A live func value. Anything else fails without being cached.
//	opts - Record customization, applied only on the computing call.
//
// Outputs:
//
//	*closure.Closure - The same instance for every call with the same
//	                   callable.
//	error - The (sticky) computation failure, if any.
func (s *Store) Closure(ctx context.Context, fn any, opts ...InfoOption) (*closure.Closure, error) {
	entry, err := s.lookup(ctx, fn, opts)
	if err != nil {
		return nil, err
	}
	return entry.closure, nil
}

// compute runs the closure computation and catalog reconciliation.
func (s *Store) compute(ctx context.Context, fn any, opts []InfoOption) *storeEntry {
	c, err := s.engine.FromFunc(ctx, fn)
	if err != nil {
		s.logger.Warn("closure computation failed; callable will run unversioned",
			"error", err)
		return &storeEntry{err: err}
	}
	info := newVersionInfo(c, opts...)
	s.reconcile(ctx, info)
	return &storeEntry{closure: c, info: info}
}

// reconcile assigns the catalog's version for a known hash, or registers
// the record as InitialVersion. Never fails the caller.
func (s *Store) reconcile(ctx context.Context, info *VersionInfo) {
	if s.catalog == nil {
		return
	}
	record, err := s.catalog.FindByHash(ctx, info.Hash)
	switch {
	case err == nil:
		info.Version = record.Version
		if record.UUID != "" {
			info.UUID = record.UUID
		}
	case errors.Is(err, ErrNotFound):
		created, regErr := s.catalog.Register(ctx, &CatalogRecord{
			Hash:          info.Hash,
			SignatureHash: info.SignatureHash,
			Name:          info.Name,
			Version:       info.Version,
		})
		if regErr != nil {
			s.logger.Warn("catalog registration failed; keeping local version",
				"name", info.Name, "error", regErr)
			return
		}
		if created.Version != "" {
			info.Version = created.Version
		}
		info.UUID = created.UUID
	default:
		s.logger.Warn("catalog lookup failed; keeping local version",
			"name", info.Name, "error", err)
	}
}

// Invalidate drops the cached record for fn, forcing recomputation on next
// use. Dropping an uncached callable is a no-op.
func (s *Store) Invalidate(fn any) {
	if key, err := callableKey(fn); err == nil {
		s.cache.Remove(key)
	}
}

// InvalidateAll drops every cached record.
func (s *Store) InvalidateAll() {
	s.cache.Purge()
}

// callableKey derives the cache key: the callable's entry PC.
func callableKey(fn any) (uintptr, error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return 0, fmt.Errorf("registry: not a usable func value: %T", fn)
	}
	return v.Pointer(), nil
}
