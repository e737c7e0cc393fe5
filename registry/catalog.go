// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound reports that a closure hash has no catalog record yet.
var ErrNotFound = errors.New("registry: record not found")

// CatalogRecord is the catalog's view of one versioned closure.
type CatalogRecord struct {
	Hash          string `json:"hash"`
	SignatureHash string `json:"signature_hash"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	UUID          string `json:"uuid"`
}

// Catalog persists version records keyed by content hash.
//
// Description:
//
//	The catalog is strictly advisory: the store consults it to assign
//	stable version strings across processes, but every catalog failure
//	degrades to local versioning. Implementations must therefore be safe
//	to fail.
type Catalog interface {
	// FindByHash returns the record for hash, or ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*CatalogRecord, error)

	// Register stores a new record and returns the created record,
	// including any catalog-assigned fields such as UUID. Registering an
	// already-known hash is not an error.
	Register(ctx context.Context, record *CatalogRecord) (*CatalogRecord, error)
}

// Default HTTPCatalog policy values.
const (
	DefaultCatalogRetries = 3
	DefaultCatalogBackoff = 100 * time.Millisecond
	DefaultCatalogTimeout = 5 * time.Second
)

// HTTPCatalog talks to a catalog service over JSON HTTP:
//
//	GET  {base}/v1/closures/{hash} → 200 CatalogRecord | 404
//	POST {base}/v1/closures        → 200/201
//
// Transient failures (5xx, network errors) retry with bounded exponential
// backoff.
//
// Thread Safety: Safe for concurrent use.
type HTTPCatalog struct {
	// BaseURL is the catalog service root, without trailing slash.
	BaseURL string

	// Client defaults to a client with DefaultCatalogTimeout.
	Client *http.Client

	// Retries bounds attempts per request. Defaults to
	// DefaultCatalogRetries.
	Retries int

	// Backoff is the initial retry delay, doubled per attempt. Defaults to
	// DefaultCatalogBackoff.
	Backoff time.Duration
}

// FindByHash implements Catalog.
func (c *HTTPCatalog) FindByHash(ctx context.Context, hash string) (*CatalogRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/closures/%s", c.BaseURL, url.PathEscape(hash))
	body, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		recordCatalogRequest("find", "error")
		return nil, err
	}
	if status == http.StatusNotFound {
		recordCatalogRequest("find", "miss")
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		recordCatalogRequest("find", "error")
		return nil, fmt.Errorf("catalog lookup: unexpected status %d", status)
	}
	var record CatalogRecord
	if err := json.Unmarshal(body, &record); err != nil {
		recordCatalogRequest("find", "error")
		return nil, fmt.Errorf("catalog lookup: decoding response: %w", err)
	}
	recordCatalogRequest("find", "hit")
	return &record, nil
}

// Register implements Catalog.
func (c *HTTPCatalog) Register(ctx context.Context, record *CatalogRecord) (*CatalogRecord, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("catalog register: encoding record: %w", err)
	}
	endpoint := c.BaseURL + "/v1/closures"
	body, status, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		recordCatalogRequest("register", "error")
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusConflict {
		recordCatalogRequest("register", "error")
		return nil, fmt.Errorf("catalog register: unexpected status %d", status)
	}
	created := *record
	if len(body) > 0 {
		if err := json.Unmarshal(body, &created); err != nil {
			recordCatalogRequest("register", "error")
			return nil, fmt.Errorf("catalog register: decoding response: %w", err)
		}
	}
	recordCatalogRequest("register", "ok")
	return &created, nil
}

// do performs one request with retry on transient failures, returning the
// response body and status of the final attempt.
func (c *HTTPCatalog) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultCatalogTimeout}
	}
	retries := c.Retries
	if retries <= 0 {
		retries = DefaultCatalogRetries
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = DefaultCatalogBackoff
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("catalog: status %d", resp.StatusCode)
			continue
		}
		return body, resp.StatusCode, nil
	}
	return nil, 0, fmt.Errorf("catalog: all %d attempts failed: %w", retries, lastErr)
}
