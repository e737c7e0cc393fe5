// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry turns closure computations into stable version records:
// content-addressed identities cached per live callable, optionally
// reconciled against a remote catalog, and attachable to execution traces.
package registry

import (
	"sort"

	"github.com/codeseal/codeseal/closure"
)

// InitialVersion is assigned to a closure hash the catalog has never seen.
const InitialVersion = "1.0"

// VersionInfo is the versioned identity of one callable at one point in
// time. Immutable once built; callers treat it as a value to attach to
// spans, logs, and catalog records.
type VersionInfo struct {
	// UUID is the identifier assigned by the remote catalog when the
	// record is found or registered there. Empty when no catalog is
	// configured or the catalog was unreachable.
	UUID string `json:"uuid,omitempty"`

	// Name is the callable's qualified name, unless overridden.
	Name string `json:"name"`

	// Version is the catalog-assigned version string, or InitialVersion
	// for hashes the catalog has never seen (or with no catalog at all).
	Version string `json:"version"`

	// Hash is the content hash of the callable's full closure code.
	Hash string `json:"hash"`

	// SignatureHash is the hash of the callable's interface shape only.
	SignatureHash string `json:"signature_hash"`

	// Signature is the normalized declaration header.
	Signature string `json:"signature"`

	// Code is the normalized self-contained source.
	Code string `json:"code"`

	// Description is caller-provided, falling back to the callable's doc
	// comment.
	Description string `json:"description,omitempty"`

	// Tags are sorted and deduplicated.
	Tags []string `json:"tags,omitempty"`

	// Metadata is arbitrary caller-provided context.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Dependencies maps module path to resolved version.
	Dependencies map[string]closure.PackageDependency `json:"dependencies,omitempty"`
}

// infoParams collects the caller-provided fields of a VersionInfo.
type infoParams struct {
	name        string
	description string
	tags        []string
	metadata    map[string]string
}

// InfoOption customizes the VersionInfo built for a callable.
type InfoOption func(*infoParams)

// WithName overrides the derived qualified name.
func WithName(name string) InfoOption {
	return func(p *infoParams) { p.name = name }
}

// WithDescription overrides the doc-comment description.
func WithDescription(description string) InfoOption {
	return func(p *infoParams) { p.description = description }
}

// WithTags adds tags. Tags accumulate across options and are normalized
// (sorted, deduplicated) on the final record.
func WithTags(tags ...string) InfoOption {
	return func(p *infoParams) { p.tags = append(p.tags, tags...) }
}

// WithMetadata merges key/value context onto the record.
func WithMetadata(metadata map[string]string) InfoOption {
	return func(p *infoParams) {
		if p.metadata == nil {
			p.metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			p.metadata[k] = v
		}
	}
}

// newVersionInfo assembles a record from a computed closure and options.
// Version and UUID are filled in by the store after catalog reconciliation.
func newVersionInfo(c *closure.Closure, opts ...InfoOption) *VersionInfo {
	var p infoParams
	for _, opt := range opts {
		opt(&p)
	}
	name := p.name
	if name == "" {
		name = c.Name
	}
	description := p.description
	if description == "" {
		description = c.Doc
	}
	return &VersionInfo{
		Name:          name,
		Version:       InitialVersion,
		Hash:          c.Hash,
		SignatureHash: c.SignatureHash,
		Signature:     c.Signature,
		Code:          c.Code,
		Description:   description,
		Tags:          normalizeTags(p.tags),
		Metadata:      p.metadata,
		Dependencies:  c.Dependencies,
	}
}

// normalizeTags sorts and deduplicates, dropping empties.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
