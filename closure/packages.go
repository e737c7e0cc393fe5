// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModuleResolver maps an import path to its owning module and installed
// version.
//
// Description:
//
//	Resolution is longest-prefix over known module paths, since an import
//	path rarely equals its owning module path exactly. A module with no
//	resolvable version contributes no dependency entry — that is not an
//	error, per the aggregation contract.
type ModuleResolver interface {
	// Resolve returns the dependency entry owning importPath, or false
	// when no installed module can be determined.
	Resolve(importPath string) (PackageDependency, bool)

	// MainModule returns the module path of the analyzed program itself,
	// used to split user-module imports from third-party ones. Empty when
	// unknown.
	MainModule() string

	// ModuleRoot returns the on-disk root directory of the main module,
	// used to locate same-module packages for inlining. Empty when
	// unknown.
	ModuleRoot() string
}

// moduleTable is the shared longest-prefix implementation behind both
// resolver sources (build info and go.mod).
type moduleTable struct {
	mainPath string
	rootDir  string
	versions map[string]string
}

// Resolve implements ModuleResolver.
func (t *moduleTable) Resolve(importPath string) (PackageDependency, bool) {
	path := importPath
	for {
		if version, ok := t.versions[path]; ok {
			return PackageDependency{Name: path, Version: version}, true
		}
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			return PackageDependency{}, false
		}
		path = path[:i]
	}
}

// MainModule implements ModuleResolver.
func (t *moduleTable) MainModule() string { return t.mainPath }

// ModuleRoot implements ModuleResolver.
func (t *moduleTable) ModuleRoot() string { return t.rootDir }

// NewBuildInfoResolver builds a resolver from the running binary's embedded
// build information. This is the live-program path: versions come from what
// is actually linked in, not from what a go.mod on disk claims.
//
// Outputs:
//
//	ModuleResolver - Resolver over the linked module set.
//	bool - False when the binary carries no build info (e.g. not built in
//	       module mode); callers fall back to go.mod resolution.
func NewBuildInfoResolver() (ModuleResolver, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, false
	}
	table := &moduleTable{
		mainPath: info.Main.Path,
		versions: make(map[string]string, len(info.Deps)),
	}
	for _, dep := range info.Deps {
		mod := dep
		if dep.Replace != nil {
			mod = dep.Replace
		}
		if mod.Version != "" && mod.Version != "(devel)" {
			table.versions[dep.Path] = mod.Version
		}
	}
	return table, true
}

// NewModFileResolver builds a resolver by locating and parsing the go.mod
// that governs dir.
//
// Description:
//
//	Walks up from dir until a go.mod is found. Require directives (direct
//	and indirect) populate the version table. Used for static inspection
//	and as the fallback when build info is unavailable (tests, `go run`).
func NewModFileResolver(dir string) (ModuleResolver, error) {
	root, err := findModuleRoot(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil, fmt.Errorf("reading go.mod: %w", err)
	}
	file, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing go.mod: %w", err)
	}

	table := &moduleTable{rootDir: root, versions: make(map[string]string)}
	if file.Module != nil {
		table.mainPath = file.Module.Mod.Path
	}
	for _, req := range file.Require {
		table.versions[req.Mod.Path] = req.Mod.Version
	}
	return table, nil
}

// DefaultResolver returns the build-info resolver when available, otherwise
// the go.mod resolver rooted at dir.
func DefaultResolver(dir string) (ModuleResolver, error) {
	if resolver, ok := NewBuildInfoResolver(); ok && resolver.MainModule() != "" {
		// Build info carries no module root; graft it on so same-module
		// package inlining still works from source.
		if root, err := findModuleRoot(dir); err == nil {
			if table, isTable := resolver.(*moduleTable); isTable {
				table.rootDir = root
			}
		}
		return resolver, nil
	}
	return NewModFileResolver(dir)
}

// findModuleRoot walks up from dir looking for a go.mod file.
func findModuleRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found above %s", dir)
		}
		dir = parent
	}
}
