// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"fmt"
	"go/ast"
)

// SymbolKind classifies a free identifier found in a callable's body or
// signature. It is a closed enum: consumers switch exhaustively over all
// kinds, and an unknown value is treated as a programming error.
type SymbolKind int

const (
	// KindParameter is a name bound by the callable's own signature
	// (parameters, named results, receivers, type parameters). Excluded
	// from external rendering entirely.
	KindParameter SymbolKind = iota

	// KindBuiltin is a name provided by the language universe scope
	// (len, make, error, int, ...). Referenced by name only.
	KindBuiltin

	// KindStdlibImport resolves into a standard library package. An import
	// statement is emitted, preserving the alias used at the call site.
	KindStdlibImport

	// KindThirdParty resolves into a package owned by an external module.
	// An import statement is emitted and the owning module is forwarded to
	// the package resolver for version capture.
	KindThirdParty

	// KindUserModuleLevel resolves into a top-level declaration in the
	// analyzed codebase (same package or same module). Forwarded to the
	// recursive builder for inlining.
	KindUserModuleLevel

	// KindUserNested resolves into a declaration nested inside an enclosing
	// function. Reserved: the resolver hoists nested definitions together
	// with their enclosing top-level declaration, so no classification path
	// currently emits this kind; the builder still accepts it.
	KindUserNested
)

// String returns the string representation of the SymbolKind.
func (k SymbolKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindBuiltin:
		return "builtin"
	case KindStdlibImport:
		return "stdlib_import"
	case KindThirdParty:
		return "third_party"
	case KindUserModuleLevel:
		return "user_module_level"
	case KindUserNested:
		return "user_nested"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Symbol is a referenced name together with its classification and, where
// applicable, the resolved declaration site.
//
// Invariant: every free identifier in a callable's body/signature maps to
// exactly one Symbol, or the computation fails with UnresolvableSymbolError.
type Symbol struct {
	// Name is the identifier as used at the reference site.
	Name string

	// Kind is the classifier outcome for this symbol.
	Kind SymbolKind

	// Decl is the resolved declaration node for user-defined symbols.
	// Nil for parameters, builtins, and imports.
	Decl ast.Node

	// ImportPath is the package path for import kinds. Empty otherwise.
	ImportPath string

	// Alias is the local name the import is bound to in the referencing
	// file, when it differs from the package's default name. Empty means
	// the default name is used.
	Alias string

	// Members lists the selector members accessed through this symbol when
	// it names a same-module package (e.g. util.Helper -> "Helper").
	Members []string

	// pkg is the package source set the declaration lives in. Nil for
	// non-user symbols.
	pkg *packageSources
}

// PackageDependency identifies an externally installed module a callable's
// rendered code requires.
//
// Invariant: present only for third-party symbols whose owning module could
// be resolved; modules with no resolvable version are silently omitted.
type PackageDependency struct {
	// Name is the module path (e.g. "github.com/google/uuid").
	Name string `json:"name" yaml:"name"`

	// Version is the resolved module version (e.g. "v1.6.0").
	Version string `json:"version" yaml:"version"`

	// Extras is retained for catalog API compatibility. Go modules have no
	// optional-extras concept, so the module resolver never populates it.
	Extras []string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Closure is the computed, self-contained source representation of a
// callable plus its external dependency set. Immutable once produced; its
// identity is Hash.
type Closure struct {
	// Name is the simplified qualified name of the callable (innermost
	// named element for nested definitions).
	Name string `json:"name"`

	// Signature is the normalized declaration header of the callable
	// (name, parameters, results; body elided).
	Signature string `json:"signature"`

	// Doc is the doc comment of the callable, if any. Captured before any
	// doc-comment stripping so description fields stay populated.
	Doc string `json:"doc,omitempty"`

	// Code is the normalized, self-contained source text: imports first,
	// then module-level constants and type declarations, then dependency
	// definitions in post-order, then the target callable last.
	Code string `json:"code"`

	// Hash is the SHA-256 digest over Code (full behavioral identity).
	Hash string `json:"hash"`

	// SignatureHash is the SHA-256 digest over the callable's declaration
	// header (receiver, name, parameter and return types), ignoring its
	// body. It distinguishes "interface unchanged, implementation changed"
	// from "interface changed".
	SignatureHash string `json:"signature_hash"`

	// Dependencies maps module path to the resolved dependency entry.
	// Duplicate imports of the same module collapse to one entry.
	Dependencies map[string]PackageDependency `json:"dependencies"`
}
