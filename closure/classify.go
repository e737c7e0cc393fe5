// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"go/ast"
	"strconv"
	"strings"
)

// universeNames is the Go universe scope: predeclared types, constants, and
// functions. Referenced by name only; no definition is ever emitted.
var universeNames = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true,
	"complex64": true, "complex128": true, "error": true, "float32": true,
	"float64": true, "int": true, "int8": true, "int16": true, "int32": true,
	"int64": true, "rune": true, "string": true, "uint": true, "uint8": true,
	"uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"true": true, "false": true, "iota": true, "nil": true,
	"append": true, "cap": true, "clear": true, "close": true,
	"complex": true, "copy": true, "delete": true, "imag": true, "len": true,
	"make": true, "max": true, "min": true, "new": true, "panic": true,
	"print": true, "println": true, "real": true, "recover": true,
}

// importRef is one import binding visible in a file.
type importRef struct {
	path  string
	alias string // explicit alias, empty when the default name is used
}

// fileImportSet is the import environment of a single file: named bindings,
// dot imports, and side-effect-only blank imports.
type fileImportSet struct {
	named map[string]importRef
	dots  []string
	blank []string
}

// fileImports extracts the import environment of file.
func fileImports(file *ast.File) fileImportSet {
	set := fileImportSet{named: make(map[string]importRef)}
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		if spec.Name != nil {
			switch spec.Name.Name {
			case "_":
				set.blank = append(set.blank, path)
			case ".":
				set.dots = append(set.dots, path)
			default:
				set.named[spec.Name.Name] = importRef{path: path, alias: spec.Name.Name}
			}
			continue
		}
		set.named[defaultPackageName(path)] = importRef{path: path}
	}
	return set
}

// defaultPackageName guesses the package name an import path binds to when
// no alias is given: the last path element, skipping major-version suffixes
// like /v2. This matches the dominant ecosystem convention; packages that
// break it need an explicit alias to be referenced at all, which we then
// see directly.
func defaultPackageName(path string) string {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if len(parts) > 1 && len(last) > 1 && last[0] == 'v' {
		if _, err := strconv.Atoi(last[1:]); err == nil {
			last = parts[len(parts)-2]
		}
	}
	// gopkg.in-style version suffixes: "yaml.v3" binds as "yaml".
	if i := strings.LastIndexByte(last, '.'); i >= 0 && i+1 < len(last) && last[i+1] == 'v' {
		if _, err := strconv.Atoi(last[i+2:]); err == nil {
			last = last[:i]
		}
	}
	if i := strings.LastIndexByte(last, '-'); i >= 0 {
		last = last[i+1:]
	}
	return last
}

// isStdlibPath reports whether an import path belongs to the standard
// distribution. Stdlib paths have no dot in their first segment.
func isStdlibPath(path string) bool {
	first := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		first = path[:i]
	}
	return !strings.Contains(first, ".")
}

// classifyImport tags an import binding as stdlib, third-party, or
// user-module-level (a package inside the analyzed module, which the
// builder inlines rather than imports).
func classifyImport(ref importRef, modulePath string, members []string) *Symbol {
	kind := KindThirdParty
	switch {
	case modulePath != "" && (ref.path == modulePath || strings.HasPrefix(ref.path, modulePath+"/")):
		kind = KindUserModuleLevel
	case isStdlibPath(ref.path):
		kind = KindStdlibImport
	}
	return &Symbol{
		Name:       ref.alias,
		Kind:       kind,
		ImportPath: ref.path,
		Alias:      ref.alias,
		Members:    members,
	}
}

// resolveScope maps every free identifier read inside node to exactly one
// Symbol, resolving through the lexical chain: the callable's own signature
// bindings and scope-aware locals, the file's imports, the package scope,
// and finally the universe builtins.
//
// Description:
//
//	Pure function of the parsed sources; no side effects. Local bindings
//	are tracked per lexical block by the free walker, so an inner shadow
//	never hides an outer free use of the same name. Identifiers bound
//	only by a dot import are attributed to that import (the package is
//	emitted and versioned, though the member definition is external). An
//	identifier with no binding anywhere is a defect in the analyzed
//	program and fails with UnresolvableSymbolError.
func resolveScope(node ast.Node, ps *packageSources, file *ast.File, modulePath, qualifiedName string) ([]*Symbol, error) {
	params := paramNames(node)
	imports := fileImports(file)

	var symbols []*Symbol
	for _, u := range collectFree(node) {
		if params[u.name] {
			symbols = append(symbols, &Symbol{Name: u.name, Kind: KindParameter})
			continue
		}
		sym, err := resolveFree(u, ps, imports, modulePath, qualifiedName)
		if err != nil {
			return nil, err
		}
		if sym != nil {
			symbols = append(symbols, sym)
		}
	}

	// Side-effect-only imports in the defining file stay in the rendering
	// and must still be attributed to the correct module.
	for _, path := range imports.blank {
		symbols = append(symbols, classifyImport(importRef{path: path, alias: "_"}, modulePath, nil))
	}
	return symbols, nil
}

// resolveFree resolves a single non-local identifier.
func resolveFree(u use, ps *packageSources, imports fileImportSet, modulePath, qualifiedName string) (*Symbol, error) {
	if decl, ok := ps.lookup(u.name); ok {
		return &Symbol{Name: u.name, Kind: KindUserModuleLevel, Decl: decl, Members: u.members, pkg: ps}, nil
	}
	if ref, ok := imports.named[u.name]; ok {
		sym := classifyImport(ref, modulePath, u.members)
		sym.Name = u.name
		return sym, nil
	}
	if universeNames[u.name] {
		return &Symbol{Name: u.name, Kind: KindBuiltin}, nil
	}
	if len(imports.dots) > 0 {
		// Best-effort: a name visible only through a dot import belongs to
		// that package. Emit the import rather than failing.
		return classifyImport(importRef{path: imports.dots[0], alias: "."}, modulePath, nil), nil
	}
	return nil, &UnresolvableSymbolError{Name: u.name, QualifiedName: qualifiedName}
}
