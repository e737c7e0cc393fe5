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
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// packageSources holds the parsed source files of one package directory,
// plus indexes over its top-level declarations.
//
// Thread Safety: Immutable after loadPackageSources returns.
type packageSources struct {
	dir     string
	pkgName string
	fset    *token.FileSet

	// files maps absolute file path to its parsed file, in sorted order
	// via fileNames for deterministic iteration.
	files     map[string]*ast.File
	fileNames []string

	// funcs maps a top-level function name to its declaration.
	funcs map[string]*ast.FuncDecl

	// types maps a type name to its spec and owning GenDecl.
	types map[string]*typeDecl

	// values maps a const/var name to its spec and owning GenDecl.
	values map[string]*valueDecl

	// methods maps a receiver type name to its method declarations in
	// source order.
	methods map[string][]*ast.FuncDecl
}

// typeDecl pairs a type spec with the GenDecl that owns it.
type typeDecl struct {
	spec *ast.TypeSpec
	gen  *ast.GenDecl
}

// valueDecl pairs a const/var spec with the GenDecl that owns it.
type valueDecl struct {
	spec *ast.ValueSpec
	gen  *ast.GenDecl
}

// loadPackageSources parses every non-test .go file in dir and indexes the
// package's top-level declarations.
//
// Description:
//
//	Files are parsed with comments so doc comments can be captured for
//	description fields. When a directory contains multiple packages (e.g.
//	a main package next to a library), the group containing preferFile is
//	chosen; with no preference, the largest group wins.
//
// Inputs:
//
//	fset - Shared FileSet. All packages in one computation share it so a
//	       single printer configuration can render any node.
//	dir - Directory to parse.
//	preferFile - Absolute path of a file that must be in the chosen
//	       package group. May be empty.
//
// Outputs:
//
//	*packageSources - Parsed and indexed sources.
//	error - Non-nil if the directory cannot be read or no Go source parses.
func loadPackageSources(fset *token.FileSet, dir string, preferFile string) (*packageSources, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading package dir %s: %w", dir, err)
	}

	groups := make(map[string]map[string]*ast.File)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			// A single unparsable file should not sink the package.
			continue
		}
		pkg := file.Name.Name
		if groups[pkg] == nil {
			groups[pkg] = make(map[string]*ast.File)
		}
		groups[pkg][path] = file
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("no parsable Go source in %s", dir)
	}

	chosen := ""
	if preferFile != "" {
		for pkg, files := range groups {
			if _, ok := files[preferFile]; ok {
				chosen = pkg
				break
			}
		}
	}
	if chosen == "" {
		for pkg, files := range groups {
			if chosen == "" || len(files) > len(groups[chosen]) {
				chosen = pkg
			}
		}
	}

	ps := &packageSources{
		dir:     dir,
		pkgName: chosen,
		fset:    fset,
		files:   groups[chosen],
		funcs:   make(map[string]*ast.FuncDecl),
		types:   make(map[string]*typeDecl),
		values:  make(map[string]*valueDecl),
		methods: make(map[string][]*ast.FuncDecl),
	}
	for path := range ps.files {
		ps.fileNames = append(ps.fileNames, path)
	}
	sort.Strings(ps.fileNames)

	for _, path := range ps.fileNames {
		ps.indexFile(ps.files[path])
	}
	return ps, nil
}

// indexFile records the top-level declarations of one file.
func (ps *packageSources) indexFile(file *ast.File) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				ps.funcs[d.Name.Name] = d
				continue
			}
			if recv := receiverTypeName(d); recv != "" {
				ps.methods[recv] = append(ps.methods[recv], d)
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					ps.types[s.Name.Name] = &typeDecl{spec: s, gen: d}
				case *ast.ValueSpec:
					for _, name := range s.Names {
						ps.values[name.Name] = &valueDecl{spec: s, gen: d}
					}
				}
			}
		}
	}
}

// lookup returns the top-level declaration bound to name, if any.
// Functions shadow nothing: Go forbids duplicate top-level names.
func (ps *packageSources) lookup(name string) (ast.Node, bool) {
	if d, ok := ps.funcs[name]; ok {
		return d, true
	}
	if t, ok := ps.types[name]; ok {
		return t.spec, true
	}
	if v, ok := ps.values[name]; ok {
		return v.spec, true
	}
	return nil, false
}

// fileFor returns the parsed file containing node, resolved by position.
func (ps *packageSources) fileFor(node ast.Node) *ast.File {
	pos := ps.fset.Position(node.Pos())
	return ps.files[pos.Filename]
}

// declCovering returns the top-level declaration in file whose source range
// covers line. Used by the best-effort reverse lookup for nested function
// literals, whose runtime names do not match any top-level declaration.
func (ps *packageSources) declCovering(path string, line int) ast.Decl {
	file := ps.files[path]
	if file == nil {
		return nil
	}
	for _, decl := range file.Decls {
		start := ps.fset.Position(decl.Pos()).Line
		end := ps.fset.Position(decl.End()).Line
		if line >= start && line <= end {
			return decl
		}
	}
	return nil
}

// receiverTypeName extracts the receiver's base type name from a method
// declaration, unwrapping pointers and generic instantiations.
func receiverTypeName(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return ""
	}
	expr := d.Recv.List[0].Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}
