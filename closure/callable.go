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
	"go/token"
	"reflect"
	"runtime"
	"strings"
)

// target is a located callable: the declaration to render last, the
// innermost function node for signature hashing, and the simplified
// qualified name.
type target struct {
	// fn is set for function and method targets.
	fn *ast.FuncDecl

	// value is set for wrapped-value targets (package-level
	// `var X = Wrap(args...)(base)` declarations).
	value *valueDecl

	// valueName is the bound name for wrapped-value targets.
	valueName string

	// lit is the innermost function literal the live pointer resolved
	// into, when the target is a nested definition. May be nil.
	lit *ast.FuncLit

	qualifiedName string
	ps            *packageSources
	file          *ast.File
}

// doc returns the target declaration's doc comment group, if any.
func (t *target) doc() *ast.CommentGroup {
	switch {
	case t.fn != nil:
		return t.fn.Doc
	case t.value != nil:
		if t.value.spec.Doc != nil {
			return t.value.spec.Doc
		}
		return t.value.gen.Doc
	}
	return nil
}

// describeFunc resolves a live func value to its runtime name and defining
// source location.
func describeFunc(fn any) (name, file string, line int, err error) {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return "", "", 0, fmt.Errorf("closure: not a func value: %T", fn)
	}
	if v.IsNil() {
		return "", "", 0, fmt.Errorf("closure: nil func value")
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return "", "", 0, fmt.Errorf("closure: no runtime info for func value")
	}
	file, line = rf.FileLine(rf.Entry())
	return rf.Name(), file, line, nil
}

// splitRuntimeName splits a runtime function name into its package path and
// the dotted name chain inside that package.
//
// Examples:
//
//	"github.com/acme/app/pkg.Foo"         → "github.com/acme/app/pkg", ["Foo"]
//	"github.com/acme/app/pkg.Foo.func1"   → ..., ["Foo", "func1"]
//	"github.com/acme/app/pkg.(*T).Method" → ..., ["(*T)", "Method"]
//	"main.run"                            → "main", ["run"]
func splitRuntimeName(full string) (pkgPath string, chain []string) {
	tail := full
	prefix := ""
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		prefix = full[:i+1]
		tail = full[i+1:]
	}
	tail = stripInstantiation(tail)
	dot := strings.IndexByte(tail, '.')
	if dot < 0 {
		return prefix + tail, nil
	}
	pkgPath = prefix + tail[:dot]
	chain = strings.Split(tail[dot+1:], ".")
	// Method values carry a -fm suffix on the final element.
	if n := len(chain); n > 0 {
		chain[n-1] = strings.TrimSuffix(chain[n-1], "-fm")
	}
	return pkgPath, chain
}

// stripInstantiation removes generic instantiation markers like
// "F[go.shape.int]" which would otherwise confuse dot-splitting.
func stripInstantiation(s string) string {
	for {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			return s
		}
		depth := 0
		closeAt := -1
		for i := open; i < len(s); i++ {
			switch s[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					closeAt = i
				}
			}
			if closeAt >= 0 {
				break
			}
		}
		if closeAt < 0 {
			return s[:open]
		}
		s = s[:open] + s[closeAt+1:]
	}
}

// locateTarget finds the source declaration behind a runtime name chain.
//
// Description:
//
//	Named functions and methods resolve directly against the package
//	indexes. Nested literals (trailing funcN elements) need the
//	best-effort reverse lookup: first, scan for a unique package-level
//	var whose initializer applies the enclosing function — the wrapped
//	value ("decorator") case — and treat that declaration as the target;
//	otherwise hoist to the enclosing top-level declaration, locating the
//	innermost literal covering the reported line for signature purposes.
//	If even the positional scan fails, the enclosing declaration alone is
//	used. This lookup degrades, it never crashes.
func locateTarget(ps *packageSources, chain []string, file string, line int) (*target, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("empty symbol chain")
	}

	var base *ast.FuncDecl
	named := ""
	rest := chain[1:]

	head := chain[0]
	if recv, ok := receiverFromSegment(head, ps); ok && len(chain) > 1 {
		method := chain[1]
		rest = chain[2:]
		for _, m := range ps.methods[recv] {
			if m.Name.Name == method {
				base = m
				named = method
				break
			}
		}
		if base == nil {
			return nil, fmt.Errorf("method %s.%s not found in %s", recv, method, ps.dir)
		}
	} else if d, ok := ps.funcs[head]; ok {
		base = d
		named = head
	}

	if base == nil {
		// Compiler-generated or unindexed name: fall back to position.
		if decl, ok := ps.declCovering(file, line).(*ast.FuncDecl); ok && decl != nil {
			t := &target{fn: decl, qualifiedName: decl.Name.Name, ps: ps, file: ps.fileFor(decl)}
			t.lit = funcLitCovering(ps.fset, decl, line)
			return t, nil
		}
		return nil, fmt.Errorf("no declaration found for %s at %s:%d", head, file, line)
	}

	nested := false
	for _, seg := range rest {
		if strings.HasPrefix(seg, "func") {
			nested = true
		}
	}

	if nested {
		if vd, name := findWrapperValue(ps, named); vd != nil {
			return &target{value: vd, valueName: name, qualifiedName: name, ps: ps, file: ps.fileFor(vd.spec)}, nil
		}
		t := &target{fn: base, qualifiedName: named, ps: ps, file: ps.fileFor(base)}
		t.lit = funcLitCovering(ps.fset, base, line)
		return t, nil
	}

	return &target{fn: base, qualifiedName: named, ps: ps, file: ps.fileFor(base)}, nil
}

// receiverFromSegment interprets a chain head as a method receiver:
// "(*T)" for pointer receivers, or a known type name for value receivers.
func receiverFromSegment(seg string, ps *packageSources) (string, bool) {
	if strings.HasPrefix(seg, "(*") && strings.HasSuffix(seg, ")") {
		return seg[2 : len(seg)-1], true
	}
	if _, ok := ps.types[seg]; ok {
		return seg, true
	}
	return "", false
}

// funcLitCovering returns the innermost function literal in decl whose
// source range covers line, or nil.
func funcLitCovering(fset *token.FileSet, decl *ast.FuncDecl, line int) *ast.FuncLit {
	var best *ast.FuncLit
	ast.Inspect(decl, func(n ast.Node) bool {
		lit, ok := n.(*ast.FuncLit)
		if !ok {
			return true
		}
		start := fset.Position(lit.Pos()).Line
		end := fset.Position(lit.End()).Line
		if line >= start && line <= end {
			best = lit // keep descending; inner literals overwrite
		}
		return true
	})
	return best
}

// findWrapperValue scans the package's top-level var declarations for one
// whose initializer references baseName. A unique match is the wrapped
// value the live pointer came from; zero or multiple matches mean the scan
// is inconclusive and the caller falls back to the enclosing declaration.
func findWrapperValue(ps *packageSources, baseName string) (*valueDecl, string) {
	var found *valueDecl
	name := ""
	matches := 0
	for _, path := range ps.fileNames {
		for _, decl := range ps.files[path].Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}
			for _, spec := range gen.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || len(vs.Values) == 0 || len(vs.Names) != 1 {
					continue
				}
				if referencesName(vs.Values[0], baseName) {
					matches++
					found = &valueDecl{spec: vs, gen: gen}
					name = vs.Names[0].Name
				}
			}
		}
	}
	if matches != 1 {
		return nil, ""
	}
	return found, name
}

// referencesName reports whether expr mentions ident name.
func referencesName(expr ast.Expr, name string) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		if ident, ok := n.(*ast.Ident); ok && ident.Name == name {
			found = true
		}
		return !found
	})
	return found
}
