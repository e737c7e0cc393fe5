// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package closure computes the minimal, self-contained, deterministically
// formatted source representation of a live Go callable: everything the
// callable transitively needs (helper functions, types, module-level
// constants, wrapping declarations), with external dependencies classified
// and resolved to module versions, hashed into a stable content identity.
package closure

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Engine computes closures. The zero value is not usable; construct with
// New.
//
// Thread Safety:
//
//	Engine is safe for concurrent use. Each computation operates on its
//	own parse state.
type Engine struct {
	formatter   Formatter
	resolver    ModuleResolver
	logger      *slog.Logger
	includeDocs *bool
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithFormatter replaces the default in-process formatter. Tests use this
// to inject failing formatters; deployments may point it at an external
// binary via ExecFormatter.
func WithFormatter(f Formatter) Option {
	return func(e *Engine) {
		if f != nil {
			e.formatter = f
		}
	}
}

// WithModuleResolver replaces the default module resolver (build info with
// go.mod fallback).
func WithModuleResolver(r ModuleResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIncludeDocComments overrides the CODESEAL_INCLUDE_DOC_COMMENTS
// environment toggle for this engine.
func WithIncludeDocComments(include bool) Option {
	return func(e *Engine) { e.includeDocs = &include }
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		formatter: GoFormatter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromFunc computes the closure of a live func value.
//
// Description:
//
//	The func value's entry PC is resolved to its runtime name and
//	defining source location; the defining package is parsed and the
//	dependency graph rooted at the callable is walked, inlining
//	user-defined dependencies and recording third-party ones.
//
// Outputs:
//
//	*Closure - The computed artifact.
//	error - *UnresolvableSymbolError for a defect in the analyzed program,
//	        *ClosureComputationError when source or formatting is
//	        unavailable. Both are non-fatal to the original program.
func (e *Engine) FromFunc(ctx context.Context, fn any) (*Closure, error) {
	fullName, file, line, err := describeFunc(fn)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: fmt.Sprintf("%T", fn), Err: err}
	}
	pkgPath, chain := splitRuntimeName(fullName)
	qualified := innermostName(chain, fullName)

	if _, statErr := os.Stat(file); statErr != nil {
		return nil, &ClosureComputationError{
			QualifiedName: qualified,
			Err:           fmt.Errorf("source for %s not available: %w", pkgPath, statErr),
		}
	}

	st, err := e.newBuildState(filepath.Dir(file))
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: qualified, Err: err}
	}
	ps, err := st.loadPackage(filepath.Dir(file), file)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: qualified, Err: err}
	}
	t, err := locateTarget(ps, chain, file, line)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: qualified, Err: err}
	}
	return e.build(ctx, st, t)
}

// FromSource computes the closure of a named top-level function, method
// ("Type.Method"), or wrapped package var declared in dir. This is the
// static entry point used by the CLI; no live pointer is required.
func (e *Engine) FromSource(ctx context.Context, dir, name string) (*Closure, error) {
	st, err := e.newBuildState(dir)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: name, Err: err}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: name, Err: err}
	}
	ps, err := st.loadPackage(abs, "")
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: name, Err: err}
	}

	var t *target
	switch {
	case strings.Contains(name, "."):
		parts := strings.SplitN(name, ".", 2)
		for _, m := range ps.methods[parts[0]] {
			if m.Name.Name == parts[1] {
				t = &target{fn: m, qualifiedName: parts[1], ps: ps, file: ps.fileFor(m)}
				break
			}
		}
	default:
		if d, ok := ps.funcs[name]; ok {
			t = &target{fn: d, qualifiedName: name, ps: ps, file: ps.fileFor(d)}
		} else if v, ok := ps.values[name]; ok {
			t = &target{value: v, valueName: name, qualifiedName: name, ps: ps, file: ps.fileFor(v.spec)}
		}
	}
	if t == nil {
		return nil, &ClosureComputationError{
			QualifiedName: name,
			Err:           fmt.Errorf("symbol %s not found in %s", name, dir),
		}
	}
	return e.build(ctx, st, t)
}

// innermostName returns the simplified qualified name: the last named
// (non-generated) element of the runtime name chain.
func innermostName(chain []string, fallback string) string {
	for i := len(chain) - 1; i >= 0; i-- {
		seg := chain[i]
		if strings.HasPrefix(seg, "func") || strings.HasPrefix(seg, "(") || strings.HasPrefix(seg, "gowrap") {
			continue
		}
		return seg
	}
	if len(chain) > 0 {
		return chain[len(chain)-1]
	}
	return fallback
}

// buildState holds mutable state during a single closure computation.
type buildState struct {
	engine     *Engine
	fset       *token.FileSet
	resolver   ModuleResolver
	modulePath string
	moduleRoot string

	pkgs map[string]*packageSources // dir → parsed package

	imports    map[string]importRef // dedupe key → import
	globals    []string             // const/var/type renderings, first-render order
	defs       []string             // function/type renderings, post-order
	visited    map[ast.Node]bool
	visitedGen map[*ast.GenDecl]bool
	deps       map[string]PackageDependency
}

// newBuildState constructs per-computation state, resolving the module
// context from dir when the engine has no injected resolver.
func (e *Engine) newBuildState(dir string) (*buildState, error) {
	resolver := e.resolver
	if resolver == nil {
		var err error
		resolver, err = DefaultResolver(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving module context: %w", err)
		}
	}
	return &buildState{
		engine:     e,
		fset:       token.NewFileSet(),
		resolver:   resolver,
		modulePath: resolver.MainModule(),
		moduleRoot: resolver.ModuleRoot(),
		pkgs:       make(map[string]*packageSources),
		imports:    make(map[string]importRef),
		visited:    make(map[ast.Node]bool),
		visitedGen: make(map[*ast.GenDecl]bool),
		deps:       make(map[string]PackageDependency),
	}, nil
}

// loadPackage parses and caches the package in dir.
func (st *buildState) loadPackage(dir, preferFile string) (*packageSources, error) {
	if ps, ok := st.pkgs[dir]; ok {
		return ps, nil
	}
	ps, err := loadPackageSources(st.fset, dir, preferFile)
	if err != nil {
		return nil, err
	}
	st.pkgs[dir] = ps
	return ps, nil
}

// build walks the dependency graph rooted at t and produces the normalized,
// hashed Closure.
func (e *Engine) build(ctx context.Context, st *buildState, t *target) (c *Closure, err error) {
	start := time.Now()
	ctx, span := startComputeSpan(ctx, t.qualifiedName)
	defer func() {
		// AST surgery on pathological inputs must degrade, not crash the
		// caller's program.
		if r := recover(); r != nil {
			err = &ClosureComputationError{QualifiedName: t.qualifiedName, Err: fmt.Errorf("panic: %v", r)}
		}
		finishComputeSpan(span, c, err)
		recordCompute(time.Since(start), err)
	}()

	doc := ""
	if group := t.doc(); group != nil {
		doc = strings.TrimSpace(group.Text())
	}

	targetText, err := st.renderTarget(t)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: t.qualifiedName, Err: err}
	}
	if doc != "" {
		if e.docCommentsIncluded() {
			targetText = formatDocComment(doc) + targetText
		} else {
			// Placeholder marker: documentation was stripped here but is
			// still carried on the artifact's Doc field.
			targetText = "// ...\n" + targetText
		}
	}

	assembled := st.assemble(t.ps.pkgName, targetText)
	formatted, err := e.formatter.Format(ctx, []byte(assembled))
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: t.qualifiedName, Err: err}
	}
	code := stripPackageClause(string(formatted), t.ps.pkgName)

	signature, err := st.renderSignature(t)
	if err != nil {
		return nil, &ClosureComputationError{QualifiedName: t.qualifiedName, Err: err}
	}

	deps := make(map[string]PackageDependency, len(st.deps))
	for name, dep := range st.deps {
		deps[name] = dep
	}

	return &Closure{
		Name:          t.qualifiedName,
		Signature:     signature,
		Doc:           doc,
		Code:          code,
		Hash:          hashText(code),
		SignatureHash: hashText(signature),
		Dependencies:  deps,
	}, nil
}

// docCommentsIncluded resolves the doc-comment toggle: engine option first,
// then the CODESEAL_INCLUDE_DOC_COMMENTS environment variable.
func (e *Engine) docCommentsIncluded() bool {
	if e.includeDocs != nil {
		return *e.includeDocs
	}
	switch strings.ToLower(os.Getenv("CODESEAL_INCLUDE_DOC_COMMENTS")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// renderTarget expands the target's dependency graph and renders the target
// declaration itself (which the assembler places last).
func (st *buildState) renderTarget(t *target) (string, error) {
	switch {
	case t.fn != nil:
		// The target renders last; mark it visited so reaching it again
		// through its receiver type's method set cannot duplicate it.
		st.visited[t.fn] = true
		if err := st.expandNode(t.fn, t.ps, t.file, t.qualifiedName); err != nil {
			return "", err
		}
		return st.renderNode(t.fn)
	case t.value != nil:
		st.visited[t.value.spec] = true
		if err := st.expandNode(t.value.spec, t.ps, t.file, t.qualifiedName); err != nil {
			return "", err
		}
		text, err := st.renderNode(t.value.spec)
		if err != nil {
			return "", err
		}
		return "var " + text, nil
	}
	return "", fmt.Errorf("target has no declaration")
}

// renderSignature renders the declaration header hashed into SignatureHash:
// receiver, name, and parameter/return types, with the body elided. Two
// callables whose headers print identically share a signature hash even
// when their bodies (and content hashes) differ.
func (st *buildState) renderSignature(t *target) (string, error) {
	switch {
	case t.lit != nil:
		header := &ast.FuncDecl{Name: ast.NewIdent(t.qualifiedName), Type: t.lit.Type}
		return st.renderNode(header)
	case t.fn != nil:
		header := &ast.FuncDecl{Recv: t.fn.Recv, Name: t.fn.Name, Type: t.fn.Type}
		return st.renderNode(header)
	case t.value != nil:
		text, err := st.renderNode(t.value.spec)
		if err != nil {
			return "", err
		}
		return "var " + text, nil
	}
	return "", fmt.Errorf("target has no declaration")
}

// expandNode resolves node's free identifiers, recursively inlines
// user-defined dependencies (post-order), records imports and third-party
// dependencies, and rewrites inlined cross-package selectors to simple
// names.
func (st *buildState) expandNode(node ast.Node, ps *packageSources, file *ast.File, qualifiedName string) error {
	symbols, err := resolveScope(node, ps, file, st.modulePath, qualifiedName)
	if err != nil {
		return err
	}

	for _, sym := range symbols {
		switch sym.Kind {
		case KindParameter, KindBuiltin, KindUserNested:
			// Referenced by name only; nothing to render.
		case KindStdlibImport:
			st.addImport(sym.ImportPath, sym.Alias)
		case KindThirdParty:
			st.addImport(sym.ImportPath, sym.Alias)
			st.addDependency(sym.ImportPath)
		case KindUserModuleLevel:
			if sym.ImportPath != "" {
				if err := st.expandUserPackage(node, sym, qualifiedName); err != nil {
					return err
				}
				continue
			}
			if err := st.expandDecl(sym.Decl, sym.pkg, qualifiedName); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unhandled symbol kind %s for %q", sym.Kind, sym.Name)
		}
	}
	return nil
}

// expandUserPackage inlines the referenced members of a same-module package
// and rewrites the consuming node's qualified references to simple names.
// The user import itself is dropped from the rendering.
func (st *buildState) expandUserPackage(consumer ast.Node, sym *Symbol, qualifiedName string) error {
	rel := strings.TrimPrefix(strings.TrimPrefix(sym.ImportPath, st.modulePath), "/")
	if st.moduleRoot == "" {
		st.engine.logger.Debug("module root unknown; leaving user import opaque",
			"import", sym.ImportPath)
		st.addImport(sym.ImportPath, sym.Alias)
		return nil
	}
	dir := filepath.Join(st.moduleRoot, filepath.FromSlash(rel))
	other, err := st.loadPackage(dir, "")
	if err != nil {
		return fmt.Errorf("loading %s: %w", sym.ImportPath, err)
	}

	inlined := make(map[string]bool, len(sym.Members))
	for _, member := range sym.Members {
		decl, ok := other.lookup(member)
		if !ok {
			st.engine.logger.Debug("member not found in user package; skipping",
				"package", sym.ImportPath, "member", member)
			continue
		}
		if err := st.expandDecl(decl, other, qualifiedName); err != nil {
			return err
		}
		inlined[member] = true
	}
	rewriteSelectors(consumer, sym.Name, inlined)
	return nil
}

// expandDecl renders one user-defined declaration after expanding its own
// dependencies. Memoized by declaration identity: a symbol reached through
// multiple aliases renders exactly once, and cycles terminate.
func (st *buildState) expandDecl(decl ast.Node, ps *packageSources, qualifiedName string) error {
	if st.visited[decl] {
		return nil
	}
	st.visited[decl] = true
	file := ps.fileFor(decl)

	switch d := decl.(type) {
	case *ast.FuncDecl:
		if err := st.expandNode(d, ps, file, qualifiedName); err != nil {
			return err
		}
		text, err := st.renderNode(d)
		if err != nil {
			return err
		}
		st.defs = append(st.defs, text)

	case *ast.TypeSpec:
		if err := st.expandNode(d, ps, file, qualifiedName); err != nil {
			return err
		}
		text, err := st.renderNode(d)
		if err != nil {
			return err
		}
		st.defs = append(st.defs, "type "+text)
		// A type travels with its method set, like a class body.
		for _, method := range ps.methods[d.Name.Name] {
			if err := st.expandDecl(method, ps, qualifiedName); err != nil {
				return err
			}
		}

	case *ast.ValueSpec:
		gen := st.owningGenDecl(d, ps)
		if gen != nil && usesIota(gen) {
			// Slicing one spec out of an iota group would change the
			// constant values; the whole group renders together.
			if st.visitedGen[gen] {
				return nil
			}
			st.visitedGen[gen] = true
			if err := st.expandNode(gen, ps, file, qualifiedName); err != nil {
				return err
			}
			text, err := st.renderNode(gen)
			if err != nil {
				return err
			}
			st.globals = append(st.globals, text)
			return nil
		}
		if err := st.expandNode(d, ps, file, qualifiedName); err != nil {
			return err
		}
		text, err := st.renderNode(d)
		if err != nil {
			return err
		}
		keyword := "var"
		if gen != nil && gen.Tok == token.CONST {
			keyword = "const"
		}
		st.globals = append(st.globals, keyword+" "+text)

	default:
		return fmt.Errorf("unsupported declaration kind %T", decl)
	}
	return nil
}

// owningGenDecl finds the GenDecl that owns spec.
func (st *buildState) owningGenDecl(spec *ast.ValueSpec, ps *packageSources) *ast.GenDecl {
	for _, name := range spec.Names {
		if vd, ok := ps.values[name.Name]; ok && vd.spec == spec {
			return vd.gen
		}
	}
	return nil
}

// usesIota reports whether any spec in the group references iota.
func usesIota(gen *ast.GenDecl) bool {
	found := false
	ast.Inspect(gen, func(n ast.Node) bool {
		if ident, ok := n.(*ast.Ident); ok && ident.Name == "iota" {
			found = true
		}
		return !found
	})
	return found
}

// addImport records an import for the rendered preamble. Key includes the
// alias so two aliases of one path each keep their binding.
func (st *buildState) addImport(path, alias string) {
	st.imports[alias+"\x00"+path] = importRef{path: path, alias: alias}
}

// addDependency resolves and records the module owning importPath. Modules
// with no resolvable version are silently omitted.
func (st *buildState) addDependency(importPath string) {
	dep, ok := st.resolver.Resolve(importPath)
	if !ok {
		st.engine.logger.Debug("no module resolution; omitting dependency entry",
			"import", importPath)
		return
	}
	st.deps[dep.Name] = dep
}

// assemble concatenates the rendering in dependency order: imports first
// (sorted by path for hash stability), then module-level constants and type
// aliases in first-render order, then definitions in post-order, then the
// target last. A package clause is prepended so the formatter sees a
// complete file; it is stripped again after formatting.
func (st *buildState) assemble(pkgName, targetText string) string {
	var b strings.Builder
	b.WriteString("package ")
	b.WriteString(pkgName)
	b.WriteString("\n\n")

	if len(st.imports) > 0 {
		refs := make([]importRef, 0, len(st.imports))
		for _, ref := range st.imports {
			refs = append(refs, ref)
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].path != refs[j].path {
				return refs[i].path < refs[j].path
			}
			return refs[i].alias < refs[j].alias
		})
		b.WriteString("import (\n")
		for _, ref := range refs {
			b.WriteString("\t")
			if ref.alias != "" {
				b.WriteString(ref.alias)
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%q\n", ref.path)
		}
		b.WriteString(")\n\n")
	}

	for _, global := range st.globals {
		b.WriteString(global)
		b.WriteString("\n\n")
	}
	for _, def := range st.defs {
		b.WriteString(def)
		b.WriteString("\n\n")
	}
	b.WriteString(targetText)
	b.WriteString("\n")
	return b.String()
}

// renderNode prints an AST node with the computation's FileSet. Comments
// are intentionally not printed: the rendering is the normalization input,
// and doc comments are handled separately by the toggle.
func (st *buildState) renderNode(node ast.Node) (string, error) {
	var b strings.Builder
	if err := format.Node(&b, st.fset, node); err != nil {
		return "", fmt.Errorf("rendering %T: %w", node, err)
	}
	return b.String(), nil
}

// stripPackageClause removes the synthetic package clause added for
// formatting.
func stripPackageClause(code, pkgName string) string {
	code = strings.TrimPrefix(code, "package "+pkgName+"\n")
	code = strings.TrimLeft(code, "\n")
	return strings.TrimRight(code, "\n") + "\n"
}

// formatDocComment renders doc text back into line-comment form for the
// include-docs mode.
func formatDocComment(doc string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		if line == "" {
			b.WriteString("//\n")
			continue
		}
		b.WriteString("// ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// hashText returns the hex SHA-256 digest of text.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
