// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"go/ast"
	"go/token"
)

// use is one free-identifier candidate: the identifier as written, plus the
// selector members accessed through it (for `pkg.Member` chains).
type use struct {
	name    string
	members []string
}

// freeWalker performs a scope-aware walk over a declaration, recording every
// identifier that no enclosing lexical binding covers, in first-use order.
//
// Description:
//
//	Bindings live on a scope stack with one scope per block-like construct
//	(blocks, if/for/range/switch headers, case and comm clauses, function
//	literals), popped on exit. A name bound inside an inner block therefore
//	cannot hide a genuinely free use of the same name outside that block.
//	Identifiers that can never be references are not walked at all:
//	selector members (only the base of `a.b.c` can be free), declared
//	names, field names, labels, and struct-literal keys. Map and array
//	literal keys ARE walked; they are real expressions.
type freeWalker struct {
	scopes []map[string]bool
	uses   []use
	index  map[string]int
}

// collectFree returns node's free identifiers in first-use order. Names
// bound by the outermost declaration's own signature (parameters, named
// results, receivers, type parameters) are reported too; resolveScope
// classifies those as KindParameter via paramNames.
func collectFree(node ast.Node) []use {
	w := &freeWalker{index: make(map[string]int)}
	w.push()
	switch t := node.(type) {
	case *ast.FuncDecl:
		w.walkFieldList(t.Recv, false)
		w.walkFuncType(t.Type, false)
		if t.Body != nil {
			w.walkBlock(t.Body)
		}
	case *ast.FuncLit:
		w.walkFuncType(t.Type, false)
		if t.Body != nil {
			w.walkBlock(t.Body)
		}
	case *ast.TypeSpec:
		w.walkFieldList(t.TypeParams, false)
		w.walkExpr(t.Type)
	case *ast.ValueSpec:
		w.walkValueSpec(t, false)
	case *ast.GenDecl:
		for _, spec := range t.Specs {
			switch s := spec.(type) {
			case *ast.ValueSpec:
				w.walkValueSpec(s, false)
			case *ast.TypeSpec:
				w.walkExpr(s.Type)
			}
		}
	default:
		if e, ok := node.(ast.Expr); ok {
			w.walkExpr(e)
		}
	}
	w.pop()
	return w.uses
}

func (w *freeWalker) push() { w.scopes = append(w.scopes, nil) }
func (w *freeWalker) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *freeWalker) bind(name string) {
	if name == "" || name == "_" {
		return
	}
	top := len(w.scopes) - 1
	if w.scopes[top] == nil {
		w.scopes[top] = make(map[string]bool)
	}
	w.scopes[top][name] = true
}

func (w *freeWalker) boundAnywhere(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i][name] {
			return true
		}
	}
	return false
}

func (w *freeWalker) record(name string, members ...string) {
	if name == "" || name == "_" || w.boundAnywhere(name) {
		return
	}
	if i, ok := w.index[name]; ok {
		w.uses[i].members = mergeMembers(w.uses[i].members, members)
		return
	}
	w.index[name] = len(w.uses)
	w.uses = append(w.uses, use{name: name, members: mergeMembers(nil, members)})
}

func (w *freeWalker) walkBlock(b *ast.BlockStmt) {
	w.push()
	for _, s := range b.List {
		w.walkStmt(s)
	}
	w.pop()
}

func (w *freeWalker) walkStmt(s ast.Stmt) {
	switch t := s.(type) {
	case nil:
	case *ast.ExprStmt:
		w.walkExpr(t.X)
	case *ast.SendStmt:
		w.walkExpr(t.Chan)
		w.walkExpr(t.Value)
	case *ast.IncDecStmt:
		w.walkExpr(t.X)
	case *ast.AssignStmt:
		// Right-hand sides evaluate before the binding takes effect.
		for _, rhs := range t.Rhs {
			w.walkExpr(rhs)
		}
		for _, lhs := range t.Lhs {
			if ident, ok := lhs.(*ast.Ident); ok && t.Tok == token.DEFINE {
				w.bind(ident.Name)
				continue
			}
			w.walkExpr(lhs)
		}
	case *ast.DeclStmt:
		if gen, ok := t.Decl.(*ast.GenDecl); ok {
			for _, spec := range gen.Specs {
				switch sp := spec.(type) {
				case *ast.ValueSpec:
					w.walkValueSpec(sp, true)
				case *ast.TypeSpec:
					w.bind(sp.Name.Name)
					w.walkExpr(sp.Type)
				}
			}
		}
	case *ast.ReturnStmt:
		for _, r := range t.Results {
			w.walkExpr(r)
		}
	case *ast.GoStmt:
		w.walkExpr(t.Call)
	case *ast.DeferStmt:
		w.walkExpr(t.Call)
	case *ast.BlockStmt:
		w.walkBlock(t)
	case *ast.IfStmt:
		w.push()
		w.walkStmt(t.Init)
		w.walkExpr(t.Cond)
		w.walkBlock(t.Body)
		w.walkStmt(t.Else)
		w.pop()
	case *ast.ForStmt:
		w.push()
		w.walkStmt(t.Init)
		w.walkExpr(t.Cond)
		w.walkStmt(t.Post)
		w.walkBlock(t.Body)
		w.pop()
	case *ast.RangeStmt:
		w.push()
		w.walkExpr(t.X)
		w.walkRangeVar(t.Key, t.Tok)
		w.walkRangeVar(t.Value, t.Tok)
		w.walkBlock(t.Body)
		w.pop()
	case *ast.SwitchStmt:
		w.push()
		w.walkStmt(t.Init)
		w.walkExpr(t.Tag)
		for _, clause := range t.Body.List {
			w.walkStmt(clause)
		}
		w.pop()
	case *ast.TypeSwitchStmt:
		w.push()
		w.walkStmt(t.Init)
		w.walkStmt(t.Assign)
		for _, clause := range t.Body.List {
			w.walkStmt(clause)
		}
		w.pop()
	case *ast.CaseClause:
		w.push()
		for _, e := range t.List {
			w.walkExpr(e)
		}
		for _, st := range t.Body {
			w.walkStmt(st)
		}
		w.pop()
	case *ast.SelectStmt:
		for _, clause := range t.Body.List {
			w.walkStmt(clause)
		}
	case *ast.CommClause:
		w.push()
		w.walkStmt(t.Comm)
		for _, st := range t.Body {
			w.walkStmt(st)
		}
		w.pop()
	case *ast.LabeledStmt:
		// The label itself is not a value reference.
		w.walkStmt(t.Stmt)
	case *ast.BranchStmt:
	case *ast.EmptyStmt:
	}
}

func (w *freeWalker) walkExpr(e ast.Expr) {
	switch t := e.(type) {
	case nil:
	case *ast.Ident:
		w.record(t.Name)
	case *ast.SelectorExpr:
		if base, ok := t.X.(*ast.Ident); ok {
			w.record(base.Name, t.Sel.Name)
			return
		}
		w.walkExpr(t.X)
	case *ast.BasicLit:
	case *ast.FuncLit:
		w.push()
		w.walkFuncType(t.Type, true)
		if t.Body != nil {
			w.walkBlock(t.Body)
		}
		w.pop()
	case *ast.CompositeLit:
		w.walkCompositeLit(t, nil)
	case *ast.ParenExpr:
		w.walkExpr(t.X)
	case *ast.IndexExpr:
		w.walkExpr(t.X)
		w.walkExpr(t.Index)
	case *ast.IndexListExpr:
		w.walkExpr(t.X)
		for _, i := range t.Indices {
			w.walkExpr(i)
		}
	case *ast.SliceExpr:
		w.walkExpr(t.X)
		w.walkExpr(t.Low)
		w.walkExpr(t.High)
		w.walkExpr(t.Max)
	case *ast.TypeAssertExpr:
		w.walkExpr(t.X)
		w.walkExpr(t.Type)
	case *ast.CallExpr:
		w.walkExpr(t.Fun)
		for _, a := range t.Args {
			w.walkExpr(a)
		}
	case *ast.StarExpr:
		w.walkExpr(t.X)
	case *ast.UnaryExpr:
		w.walkExpr(t.X)
	case *ast.BinaryExpr:
		w.walkExpr(t.X)
		w.walkExpr(t.Y)
	case *ast.KeyValueExpr:
		// Outside composite literals both sides are plain expressions.
		w.walkExpr(t.Key)
		w.walkExpr(t.Value)
	case *ast.ArrayType:
		w.walkExpr(t.Len)
		w.walkExpr(t.Elt)
	case *ast.StructType:
		w.walkFieldList(t.Fields, false)
	case *ast.FuncType:
		w.walkFuncType(t, false)
	case *ast.InterfaceType:
		w.walkFieldList(t.Methods, false)
	case *ast.MapType:
		w.walkExpr(t.Key)
		w.walkExpr(t.Value)
	case *ast.ChanType:
		w.walkExpr(t.Value)
	case *ast.Ellipsis:
		w.walkExpr(t.Elt)
	}
}

// walkCompositeLit distinguishes struct-style keys (field names, never
// references) from map and array keys (real expressions that must be
// walked). Untyped nested literals inherit the element type of the
// enclosing map or array literal.
func (w *freeWalker) walkCompositeLit(lit *ast.CompositeLit, hint ast.Expr) {
	typ := lit.Type
	if typ == nil {
		typ = hint
	}
	if lit.Type != nil {
		w.walkExpr(lit.Type)
	}
	var valueHint ast.Expr
	exprKeys := false
	switch t := typ.(type) {
	case *ast.MapType:
		exprKeys = true
		valueHint = t.Value
	case *ast.ArrayType:
		exprKeys = true
		valueHint = t.Elt
	}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			w.walkLitValue(elt, valueHint)
			continue
		}
		if _, isIdent := kv.Key.(*ast.Ident); exprKeys || !isIdent {
			w.walkExpr(kv.Key)
		}
		w.walkLitValue(kv.Value, valueHint)
	}
}

func (w *freeWalker) walkLitValue(e ast.Expr, hint ast.Expr) {
	if inner, ok := e.(*ast.CompositeLit); ok {
		w.walkCompositeLit(inner, hint)
		return
	}
	w.walkExpr(e)
}

// walkValueSpec walks a var/const spec. The declared names bind only for
// statement-level declarations; for the spec under analysis itself they are
// left unbound so self-references resolve through the package scope.
func (w *freeWalker) walkValueSpec(s *ast.ValueSpec, bindNames bool) {
	w.walkExpr(s.Type)
	for _, v := range s.Values {
		w.walkExpr(v)
	}
	if bindNames {
		for _, name := range s.Names {
			w.bind(name.Name)
		}
	}
}

// walkRangeVar binds a defined range variable, or walks it as an assignment
// target.
func (w *freeWalker) walkRangeVar(e ast.Expr, tok token.Token) {
	if e == nil {
		return
	}
	if ident, ok := e.(*ast.Ident); ok && tok == token.DEFINE {
		w.bind(ident.Name)
		return
	}
	w.walkExpr(e)
}

// walkFuncType walks parameter, result, and type-parameter types. Names
// bind only when the func type heads a function literal; in plain type
// expressions they are declarations, not bindings.
func (w *freeWalker) walkFuncType(ft *ast.FuncType, bindNames bool) {
	if ft == nil {
		return
	}
	w.walkFieldList(ft.TypeParams, bindNames)
	w.walkFieldList(ft.Params, bindNames)
	w.walkFieldList(ft.Results, bindNames)
}

func (w *freeWalker) walkFieldList(fl *ast.FieldList, bindNames bool) {
	if fl == nil {
		return
	}
	for _, f := range fl.List {
		w.walkExpr(f.Type)
		if bindNames {
			for _, name := range f.Names {
				w.bind(name.Name)
			}
		}
	}
}

// mergeMembers appends the unseen entries of add to dst, preserving order.
func mergeMembers(dst, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, m := range dst {
		seen[m] = true
	}
	for _, m := range add {
		if !seen[m] {
			seen[m] = true
			dst = append(dst, m)
		}
	}
	return dst
}

// paramNames returns every name bound by a callable's own signature:
// receiver, parameters, named results, and type parameters.
func paramNames(node ast.Node) map[string]bool {
	params := make(map[string]bool)
	switch t := node.(type) {
	case *ast.FuncDecl:
		if t.Recv != nil {
			for name := range fieldListNames(t.Recv) {
				params[name] = true
			}
		}
		if t.Type.TypeParams != nil {
			for name := range fieldListNames(t.Type.TypeParams) {
				params[name] = true
			}
		}
		for name := range fieldListNames(t.Type.Params) {
			params[name] = true
		}
		for name := range fieldListNames(t.Type.Results) {
			params[name] = true
		}
	case *ast.FuncLit:
		for name := range fieldListNames(t.Type.Params) {
			params[name] = true
		}
		for name := range fieldListNames(t.Type.Results) {
			params[name] = true
		}
	}
	return params
}

// fieldListNames returns the set of names declared by a field list.
func fieldListNames(fields *ast.FieldList) map[string]bool {
	names := make(map[string]bool)
	if fields == nil {
		return names
	}
	for _, field := range fields.List {
		for _, name := range field.Names {
			if name.Name != "_" {
				names[name.Name] = true
			}
		}
	}
	return names
}
