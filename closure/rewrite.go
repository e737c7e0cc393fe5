// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"go/ast"

	"golang.org/x/tools/go/ast/astutil"
)

// rewriteSelectors replaces `alias.Member` selector expressions in node with
// plain `Member` identifiers, for every member in inlined. Inlining a
// same-module package moves its definitions into the rendering; references
// through the old package qualifier must follow.
func rewriteSelectors(node ast.Node, alias string, inlined map[string]bool) {
	if len(inlined) == 0 {
		return
	}
	astutil.Apply(node, func(c *astutil.Cursor) bool {
		sel, ok := c.Node().(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok || ident.Name != alias {
			return true
		}
		if inlined[sel.Sel.Name] {
			c.Replace(ast.NewIdent(sel.Sel.Name))
			return false
		}
		return true
	}, nil)
}
