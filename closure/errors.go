// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import "fmt"

// UnresolvableSymbolError reports a free identifier with no binding anywhere
// in the resolved scope chain (enclosing literals, file imports, package
// scope, universe builtins).
//
// Description:
//
//	This indicates a genuine defect in the analyzed program source, not a
//	transient condition. Callers should not retry.
type UnresolvableSymbolError struct {
	// Name is the identifier that could not be resolved.
	Name string

	// QualifiedName is the callable being processed when resolution failed.
	QualifiedName string
}

// Error implements the error interface.
func (e *UnresolvableSymbolError) Error() string {
	return fmt.Sprintf("closure: unresolvable symbol %q in %s", e.Name, e.QualifiedName)
}

// ClosureComputationError reports that a closure could not be computed:
// the source text for a required declaration could not be retrieved, or the
// formatting pass failed permanently (including subprocess failures and
// timeouts, after bounded retries).
//
// Description:
//
//	Callers must treat this as non-fatal to the original program. The
//	wrapped callable still executes and is traced as an unversioned call;
//	only version metadata is lost.
type ClosureComputationError struct {
	// QualifiedName is the callable being processed.
	QualifiedName string

	// Err is the underlying cause. May be nil.
	Err error
}

// Error implements the error interface.
func (e *ClosureComputationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("closure: computation failed for %s", e.QualifiedName)
	}
	return fmt.Sprintf("closure: computation failed for %s: %v", e.QualifiedName, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ClosureComputationError) Unwrap() error { return e.Err }
