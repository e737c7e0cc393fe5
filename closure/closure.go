// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"context"
	"sync"
)

var defaultEngine = sync.OnceValue(func() *Engine { return New() })

// FromFunc computes the closure of fn using a shared default Engine.
func FromFunc(ctx context.Context, fn any) (*Closure, error) {
	return defaultEngine().FromFunc(ctx, fn)
}

// FromSource computes the closure of the named symbol declared in dir using
// a shared default Engine.
func FromSource(ctx context.Context, dir, name string) (*Closure, error) {
	return defaultEngine().FromSource(ctx, dir, name)
}
