// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fixtures

import "strings"

// Repeat wraps a string producer so its output repeats n times.
func Repeat(n int) func(func() string) func() string {
	return func(inner func() string) func() string {
		return func() string {
			return strings.Repeat(inner(), n)
		}
	}
}

// Wrapped is the doubled greeting.
var Wrapped = Repeat(2)(SingleFn)

// MakeCounter returns a closure over its own counter.
func MakeCounter() func() int {
	n := 0
	return func() int {
		n++
		return n
	}
}
