// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fixtures

// ShadowedConst reads the package constant before an inner block shadows
// its name.
func ShadowedConst() string {
	out := Greeting
	{
		Greeting := " (inner)"
		out += Greeting
	}
	return out
}

// Label keys the default bucket.
const Label = "default"

// MapKeyed references a package constant only as a map-literal key.
func MapKeyed() map[string]int {
	return map[string]int{Label: 1}
}
