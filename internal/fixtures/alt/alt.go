// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package alt mirrors declaration headers from the fixtures package with
// different behavior behind them.
package alt

func TwinA(x int) int {
	return x * 5
}
