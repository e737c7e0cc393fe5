// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package util provides shared helpers for the closure analysis fixtures.
package util

// Helper returns the decorative prefix the fixtures prepend to messages.
func Helper() string {
	return ">> "
}
