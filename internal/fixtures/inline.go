// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fixtures

import (
	u1 "github.com/codeseal/codeseal/internal/fixtures/util"
	u2 "github.com/codeseal/codeseal/internal/fixtures/util"
)

// TwoAliases reaches the same helper through two import bindings; the
// helper must inline exactly once.
func TwoAliases() string {
	return u1.Helper() + u2.Helper()
}
