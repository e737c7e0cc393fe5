// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fixtures

import (
	id "github.com/google/uuid"
)

// AliasedID generates an identifier through an aliased import binding.
func AliasedID() string {
	return id.NewString()
}
