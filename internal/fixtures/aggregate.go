// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fixtures

import (
	"github.com/google/uuid"
)

// Aggregate touches one external module through two distinct symbols; the
// dependency set must still carry a single entry for it.
func Aggregate() string {
	first := uuid.NewString()
	second := uuid.Must(uuid.NewRandom()).String()
	return first + "/" + second
}
