// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolKindString(t *testing.T) {
	assert.Equal(t, "parameter", KindParameter.String())
	assert.Equal(t, "builtin", KindBuiltin.String())
	assert.Equal(t, "stdlib_import", KindStdlibImport.String())
	assert.Equal(t, "third_party", KindThirdParty.String())
	assert.Equal(t, "user_module_level", KindUserModuleLevel.String())
	assert.Equal(t, "user_nested", KindUserNested.String())
	assert.Equal(t, "unknown(99)", SymbolKind(99).String())
}
