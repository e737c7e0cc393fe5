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

func TestSplitRuntimeName(t *testing.T) {
	cases := []struct {
		full  string
		pkg   string
		chain []string
	}{
		{"github.com/acme/app/pkg.Foo", "github.com/acme/app/pkg", []string{"Foo"}},
		{"github.com/acme/app/pkg.Foo.func1", "github.com/acme/app/pkg", []string{"Foo", "func1"}},
		{"github.com/acme/app/pkg.(*T).Method", "github.com/acme/app/pkg", []string{"(*T)", "Method"}},
		{"github.com/acme/app/pkg.T.Method-fm", "github.com/acme/app/pkg", []string{"T", "Method"}},
		{"main.run", "main", []string{"run"}},
		{"github.com/acme/app/pkg.Map[go.shape.int].func1", "github.com/acme/app/pkg", []string{"Map", "func1"}},
	}
	for _, tc := range cases {
		pkg, chain := splitRuntimeName(tc.full)
		assert.Equal(t, tc.pkg, pkg, tc.full)
		assert.Equal(t, tc.chain, chain, tc.full)
	}
}

func TestStripInstantiation(t *testing.T) {
	assert.Equal(t, "pkg.Map.func1", stripInstantiation("pkg.Map[go.shape.int].func1"))
	assert.Equal(t, "pkg.F", stripInstantiation("pkg.F[go.shape.[]uint8]"))
	assert.Equal(t, "pkg.Plain", stripInstantiation("pkg.Plain"))
}

func TestDefaultPackageName(t *testing.T) {
	assert.Equal(t, "uuid", defaultPackageName("github.com/google/uuid"))
	assert.Equal(t, "lru", defaultPackageName("github.com/hashicorp/golang-lru/v2"))
	assert.Equal(t, "yaml", defaultPackageName("gopkg.in/yaml.v3"))
	assert.Equal(t, "modfile", defaultPackageName("golang.org/x/mod/modfile"))
}

func TestIsStdlibPath(t *testing.T) {
	assert.True(t, isStdlibPath("strings"))
	assert.True(t, isStdlibPath("net/http"))
	assert.False(t, isStdlibPath("github.com/google/uuid"))
	assert.False(t, isStdlibPath("gopkg.in/yaml.v3"))
}

func TestInnermostName(t *testing.T) {
	assert.Equal(t, "MakeCounter", innermostName([]string{"MakeCounter", "func1"}, ""))
	assert.Equal(t, "Method", innermostName([]string{"(*T)", "Method"}, ""))
	assert.Equal(t, "Foo", innermostName([]string{"Foo"}, ""))
}
