// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package closure_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeseal/codeseal/closure"
	"github.com/codeseal/codeseal/internal/fixtures"
	"github.com/codeseal/codeseal/internal/fixtures/alt"
)

func compute(t *testing.T, fn any) *closure.Closure {
	t.Helper()
	c, err := closure.FromFunc(context.Background(), fn)
	require.NoError(t, err)
	return c
}

func TestFromFuncHelloWorld(t *testing.T) {
	c := compute(t, fixtures.SingleFn)

	assert.Equal(t, "SingleFn", c.Name)
	assert.Equal(t, "func SingleFn() string {\n\treturn \"Hello, world!\"\n}\n", c.Code)
	assert.Len(t, c.Hash, 64)
	assert.Len(t, c.SignatureHash, 64)
	assert.Empty(t, c.Dependencies)
	assert.Empty(t, c.Doc)
}

func TestFromFuncDeterministic(t *testing.T) {
	first, err := closure.New().FromFunc(context.Background(), fixtures.SubFn)
	require.NoError(t, err)
	second, err := closure.New().FromFunc(context.Background(), fixtures.SubFn)
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.SignatureHash, second.SignatureHash)
}

func TestHelperChainInlined(t *testing.T) {
	c := compute(t, fixtures.SubFn)

	assert.Equal(t, "SubFn", c.Name)
	// Dependency definitions come before the target.
	subIdx := strings.Index(c.Code, "func SubFn()")
	singleIdx := strings.Index(c.Code, "func SingleFn()")
	require.GreaterOrEqual(t, singleIdx, 0)
	require.GreaterOrEqual(t, subIdx, 0)
	assert.Less(t, singleIdx, subIdx)
	assert.Equal(t, "SubFn greets through the undocumented leaf.", c.Doc)
}

func TestDocCommentStrippedByDefault(t *testing.T) {
	c := compute(t, fixtures.SubFn)

	assert.NotContains(t, c.Code, "SubFn greets")
	assert.Contains(t, c.Code, "// ...\nfunc SubFn()")
}

func TestDocCommentIncludedWithOption(t *testing.T) {
	engine := closure.New(closure.WithIncludeDocComments(true))
	c, err := engine.FromFunc(context.Background(), fixtures.SubFn)
	require.NoError(t, err)

	assert.Contains(t, c.Code, "// SubFn greets through the undocumented leaf.")
	assert.Equal(t, "SubFn greets through the undocumented leaf.", c.Doc)
}

func TestSignatureHashIgnoresBody(t *testing.T) {
	a := compute(t, fixtures.TwinA)
	b := compute(t, alt.TwinA)

	// Same name and type shape, different bodies.
	assert.Equal(t, a.Signature, b.Signature)
	assert.Equal(t, a.SignatureHash, b.SignatureHash)
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestSignatureHashCoversName(t *testing.T) {
	a := compute(t, fixtures.TwinA)
	b := compute(t, fixtures.TwinB)

	// Identical type shape, different names.
	assert.NotEqual(t, a.SignatureHash, b.SignatureHash)
}

func TestSignatureHashChangesWithShape(t *testing.T) {
	twin := compute(t, fixtures.TwinA)
	other := compute(t, fixtures.SingleFn)

	assert.NotEqual(t, twin.SignatureHash, other.SignatureHash)
}

func TestInnerShadowKeepsOuterUseFree(t *testing.T) {
	c := compute(t, fixtures.ShadowedConst)

	// The package constant is read before the inner block shadows its
	// name; it must still render.
	assert.Contains(t, c.Code, "const Greeting = \"Hello\"")
	assert.Contains(t, c.Code, "func ShadowedConst() string")
}

func TestMapLiteralKeyIsAReference(t *testing.T) {
	c := compute(t, fixtures.MapKeyed)

	assert.Contains(t, c.Code, "const Label = \"default\"")
	assert.Contains(t, c.Code, "map[string]int{Label: 1}")
}

func TestSameModuleHelperInlinesOnce(t *testing.T) {
	c := compute(t, fixtures.TwoAliases)

	assert.Equal(t, 1, strings.Count(c.Code, "func Helper()"))
	assert.NotContains(t, c.Code, "fixtures/util")
	assert.Contains(t, c.Code, "return Helper() + Helper()")
	assert.Empty(t, c.Dependencies)
}

func TestBuiltinOnlyHasNoImports(t *testing.T) {
	c := compute(t, fixtures.BuiltinOnly)

	assert.NotContains(t, c.Code, "import")
	assert.Empty(t, c.Dependencies)
}

func TestStdlibImportEmittedWithoutDependency(t *testing.T) {
	c := compute(t, fixtures.StdlibFn)

	assert.Contains(t, c.Code, "\"strings\"")
	assert.Empty(t, c.Dependencies)
}

func TestThirdPartyDependencyAggregates(t *testing.T) {
	c := compute(t, fixtures.Aggregate)

	require.Len(t, c.Dependencies, 1)
	dep, ok := c.Dependencies["github.com/google/uuid"]
	require.True(t, ok)
	assert.Equal(t, "github.com/google/uuid", dep.Name)
	assert.NotEmpty(t, dep.Version)
	assert.Contains(t, c.Code, "\"github.com/google/uuid\"")
}

func TestAliasedImportPreserved(t *testing.T) {
	c := compute(t, fixtures.AliasedID)

	assert.Contains(t, c.Code, "id \"github.com/google/uuid\"")
	assert.Contains(t, c.Code, "id.NewString()")
	require.Len(t, c.Dependencies, 1)
}

func TestModuleLevelConstRendersBeforeUse(t *testing.T) {
	c := compute(t, fixtures.ConstFn)

	constIdx := strings.Index(c.Code, "const Greeting = \"Hello\"")
	fnIdx := strings.Index(c.Code, "func ConstFn(")
	require.GreaterOrEqual(t, constIdx, 0)
	require.GreaterOrEqual(t, fnIdx, 0)
	assert.Less(t, constIdx, fnIdx)
}

func TestTypeTravelsWithMethods(t *testing.T) {
	c := compute(t, fixtures.UseGreeter)

	assert.Contains(t, c.Code, "type Greeter struct")
	assert.Contains(t, c.Code, "func (g Greeter) Greet() string")
	useIdx := strings.Index(c.Code, "func UseGreeter()")
	typeIdx := strings.Index(c.Code, "type Greeter struct")
	require.GreaterOrEqual(t, useIdx, 0)
	assert.Less(t, typeIdx, useIdx)
}

func TestWrappedValueRendersWholeChain(t *testing.T) {
	c, err := closure.FromFunc(context.Background(), fixtures.Wrapped)
	require.NoError(t, err)

	assert.Equal(t, "Wrapped", c.Name)
	repeatIdx := strings.Index(c.Code, "func Repeat(")
	wrappedIdx := strings.Index(c.Code, "var Wrapped = Repeat(2)(SingleFn)")
	require.GreaterOrEqual(t, repeatIdx, 0)
	require.GreaterOrEqual(t, wrappedIdx, 0)
	assert.Less(t, repeatIdx, wrappedIdx)
	assert.Contains(t, c.Code, "func SingleFn() string")
}

func TestNestedClosureHoistsToEnclosing(t *testing.T) {
	counter := fixtures.MakeCounter()
	c, err := closure.FromFunc(context.Background(), counter)
	require.NoError(t, err)

	assert.Equal(t, "MakeCounter", c.Name)
	assert.Contains(t, c.Code, "func MakeCounter() func() int")
}

func TestFromSourceMethod(t *testing.T) {
	c, err := closure.FromSource(context.Background(), "../internal/fixtures", "Greeter.Greet")
	require.NoError(t, err)

	assert.Equal(t, "Greet", c.Name)
	assert.Contains(t, c.Code, "type Greeter struct")
	assert.Contains(t, c.Code, "const Greeting = \"Hello\"")
	assert.Contains(t, c.Signature, "func (g Greeter) Greet() string")
}

func TestFromSourceMatchesFromFunc(t *testing.T) {
	fromSource, err := closure.FromSource(context.Background(), "../internal/fixtures", "SingleFn")
	require.NoError(t, err)
	fromFunc := compute(t, fixtures.SingleFn)

	assert.Equal(t, fromFunc.Code, fromSource.Code)
	assert.Equal(t, fromFunc.Hash, fromSource.Hash)
}

func TestFromSourceUnknownSymbol(t *testing.T) {
	_, err := closure.FromSource(context.Background(), "../internal/fixtures", "NoSuchFn")
	require.Error(t, err)

	var cerr *closure.ClosureComputationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "NoSuchFn", cerr.QualifiedName)
}

func TestUnresolvableSymbol(t *testing.T) {
	_, err := closure.FromSource(context.Background(), "testdata/badpkg", "Broken")
	require.Error(t, err)

	var uerr *closure.UnresolvableSymbolError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "undefinedHelper", uerr.Name)
	assert.Equal(t, "Broken", uerr.QualifiedName)
}

func TestFormatterFailureSurfacesAsComputationError(t *testing.T) {
	engine := closure.New(closure.WithFormatter(&closure.ExecFormatter{
		Path:    "/nonexistent/formatter-binary",
		Retries: 1,
		Timeout: time.Second,
	}))
	_, err := engine.FromFunc(context.Background(), fixtures.SingleFn)
	require.Error(t, err)

	var cerr *closure.ClosureComputationError
	assert.True(t, errors.As(err, &cerr))
}

func TestNotAFunc(t *testing.T) {
	_, err := closure.FromFunc(context.Background(), 42)
	require.Error(t, err)

	var cerr *closure.ClosureComputationError
	require.ErrorAs(t, err, &cerr)
}
