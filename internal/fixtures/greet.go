// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fixtures holds live callables exercised by the closure engine
// tests. The shapes here are deliberate: undocumented leaf functions,
// helper chains, module-level constants, methods, wrapped values, and
// nested definitions.
package fixtures

import "strings"

func SingleFn() string {
	return "Hello, world!"
}

// SubFn greets through the undocumented leaf.
func SubFn() string {
	return SingleFn() + " (via SubFn)"
}

// Greeting is the salutation used by ConstFn.
const Greeting = "Hello"

func ConstFn(name string) string {
	return Greeting + ", " + name + "!"
}

// Greeter greets a fixed audience.
type Greeter struct {
	Audience string
}

// Greet renders the greeting.
func (g Greeter) Greet() string {
	return Greeting + ", " + g.Audience + "!"
}

func UseGreeter() string {
	g := Greeter{Audience: "world"}
	return g.Greet()
}

func BuiltinOnly(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func StdlibFn(parts []string) string {
	return strings.Join(parts, ", ")
}
