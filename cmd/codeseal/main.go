// Copyright (C) 2025 Codeseal Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command codeseal inspects Go source and prints the closure artifact of a
// named callable: its self-contained code, content hashes, and resolved
// module dependencies.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/codeseal/codeseal/closure"
)

const defaultConfigPath = "codeseal.config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "codeseal",
		Short: "Content-addressable versioning for Go callables",
		Long: "codeseal computes the minimal self-contained source closure of a\n" +
			"callable, hashes it into a stable content identity, and reports the\n" +
			"external modules it depends on.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newInspectCmd())
	return root
}

func newInspectCmd() *cobra.Command {
	var (
		dir        string
		funcName   string
		configPath string
		asJSON     bool
		traceOut   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Compute and print the closure of a callable",
		Example: "  codeseal inspect --dir ./internal/pipeline --func Transform\n" +
			"  codeseal inspect --dir . --func Server.Handle --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if traceOut {
				shutdown, err := setupTracing()
				if err != nil {
					return fmt.Errorf("setting up tracing: %w", err)
				}
				defer shutdown(ctx)
			}

			cfg, err := closure.LoadConfig(configPath)
			if err != nil {
				return err
			}
			engine := closure.New(cfg.Options()...)

			c, err := engine.FromSource(ctx, dir, funcName)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}
			printClosure(cmd, c)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "package directory containing the callable")
	cmd.Flags().StringVar(&funcName, "func", "", "callable name (Func, Type.Method, or wrapped var)")
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the artifact as JSON")
	cmd.Flags().BoolVar(&traceOut, "trace", false, "export computation spans to stdout")
	_ = cmd.MarkFlagRequired("func")
	return cmd
}

// printClosure renders the human-readable report.
func printClosure(cmd *cobra.Command, c *closure.Closure) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:           %s\n", c.Name)
	fmt.Fprintf(out, "Signature:      %s\n", c.Signature)
	fmt.Fprintf(out, "Hash:           %s\n", c.Hash)
	fmt.Fprintf(out, "SignatureHash:  %s\n", c.SignatureHash)
	if c.Doc != "" {
		fmt.Fprintf(out, "Doc:            %s\n", c.Doc)
	}
	if len(c.Dependencies) > 0 {
		names := make([]string, 0, len(c.Dependencies))
		for name := range c.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "Dependencies:")
		for _, name := range names {
			fmt.Fprintf(out, "  %s %s\n", name, c.Dependencies[name].Version)
		}
	}
	fmt.Fprintln(out, "Code:")
	fmt.Fprintln(out, c.Code)
}

// setupTracing installs a stdout span exporter for ad-hoc inspection runs.
func setupTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
