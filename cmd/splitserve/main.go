// Package main provides the CLI entry point for the splitserve experiment server.
//
// Splitserve assigns visitors to content experiment variations on the server
// side, using the cookie conventions established by Google Analytics content
// experiments so existing client-side measurement keeps working unchanged.
//
// # Basic Usage
//
// Start the server:
//
//	splitserve serve --config splitserve.yaml
//
// Make a one-off decision against a local experiment file:
//
//	splitserve decide myExp --file experiments.yaml --domain example.com
//
// Inspect a running server:
//
//	splitserve experiments list
//	splitserve stats myExp --period 30d
//	splitserve cache status
//
// # Environment Variables
//
//   - SPLITSERVE_CONFIG: Path to configuration file (default: splitserve.yaml)
//   - SPLITSERVE_API_KEY: API key for operator commands against a running server
//   - SPLITSERVE_TOKEN: Bearer token for operator commands
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

// defaultConfigName is used when neither --config nor SPLITSERVE_CONFIG is set.
const defaultConfigName = "splitserve.yaml"

// main is the entry point for the splitserve CLI.
// It sets up the root command and all subcommands, then executes based on CLI args.
func main() {
	// Configure structured logging with JSON output for production parsing.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build the command tree.
	rootCmd := buildRootCmd()

	// Execute the CLI - Cobra handles argument parsing and command routing.
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "splitserve",
		Short: "Splitserve - Server-side content experiment decisions",
		Long: `Splitserve decides which content experiment variation a visitor sees.

Decisions are sticky: the chosen variation is bound to the visitor through
the same __utmx/__utmxx cookies Google Analytics content experiments use,
so client-side measurement continues to attribute traffic correctly.

Experiment definitions come from a provider endpoint, a local YAML file,
or both (remote with file fallback).

Documentation: https://github.com/haasonsaas/splitserve`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// SilenceUsage prevents printing usage on every error.
		SilenceUsage: true,
	}

	// Attach all subcommands.
	rootCmd.AddCommand(
		buildServeCmd(),
		buildDecideCmd(),
		buildExperimentsCmd(),
		buildStatsCmd(),
		buildCacheCmd(),
		buildTokenCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" && path != defaultConfigName {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("SPLITSERVE_CONFIG")); env != "" {
		return env
	}
	return defaultConfigName
}
