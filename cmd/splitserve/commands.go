// Package main provides the CLI entry point for the splitserve experiment server.
//
// commands.go contains all cobra command definitions and their flag configurations.
// Each command builder function creates a command and wires it to its handler.
package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command that starts the decision server.
// This is the primary command for running splitserve in production.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the splitserve decision server",
		Long: `Start the splitserve decision server.

The server will:
1. Load configuration from the specified file (or splitserve.yaml)
2. Connect the experiment provider (remote endpoint, local file, or both)
3. Open the assignment log when the store is enabled
4. Start the HTTP API for decisions and operator endpoints
5. Start the metrics server for Prometheus scraping
6. Schedule janitor tasks for cache and assignment log cleanup

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  splitserve serve

  # Start with custom config
  splitserve serve --config /etc/splitserve/production.yaml

  # Start with debug logging
  splitserve serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName,
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

// =============================================================================
// Decide Command
// =============================================================================

// buildDecideCmd creates the "decide" command for one-off local decisions.
// It runs the same selection the server runs, against a local experiment
// file, which makes it useful for verifying definitions before deploying.
func buildDecideCmd() *cobra.Command {
	var (
		configPath string
		file       string
		domain     string
		prior      string
		force      string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "decide [experiment-id]",
		Short: "Decide a variation locally against an experiment file",
		Long: `Decide which variation a visitor would see, without a running server.

The decision is made against a local experiment file using the same
weighted draw and cookie encoding as the serve command. Pass a prior
assignment cookie value with --cookie to check replay behavior.`,
		Example: `  # Draw a fresh variation
  splitserve decide myExp --file experiments.yaml --domain example.com

  # Replay a visitor's existing cookie
  splitserve decide myExp --file experiments.yaml --domain example.com \
    --cookie "60493049.myExp$0:2"

  # Pin a variation for testing
  splitserve decide myExp --file experiments.yaml --domain example.com --force 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runDecide(cmd, configPath, args[0], file, domain, prior, force, jsonOut)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Experiment definitions file (default from config)")
	cmd.Flags().StringVar(&domain, "domain", "", "Cookie domain (default from config)")
	cmd.Flags().StringVar(&prior, "cookie", "", "Prior assignment cookie value to replay")
	cmd.Flags().StringVar(&force, "force", "", "Pin the decision to this variation instead of drawing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

// =============================================================================
// Experiments Commands
// =============================================================================

// buildExperimentsCmd creates the "experiments" command group for inspecting
// a running server's experiment definitions.
func buildExperimentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiments",
		Short: "Inspect experiments on a running server",
	}
	cmd.AddCommand(buildExperimentsListCmd(), buildExperimentsShowCmd())
	return cmd
}

func buildExperimentsListCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		token      string
		apiKey     string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiment IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runExperimentsList(cmd, configPath, serverAddr, token, apiKey, jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Splitserve HTTP server address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "JWT bearer token for server auth")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for server auth")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func buildExperimentsShowCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		token      string
		apiKey     string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "show [experiment-id]",
		Short: "Show an experiment's variation records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runExperimentsShow(cmd, configPath, serverAddr, token, apiKey, args[0], jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Splitserve HTTP server address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "JWT bearer token for server auth")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for server auth")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// =============================================================================
// Stats Command
// =============================================================================

// buildStatsCmd creates the "stats" command that reports recorded
// assignments for an experiment from a running server.
func buildStatsCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		token      string
		apiKey     string
		period     string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "stats [experiment-id]",
		Short: "Show assignment statistics for an experiment",
		Example: `  # Last 7 days (default)
  splitserve stats myExp

  # Last 30 days
  splitserve stats myExp --period 30d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runStats(cmd, configPath, serverAddr, token, apiKey, args[0], period, jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Splitserve HTTP server address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "JWT bearer token for server auth")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for server auth")
	cmd.Flags().StringVar(&period, "period", "7d", "Reporting window (e.g. 7d, 30d, 12h)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// =============================================================================
// Cache Commands
// =============================================================================

// buildCacheCmd creates the "cache" command group for the provider disk cache.
func buildCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the provider disk cache on a running server",
	}
	cmd.AddCommand(buildCacheStatusCmd(), buildCachePurgeCmd())
	return cmd
}

func buildCacheStatusCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		token      string
		apiKey     string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache entry counts and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runCacheStatus(cmd, configPath, serverAddr, token, apiKey)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Splitserve HTTP server address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "JWT bearer token for server auth")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for server auth")
	return cmd
}

func buildCachePurgeCmd() *cobra.Command {
	var (
		configPath  string
		serverAddr  string
		token       string
		apiKey      string
		expiredOnly bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached provider responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runCachePurge(cmd, configPath, serverAddr, token, apiKey, expiredOnly)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Splitserve HTTP server address (default from config)")
	cmd.Flags().StringVar(&token, "token", "", "JWT bearer token for server auth")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for server auth")
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "Only delete entries past their TTL")
	return cmd
}

// =============================================================================
// Token Command
// =============================================================================

// buildTokenCmd creates the "token" command that mints operator bearer
// tokens from the configured JWT secret.
func buildTokenCmd() *cobra.Command {
	var (
		configPath string
		subject    string
		name       string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token",
		Long: `Mint a bearer token signed with the configured JWT secret.

The token grants access to the operator endpoints of a server running
with the same auth configuration. Token lifetime comes from
auth.token_expiry.`,
		Example: `  splitserve token --subject ops@example.com --name "Release Ops"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runToken(cmd, configPath, subject, name)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, e.g. an operator email (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name recorded in the token")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and document the configuration file",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and check it for serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runConfigValidate(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to YAML configuration file")
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}
	return cmd
}
