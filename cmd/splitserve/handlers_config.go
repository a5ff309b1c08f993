package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/splitserve/internal/auth"
	"github.com/haasonsaas/splitserve/internal/config"
)

// =============================================================================
// Token Command Handler
// =============================================================================

// runToken handles the token command. The token is minted locally from the
// configured secret; no server needs to be running.
func runToken(cmd *cobra.Command, configPath, subject, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	service := auth.NewService(auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry.Std(),
	})
	token, err := service.GenerateToken(subject, name)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// =============================================================================
// Config Command Handlers
// =============================================================================

// runConfigValidate handles the config validate command.
func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK: %s\n", configPath)
	fmt.Fprintf(out, "  domain:   %s\n", cfg.Domain)
	switch {
	case cfg.Provider.Endpoint != "" && cfg.Provider.File != "":
		fmt.Fprintf(out, "  provider: %s (file fallback: %s)\n", cfg.Provider.Endpoint, cfg.Provider.File)
	case cfg.Provider.Endpoint != "":
		fmt.Fprintf(out, "  provider: %s\n", cfg.Provider.Endpoint)
	default:
		fmt.Fprintf(out, "  provider: file %s\n", cfg.Provider.File)
	}
	fmt.Fprintf(out, "  store:    enabled=%v\n", cfg.Store.Enabled)
	fmt.Fprintf(out, "  auth:     enabled=%v\n", cfg.Auth.Enabled)
	return nil
}

// runConfigSchema handles the config schema command.
func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := out.Write(schema); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}
