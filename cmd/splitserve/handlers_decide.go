package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/splitserve/internal/config"
	"github.com/haasonsaas/splitserve/internal/cookie"
	"github.com/haasonsaas/splitserve/internal/experiment"
	"github.com/haasonsaas/splitserve/internal/provider"
	"github.com/haasonsaas/splitserve/pkg/models"
)

// =============================================================================
// Decide Command Handler
// =============================================================================

type decideOutput struct {
	ExperimentID     string `json:"experiment_id"`
	Variation        int    `json:"variation"`
	Participating    bool   `json:"participating"`
	Fresh            bool   `json:"fresh"`
	AssignmentCookie string `json:"assignment_cookie,omitempty"`
	TimestampCookie  string `json:"timestamp_cookie,omitempty"`
}

// runDecide handles the decide command: one decision against a local
// experiment file, using the same session logic the server uses.
func runDecide(cmd *cobra.Command, configPath, experimentID, file, domain, prior, force string, jsonOut bool) error {
	// Fill missing inputs from the config file. The command works without a
	// config when both --file and --domain are given.
	if file == "" || domain == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("need --file and --domain, or a readable config: %w", err)
		}
		if file == "" {
			file = cfg.Provider.File
		}
		if domain == "" {
			domain = cfg.Domain
		}
	}
	if file == "" {
		return fmt.Errorf("no experiment file: pass --file or set provider.file in the config")
	}

	local, err := provider.NewLocal(file)
	if err != nil {
		return err
	}

	session, err := experiment.NewSession(experiment.SessionConfig{
		Domain: domain,
		Source: local,
	})
	if err != nil {
		return err
	}

	now := time.Now()
	var decision experiment.Decision
	if raw := strings.TrimSpace(force); raw != "" {
		variation, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return fmt.Errorf("invalid --force value %q", force)
		}
		decision, err = session.Force(models.ExperimentID(experimentID), prior, "", models.ChosenVariation(variation), now)
	} else {
		decision, err = session.ChooseVariation(cmd.Context(), models.ExperimentID(experimentID), prior, "", rand.Float64(), now)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(decideOutput{
			ExperimentID:     experimentID,
			Variation:        int(decision.Variation),
			Participating:    decision.Variation.Participating(),
			Fresh:            decision.Fresh,
			AssignmentCookie: decision.AssignmentCookie,
			TimestampCookie:  decision.TimestampCookie,
		})
	}

	fmt.Fprintf(out, "Experiment: %s\n", experimentID)
	fmt.Fprintf(out, "Variation:  %s\n", decision.Variation)
	if decision.Fresh {
		fmt.Fprintln(out, "Cookies to set:")
		fmt.Fprintf(out, "  %s=%s\n", cookie.AssignmentCookieName, decision.AssignmentCookie)
		fmt.Fprintf(out, "  %s=%s\n", cookie.TimestampCookieName, decision.TimestampCookie)
	} else {
		fmt.Fprintln(out, "Replayed from the prior cookie; nothing to set.")
	}
	return nil
}
