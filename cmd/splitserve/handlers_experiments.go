package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/splitserve/pkg/models"
)

// =============================================================================
// Experiments Command Handlers
// =============================================================================

// runExperimentsList handles the experiments list command.
func runExperimentsList(cmd *cobra.Command, configPath, serverAddr, token, apiKey string, jsonOut bool) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL, token, apiKey)

	var list experimentList
	if err := client.getJSON(cmd.Context(), "/v1/experiments", &list); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if list.Total == 0 {
		fmt.Fprintln(out, "No experiments defined.")
		return nil
	}
	fmt.Fprintf(out, "Experiments (%d):\n", list.Total)
	for _, id := range list.Experiments {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

// runExperimentsShow handles the experiments show command.
func runExperimentsShow(cmd *cobra.Command, configPath, serverAddr, token, apiKey, experimentID string, jsonOut bool) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL, token, apiKey)

	var detail experimentDetail
	if err := client.getJSON(cmd.Context(), "/v1/experiments/"+url.PathEscape(experimentID), &detail); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}
	fmt.Fprintf(out, "Experiment: %s\n", detail.ExperimentID)
	fmt.Fprintln(out, "Variations:")
	for _, rec := range detail.Variations {
		fmt.Fprintf(out, "  - %s\n", describeVariation(rec))
	}
	return nil
}

// describeVariation renders one variation record for terminal output.
func describeVariation(rec models.VariationRecord) string {
	label := "exclusion bucket"
	if rec.ID != nil {
		if *rec.ID == 0 {
			label = "original"
		} else {
			label = fmt.Sprintf("variation %d", *rec.ID)
		}
	}
	s := fmt.Sprintf("%s: weight %.2f", label, rec.Weight)
	if rec.Disabled {
		s += " (disabled)"
	}
	return s
}

// =============================================================================
// Stats Command Handler
// =============================================================================

// runStats handles the stats command.
func runStats(cmd *cobra.Command, configPath, serverAddr, token, apiKey, experimentID, period string, jsonOut bool) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL, token, apiKey)

	path := "/v1/experiments/" + url.PathEscape(experimentID) + "/stats"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var stats models.ExperimentStats
	if err := client.getJSON(cmd.Context(), path, &stats); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "Experiment: %s\n", stats.ExperimentID)
	fmt.Fprintf(out, "Window:     %s .. %s\n",
		stats.Since.Format(time.RFC3339), stats.Until.Format(time.RFC3339))
	fmt.Fprintf(out, "Total:      %d\n", stats.Total)
	if len(stats.Variations) > 0 {
		fmt.Fprintln(out, "\nBy variation:")
		for _, vc := range stats.Variations {
			fmt.Fprintf(out, "  %s: %d\n", vc.Variation, vc.Count)
		}
	}
	if len(stats.PerDay) > 0 {
		fmt.Fprintln(out, "\nPer day:")
		for _, dc := range stats.PerDay {
			fmt.Fprintf(out, "  %s: %d\n", dc.Day, dc.Count)
		}
	}
	return nil
}
