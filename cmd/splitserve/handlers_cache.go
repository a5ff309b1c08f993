package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// Cache Command Handlers
// =============================================================================

// runCacheStatus handles the cache status command.
func runCacheStatus(cmd *cobra.Command, configPath, serverAddr, token, apiKey string) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL, token, apiKey)

	var status cacheDetail
	if err := client.getJSON(cmd.Context(), "/v1/admin/cache", &status); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if status.Dir == "" {
		fmt.Fprintln(out, "Provider cache is disabled.")
		return nil
	}
	fmt.Fprintf(out, "Cache dir: %s\n", status.Dir)
	fmt.Fprintf(out, "Entries:   %d (%d expired)\n", status.Entries, status.Expired)
	fmt.Fprintf(out, "Size:      %d bytes\n", status.Bytes)
	return nil
}

// runCachePurge handles the cache purge command.
func runCachePurge(cmd *cobra.Command, configPath, serverAddr, token, apiKey string, expiredOnly bool) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL, token, apiKey)

	path := "/v1/admin/cache/purge"
	if expiredOnly {
		path += "?expired=1"
	}
	var result purgeResult
	if err := client.postJSON(cmd.Context(), path, &result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.ExpiredOnly {
		fmt.Fprintf(out, "Removed %d expired entries.\n", result.Removed)
	} else {
		fmt.Fprintf(out, "Removed %d entries.\n", result.Removed)
	}
	return nil
}
