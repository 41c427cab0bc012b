package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health and readiness",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := newClient()

	var healthResp map[string]any
	if _, err := client.getJSON("/healthz", nil, &healthResp); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	var readyResp map[string]any
	if _, err := client.getJSON("/readyz", nil, &readyResp); err != nil {
		// The database may still be coming up.
		readyResp = map[string]any{"status": "unknown", "error": err.Error()}
	}

	if structured() {
		return printOutput(map[string]any{
			"health":    healthResp,
			"readiness": readyResp,
		})
	}

	status, _ := healthResp["status"].(string)
	ready, _ := readyResp["status"].(string)
	printTable([]string{"Check", "Status"}, [][]string{
		{"Liveness", status},
		{"Readiness", ready},
	})
	return nil
}
