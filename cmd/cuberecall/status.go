// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ProbeStatus holds the result of one health probe.
type ProbeStatus struct {
	Probe string `json:"probe"`
	Up    bool   `json:"up"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	metricsAddr string
	jsonOutput  bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running credential server",
		Long:  `Query the observability server's liveness and readiness probes and report the results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "127.0.0.1:9090", "observability server address")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	client := &http.Client{Timeout: 2 * time.Second}

	statuses := []ProbeStatus{
		queryProbe(client, cfg.metricsAddr, "liveness"),
		queryProbe(client, cfg.metricsAddr, "readiness"),
	}

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		output = string(data)
	} else {
		output = formatStatusTable(statuses)
	}

	cmd.Println(output)
	return nil
}

// queryProbe hits one health endpoint and interprets the response code.
func queryProbe(client *http.Client, addr, probe string) ProbeStatus {
	status := ProbeStatus{Probe: probe}

	resp, err := client.Get(fmt.Sprintf("http://%s/healthz/%s", addr, probe))
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("probe returned %s", resp.Status)
		return status
	}

	status.Up = true
	return status
}

// formatStatusTable formats the probe results as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t------")

	for _, status := range statuses {
		if status.Up {
			_, _ = fmt.Fprintf(w, "%s\tup\t-\n", status.Probe)
		} else {
			_, _ = fmt.Fprintf(w, "%s\tdown\t%s\n", status.Probe, status.Error)
		}
	}

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
