// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/peergate/peergate/internal/config"
)

// ServiceStatus holds the probe results for a running service.
type ServiceStatus struct {
	Addr  string `json:"addr"`
	Live  bool   `json:"live"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand. It probes the health
// endpoints of a running service's observability listener.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running PeerGate service",
		Long: `Probe the liveness and readiness endpoints of a running service.
The address defaults to server.metrics_listen from the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "observability address to probe (default from config)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	addr := cfg.addr
	if addr == "" {
		fileCfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		addr = fileCfg.Server.MetricsListen
	}
	if addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("no observability address configured; pass --addr")
	}

	status := queryServiceStatus(addr)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(formatStatusTable(status))
	return nil
}

// queryServiceStatus probes the liveness and readiness endpoints.
func queryServiceStatus(addr string) ServiceStatus {
	status := ServiceStatus{Addr: addr}

	base := addr
	if strings.HasPrefix(base, ":") {
		base = "localhost" + base
	}

	client := &http.Client{Timeout: 2 * time.Second}

	liveResp, err := client.Get("http://" + base + "/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	_ = liveResp.Body.Close()
	status.Live = liveResp.StatusCode == http.StatusOK

	readyResp, err := client.Get("http://" + base + "/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}
	_ = readyResp.Body.Close()
	status.Ready = readyResp.StatusCode == http.StatusOK

	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDR\tLIVE\tREADY")
	_, _ = fmt.Fprintln(w, "----\t----\t-----")

	if status.Error != "" {
		_, _ = fmt.Fprintf(w, "%s\tdown\t-\t(%s)\n", status.Addr, status.Error)
	} else {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			status.Addr, yesNo(status.Live), yesNo(status.Ready))
	}

	_ = w.Flush()
	return buf.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
