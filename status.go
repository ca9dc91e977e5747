package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-go/internal/api"
	"github.com/meridianhq/meridian-go/internal/netmon"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, network, and queue state",
		Long: `Display the credential state, access-token expiry when known,
current network reachability, and offline queue depth.`,
		RunE: runStatus,
	}
}

// statusReport is the machine-readable shape of `status --json`.
type statusReport struct {
	BaseURL       string     `json:"base_url"`
	Session       string     `json:"session"`
	AccessExpiry  *time.Time `json:"access_expiry,omitempty"`
	NetworkOnline bool       `json:"network_online"`
	NetworkSince  time.Time  `json:"network_since"`
	QueueDepth    int        `json:"queue_depth"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	report := buildStatusReport(s.client, s.monitor, cfgHolder.Config().BaseURL)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatusText(report)

	return nil
}

func buildStatusReport(client *api.Client, monitor *netmon.Monitor, baseURL string) statusReport {
	report := statusReport{
		BaseURL:    baseURL,
		Session:    client.Tokens().State().String(),
		QueueDepth: client.Queue().Len(),
	}

	if exp, ok := client.Tokens().AccessExpiry(); ok {
		report.AccessExpiry = &exp
	}

	state := monitor.State()
	report.NetworkOnline = state.Online
	report.NetworkSince = state.Since

	return report
}

func printStatusText(r statusReport) {
	fmt.Printf("Backend:  %s\n", r.BaseURL)
	fmt.Printf("Session:  %s\n", r.Session)

	if r.AccessExpiry != nil {
		fmt.Printf("Token:    expires %s\n", formatTime(*r.AccessExpiry))
	}

	network := "offline"
	if r.NetworkOnline {
		network = "online"
	}

	fmt.Printf("Network:  %s (since %s)\n", network, formatTime(r.NetworkSince))
	fmt.Printf("Queue:    %d pending\n", r.QueueDepth)
}
