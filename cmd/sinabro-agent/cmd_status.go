package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wqld/sinabro/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running agent's datapath and peer status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := control.FetchStatus(control.ResolveSocketPath())
	if err != nil {
		return fmt.Errorf("is sinabro-agent running? %w", err)
	}

	fmt.Fprintf(os.Stdout, "Host IP:      %s\n", status.HostIP)
	fmt.Fprintf(os.Stdout, "Pod CIDR:     %s\n", status.PodCIDR)
	fmt.Fprintf(os.Stdout, "Cluster CIDR: %s\n", status.ClusterCIDR)
	fmt.Fprintf(os.Stdout, "Datapath:     %s\n", readyString(status.DatapathReady))
	fmt.Fprintf(os.Stdout, "Program:      %s\n", readyString(status.ProgramAttached))
	fmt.Fprintf(os.Stdout, "Uptime:       %s\n", formatDuration(time.Duration(status.UptimeSeconds*float64(time.Second))))
	fmt.Fprintf(os.Stdout, "Peers:        %d\n", len(status.Peers))
	fmt.Println()

	if len(status.Peers) == 0 {
		fmt.Println("No peer nodes known.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tPOD CIDR\tSYNCED")
	for _, p := range status.Peers {
		fmt.Fprintf(w, "%s\t%s\t%v\n", p.NodeIP, p.PodCIDR, p.Synced)
	}
	w.Flush()

	return nil
}

func readyString(ready bool) string {
	if ready {
		return "ready"
	}
	return "not ready"
}

// formatDuration formats a duration into a human-readable string like "2h15m" or "45s".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
