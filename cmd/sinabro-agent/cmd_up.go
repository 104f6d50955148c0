package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wqld/sinabro/internal/clusterview"
	"github.com/wqld/sinabro/internal/orchestrator"
)

// defaultAgentSelector/defaultNamespace name the DaemonSet label and
// namespace the Kubernetes-backed cluster view uses to find a peer's
// agent pod for VXLAN MAC discovery (§4.5's documented exec-in-pod
// dependency). Cluster-API discovery is out of this agent's scope
// beyond the ClusterView interface, so these are fixed defaults rather
// than plumbed through the config file.
const (
	defaultAgentSelector = "app=sinabro-agent"
	defaultNamespace     = "kube-system"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Program the datapath and run the agent in the foreground",
	Long: `Resolve the cluster view, program the bridge/VXLAN/route state,
attach the packet-rewrite program to the uplink, and serve the IP
allocator and control socket until interrupted.

Requires root (CAP_NET_ADMIN and CAP_BPF) to create network devices and
load the kernel program.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	view := clusterview.NewExecClusterView(cfg.Datapath.UplinkName, defaultNamespace, defaultAgentSelector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o := orchestrator.New(*cfg, view, globalLogger)

	globalLogger.Info("starting sinabro-agent", "config", resolvedConfigPath(), "iface", cfg.Datapath.UplinkName)

	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("orchestrator run: %w", err)
	}

	globalLogger.Info("sinabro-agent stopped")
	return nil
}
