// Command sinabro-agent is the per-node overlay network agent: it
// programs the host's bridge/VXLAN/route state, loads and attaches the
// in-kernel SNAT packet-rewrite program, and serves the IP-address
// allocator the CNI plugin calls on pod creation.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wqld/sinabro/internal/config"
)

// Global flags shared across subcommands.
var (
	globalConfigPath string
	globalIface      string
	globalVerbose    bool
	globalLogger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sinabro-agent",
	Short: "Container-network overlay agent",
	Long: `sinabro-agent programs a Linux host's network stack so that pods
scheduled on different nodes of a cluster can reach each other over a
VXLAN overlay, while outbound traffic to the external world is
transparently source-NATed and inbound replies de-NATed.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if globalVerbose {
			level = slog.LevelDebug
		}
		globalLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "path to config file (default: /etc/sinabro/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalIface, "iface", "", "uplink interface name (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolvedConfigPath returns the config file path, using the global
// flag if set, otherwise the default system path.
func resolvedConfigPath() string {
	if globalConfigPath != "" {
		return globalConfigPath
	}
	p, err := config.DefaultConfigPath()
	if err != nil {
		return "config.toml"
	}
	return p
}

// loadConfig loads the TOML config from the resolved path, applying
// the --iface override if given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(resolvedConfigPath())
	if err != nil {
		return nil, err
	}
	if globalIface != "" {
		cfg.Datapath.UplinkName = globalIface
	}
	return cfg, nil
}
