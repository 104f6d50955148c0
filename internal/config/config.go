// Package config loads and persists the sinabro agent's configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultConfigDir is the system-wide config directory for the agent.
const DefaultConfigDir = "/etc/sinabro"

// Config is the top-level configuration for the sinabro agent. It is
// persisted as a single TOML file at DefaultConfigPath() — unlike the
// teacher's public/secrets split, nothing here is a credential, so
// there is no companion secrets file.
type Config struct {
	Datapath  DatapathConfig  `toml:"datapath"`
	CNI       CNIConfig       `toml:"cni"`
	Allocator AllocatorConfig `toml:"allocator"`
}

// DatapathConfig names the host-visible device parameters the
// datapath programmer drives.
type DatapathConfig struct {
	// UplinkName is the host's external-facing network interface.
	UplinkName string `toml:"uplink_name"`

	// BridgeName is the pod-network bridge device.
	BridgeName string `toml:"bridge_name"`

	// VxlanName is the overlay VXLAN device.
	VxlanName string `toml:"vxlan_name"`

	// VxlanID is the VXLAN network identifier. Ignored (and reported
	// as 0) when the device runs in flow-based mode.
	VxlanID uint32 `toml:"vxlan_id"`

	// VxlanPort is the UDP destination port VXLAN traffic uses.
	VxlanPort uint16 `toml:"vxlan_port"`

	// VxlanMTU is the MTU assigned to the VXLAN device, sized below
	// the uplink's MTU to leave room for the encapsulation overhead.
	VxlanMTU uint32 `toml:"vxlan_mtu"`
}

// CNIConfig controls where the agent writes the CNI plugin's
// configuration file.
type CNIConfig struct {
	// ConfigPath is the path the CNI config JSON is written to, read
	// by the container runtime's CNI invocation (default
	// /etc/cni/net.d/10-sinabro.conf).
	ConfigPath string `toml:"config_path"`
}

// AllocatorConfig controls the in-process IPAM HTTP service.
type AllocatorConfig struct {
	// BindAddress is the host:port the allocator's HTTP server listens
	// on (default 0.0.0.0:3000).
	BindAddress string `toml:"bind_address"`

	// StorePath is the file the allocator persists its lease state to,
	// so allocations survive an agent restart.
	StorePath string `toml:"store_path"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Datapath: DatapathConfig{
			UplinkName: "eth0",
			BridgeName: "cni0",
			VxlanName:  "sinabro_vxlan",
			VxlanID:    1,
			VxlanPort:  8472,
			VxlanMTU:   1450,
		},
		CNI: CNIConfig{
			ConfigPath: "/etc/cni/net.d/10-sinabro.conf",
		},
		Allocator: AllocatorConfig{
			BindAddress: "0.0.0.0:3000",
			StorePath:   "/var/lib/sinabro/ip_store",
		},
	}
}

// DefaultConfigPath returns the default path for the agent's config
// file: /etc/sinabro/config.toml, since the agent runs as root.
func DefaultConfigPath() (string, error) {
	return filepath.Join(DefaultConfigDir, "config.toml"), nil
}

// LoadConfig reads config.toml at path, applying DefaultConfig's values
// for any field left unset. A missing file is reported as an error
// wrapping fs.ErrNotExist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// SaveConfig writes cfg as TOML to path, creating the parent directory
// (mode 0755) if it doesn't exist.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ParseTOML decodes a TOML config from a string.
func ParseTOML(s string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(s, cfg); err != nil {
		return nil, fmt.Errorf("decoding TOML config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// MarshalTOML encodes a Config to a TOML string.
func MarshalTOML(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding TOML config: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// applyDefaults fills in default values for fields left zero-valued
// after TOML decoding.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Datapath.UplinkName == "" {
		cfg.Datapath.UplinkName = def.Datapath.UplinkName
	}
	if cfg.Datapath.BridgeName == "" {
		cfg.Datapath.BridgeName = def.Datapath.BridgeName
	}
	if cfg.Datapath.VxlanName == "" {
		cfg.Datapath.VxlanName = def.Datapath.VxlanName
	}
	if cfg.Datapath.VxlanPort == 0 {
		cfg.Datapath.VxlanPort = def.Datapath.VxlanPort
	}
	if cfg.Datapath.VxlanMTU == 0 {
		cfg.Datapath.VxlanMTU = def.Datapath.VxlanMTU
	}
	if cfg.CNI.ConfigPath == "" {
		cfg.CNI.ConfigPath = def.CNI.ConfigPath
	}
	if cfg.Allocator.BindAddress == "" {
		cfg.Allocator.BindAddress = def.Allocator.BindAddress
	}
	if cfg.Allocator.StorePath == "" {
		cfg.Allocator.StorePath = def.Allocator.StorePath
	}
}
