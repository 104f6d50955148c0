// Package cniconfig writes the CNI plugin configuration file the
// container runtime reads before invoking sinabro-cni.
package cniconfig

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/wqld/sinabro/pkg/cni"
)

// Write renders a cni.NetConf for the given cluster/pod CIDRs and
// writes it as JSON to path, creating parent directories as needed.
// Re-running Write with the same inputs overwrites the file with
// identical content, so it is safe to call on every agent startup.
func Write(path string, clusterCIDR, podCIDR netip.Prefix) error {
	conf := cni.NetConf{
		CNIVersion: "0.3.1",
		Name:       "sinabro",
		Type:       "sinabro-cni",
		Network:    clusterCIDR.String(),
		Subnet:     podCIDR.String(),
	}

	b, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("cniconfig: marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cniconfig: create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("cniconfig: write %s: %w", path, err)
	}

	return nil
}

// Read parses a previously written CNI config file, used by tests and
// by any tooling that wants to inspect the currently installed config
// without re-deriving it from cluster state.
func Read(path string) (*cni.NetConf, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cniconfig: read %s: %w", path, err)
	}
	var conf cni.NetConf
	if err := json.Unmarshal(b, &conf); err != nil {
		return nil, fmt.Errorf("cniconfig: parse %s: %w", path, err)
	}
	return &conf, nil
}
