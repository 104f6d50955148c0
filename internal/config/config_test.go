package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Datapath.UplinkName != "eth0" {
		t.Errorf("default UplinkName = %q, want eth0", cfg.Datapath.UplinkName)
	}
	if cfg.Datapath.BridgeName != "cni0" {
		t.Errorf("default BridgeName = %q, want cni0", cfg.Datapath.BridgeName)
	}
	if cfg.Datapath.VxlanPort != 8472 {
		t.Errorf("default VxlanPort = %d, want 8472", cfg.Datapath.VxlanPort)
	}
	if cfg.Allocator.BindAddress != "0.0.0.0:3000" {
		t.Errorf("default Allocator.BindAddress = %q, want 0.0.0.0:3000", cfg.Allocator.BindAddress)
	}
}

func TestSaveAndLoadConfig_roundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sinabro", "config.toml")

	original := &Config{
		Datapath: DatapathConfig{
			UplinkName: "eth1",
			BridgeName: "cni1",
			VxlanName:  "vx1",
			VxlanID:    7,
			VxlanPort:  4789,
			VxlanMTU:   1400,
		},
		CNI: CNIConfig{
			ConfigPath: "/etc/cni/net.d/99-sinabro.conf",
		},
		Allocator: AllocatorConfig{
			BindAddress: "127.0.0.1:7007",
			StorePath:   "/tmp/allocator.json",
		},
	}

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("config.toml permissions = %o, want 0644", perm)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if loaded.Datapath != original.Datapath {
		t.Errorf("Datapath = %+v, want %+v", loaded.Datapath, original.Datapath)
	}
	if loaded.CNI != original.CNI {
		t.Errorf("CNI = %+v, want %+v", loaded.CNI, original.CNI)
	}
	if loaded.Allocator != original.Allocator {
		t.Errorf("Allocator = %+v, want %+v", loaded.Allocator, original.Allocator)
	}
}

func TestLoadConfig_fileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Fatal("LoadConfig() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got: %v", err)
	}
}

func TestLoadConfig_appliesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[datapath]
uplink_name = "eth2"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing minimal config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Datapath.UplinkName != "eth2" {
		t.Errorf("UplinkName = %q, want eth2 (explicit value preserved)", cfg.Datapath.UplinkName)
	}
	if cfg.Datapath.BridgeName != "cni0" {
		t.Errorf("BridgeName = %q, want cni0 (default applied)", cfg.Datapath.BridgeName)
	}
	if cfg.Allocator.BindAddress != "0.0.0.0:3000" {
		t.Errorf("Allocator.BindAddress = %q, want default", cfg.Allocator.BindAddress)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Parallel()
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error: %v", err)
	}
	want := "/etc/sinabro/config.toml"
	if path != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", path, want)
	}
}

func TestSaveConfig_createsParentDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "config.toml")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created at nested path: %v", err)
	}
}

func TestParseAndMarshalTOML_roundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Datapath.VxlanID = 42

	s, err := MarshalTOML(cfg)
	if err != nil {
		t.Fatalf("MarshalTOML() error: %v", err)
	}

	parsed, err := ParseTOML(s)
	if err != nil {
		t.Fatalf("ParseTOML() error: %v", err)
	}
	if parsed.Datapath.VxlanID != 42 {
		t.Errorf("VxlanID = %d, want 42", parsed.Datapath.VxlanID)
	}
}
