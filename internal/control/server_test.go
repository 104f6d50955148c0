package control

import (
	"path/filepath"
	"testing"
)

func TestServer_StartStopFetchStatus(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "test.sock")

	provider := func() Status {
		return Status{
			HostIP:          "10.0.0.1",
			PodCIDR:         "10.244.0.0/24",
			ClusterCIDR:     "10.244.0.0/16",
			DatapathReady:   true,
			ProgramAttached: true,
			UptimeSeconds:   42.5,
			Peers: []PeerStatus{
				{NodeIP: "10.0.0.2", PodCIDR: "10.244.1.0/24", Synced: true},
			},
		}
	}

	srv := NewServer(socketPath, provider, nil)

	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop()

	status, err := FetchStatus(socketPath)
	if err != nil {
		t.Fatalf("FetchStatus() error: %v", err)
	}

	if status.HostIP != "10.0.0.1" {
		t.Errorf("HostIP = %q, want %q", status.HostIP, "10.0.0.1")
	}
	if !status.DatapathReady {
		t.Error("DatapathReady = false, want true")
	}
	if len(status.Peers) != 1 {
		t.Fatalf("len(Peers) = %d, want 1", len(status.Peers))
	}
	if status.Peers[0].NodeIP != "10.0.0.2" {
		t.Errorf("Peers[0].NodeIP = %q, want %q", status.Peers[0].NodeIP, "10.0.0.2")
	}
	if !status.Peers[0].Synced {
		t.Error("Peers[0].Synced = false, want true")
	}
}

func TestFetchStatus_NoServer(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "nonexistent.sock")

	_, err := FetchStatus(socketPath)
	if err == nil {
		t.Fatal("expected error when server is not running, got nil")
	}
}
