package allocator

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStore_seedsFromPodCIDRSkippingGateway(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "ip_store")
	s, err := NewStore(netip.MustParsePrefix("10.244.0.0/24"), storePath)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if got, want := s.Count(), 253; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}

	for _, want := range []string{"10.244.0.2", "10.244.0.3", "10.244.0.4"} {
		addr, ok := s.Pop()
		if !ok {
			t.Fatalf("Pop() ran out early, expected %s", want)
		}
		if addr.String() != want {
			t.Errorf("Pop() = %s, want %s", addr, want)
		}
	}
	if got, want := s.Count(), 250; got != want {
		t.Errorf("Count() after 3 pops = %d, want %d", got, want)
	}
}

func TestStore_insertThenPopReturnsLowestFree(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "ip_store")
	s, err := NewStore(netip.MustParsePrefix("10.244.0.0/24"), storePath)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	for i := 0; i < 3; i++ {
		s.Pop()
	}
	s.Insert(netip.MustParseAddr("10.244.0.3"))

	addr, ok := s.Pop()
	if !ok || addr.String() != "10.244.0.3" {
		t.Errorf("Pop() = %v, %v, want 10.244.0.3, true", addr, ok)
	}
}

func TestStore_flushThenReload(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "sub", "ip_store")
	s, err := NewStore(netip.MustParsePrefix("10.244.0.0/24"), storePath)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	for i := 0; i < 3; i++ {
		s.Pop()
	}
	s.Insert(netip.MustParseAddr("10.244.0.3"))

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	if _, err := os.Stat(storePath); err != nil {
		t.Fatalf("store file not created: %v", err)
	}

	reloaded, err := NewStore(netip.MustParsePrefix("10.244.0.0/24"), storePath)
	if err != nil {
		t.Fatalf("reload NewStore() error: %v", err)
	}
	if got, want := reloaded.Count(), s.Count(); got != want {
		t.Errorf("reloaded Count() = %d, want %d", got, want)
	}

	addr, ok := reloaded.Pop()
	if !ok || addr.String() != "10.244.0.3" {
		t.Errorf("Pop() after reload = %v, %v, want 10.244.0.3, true", addr, ok)
	}
}

func TestStore_popExhaustion(t *testing.T) {
	t.Parallel()

	storePath := filepath.Join(t.TempDir(), "ip_store")
	s, err := NewStore(netip.MustParsePrefix("10.244.0.0/30"), storePath)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	// /30 has 10.244.0.0 (network), .1 (gateway, skipped), .2 (usable),
	// .3 (broadcast) — exactly one free address.
	if got, want := s.Count(), 1; got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}

	addr, ok := s.Pop()
	if !ok || addr.String() != "10.244.0.2" {
		t.Fatalf("Pop() = %v, %v, want 10.244.0.2, true", addr, ok)
	}

	if _, ok := s.Pop(); ok {
		t.Error("Pop() on exhausted store returned ok=true")
	}
}
