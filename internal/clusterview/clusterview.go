// Package clusterview defines the read-only view of cluster state the
// datapath programmer needs — this node's IP and pod CIDR, the
// cluster-wide pod CIDR, the set of peer node routes, and a way to
// resolve a peer's VXLAN device MAC address.
package clusterview

import (
	"context"
	"net"
	"net/netip"
)

// NodeRoute describes one peer node's overlay routing information,
// grounded on NodeRoute::from(Node) in the reference implementation:
// the node's first reported address and its assigned pod CIDR.
type NodeRoute struct {
	NodeIP  netip.Addr
	PodCIDR netip.Prefix
}

// ClusterView is the read-only cluster state surface the datapath
// programmer and orchestrator depend on. Production code talks to the
// cluster API (see exec.go); tests use the in-memory Fake.
type ClusterView interface {
	HostIP(ctx context.Context) (netip.Addr, error)
	ClusterCIDR(ctx context.Context) (netip.Prefix, error)
	PodCIDR(ctx context.Context) (netip.Prefix, error)
	NodeRoutes(ctx context.Context) ([]NodeRoute, error)
	PeerVxlanMAC(ctx context.Context, nodeIP netip.Addr) (net.HardwareAddr, error)
}
