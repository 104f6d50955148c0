package clusterview

import (
	"context"
	"fmt"
	"net"
	"net/netip"
)

// Fake is an in-memory ClusterView for tests and for local single-node
// development where no cluster API is reachable.
type Fake struct {
	Host    netip.Addr
	Cluster netip.Prefix
	Pod     netip.Prefix
	Peers   []NodeRoute
	MACs    map[netip.Addr]net.HardwareAddr
}

func (f *Fake) HostIP(context.Context) (netip.Addr, error) {
	return f.Host, nil
}

func (f *Fake) ClusterCIDR(context.Context) (netip.Prefix, error) {
	return f.Cluster, nil
}

func (f *Fake) PodCIDR(context.Context) (netip.Prefix, error) {
	return f.Pod, nil
}

func (f *Fake) NodeRoutes(context.Context) ([]NodeRoute, error) {
	return f.Peers, nil
}

func (f *Fake) PeerVxlanMAC(_ context.Context, nodeIP netip.Addr) (net.HardwareAddr, error) {
	mac, ok := f.MACs[nodeIP]
	if !ok {
		return nil, fmt.Errorf("clusterview: no fake MAC registered for %s", nodeIP)
	}
	return mac, nil
}
