package dataplane

import "github.com/cilium/ebpf"

// Map capacities match the original program's fixed sizes: a
// two-node config map with fixed key (cluster vs. host) and node/NAT
// tables sized to the overlay's expected scale, rather than a
// hash-of-everything table.
const (
	netConfigMapEntries = 2
	nodeMapEntries      = 128
	snatMapEntries      = 128
	sockOpsMapEntries   = 65535
)

// MapSpecs returns the cilium/ebpf map specifications for the overlay's
// kernel-resident state: the cluster/host CIDR config, the node-IP set,
// the SNAT translation table, and the sockops acceleration map. Loading
// these via ebpf.NewMapWithOptions (rather than bpf2go-generated
// skeletons, which need a clang/llvm toolchain this module doesn't
// assume) keeps the map layout in one place shared by both the loader
// and this package's pure-Go reference rewriter.
func MapSpecs() map[string]*ebpf.MapSpec {
	return map[string]*ebpf.MapSpec{
		"net_config_map": {
			Name:       "net_config_map",
			Type:       ebpf.Array,
			KeySize:    4,
			ValueSize:  8, // NetworkInfo{IP, SubnetMask}
			MaxEntries: netConfigMapEntries,
		},
		"node_map": {
			Name:       "node_map",
			Type:       ebpf.Hash,
			KeySize:    4, // IPv4 address
			ValueSize:  1,
			MaxEntries: nodeMapEntries,
		},
		"snat_ipv4_map": {
			Name:       "snat_ipv4_map",
			Type:       ebpf.Hash,
			KeySize:    12, // NatKey{SrcIP,DstIP,SrcPort,DstPort}
			ValueSize:  8,  // OriginValue{IP,Dummy,Port}
			MaxEntries: snatMapEntries,
		},
		"sock_ops_map": {
			Name:       "sock_ops_map",
			Type:       ebpf.SockHash,
			KeySize:    20, // SockKey{SrcIP,DstIP,SrcPort,DstPort,Family}
			ValueSize:  4,  // socket fd
			MaxEntries: sockOpsMapEntries,
		},
	}
}
