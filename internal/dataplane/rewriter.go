package dataplane

import "sync"

// PortRange bounds the NAT source ports this rewriter hands out,
// mirroring the kernel program's fixed SNAT port window.
type PortRange struct {
	Start uint16
	End   uint16
}

// DefaultPortRange is the window the original program reserves for
// SNAT translations.
var DefaultPortRange = PortRange{Start: 30000, End: 60000}

// Rewriter is the pure-Go reference implementation of the kernel
// program's egress SNAT / ingress de-NAT state machine. It operates on
// the same three pieces of configuration the kernel maps hold —
// cluster CIDR, host IP, and the node-IP set — plus an in-memory
// replacement for SNAT_IPV4_MAP, so its behavior can be unit-tested
// without a running kernel and a loaded program.
type Rewriter struct {
	ClusterCIDR NetworkInfo
	HostIP      [4]byte
	NodeIPs     map[uint32]struct{}
	PortRange   PortRange

	mu    sync.Mutex
	table map[NatKey]OriginValue
}

// NewRewriter builds a Rewriter with an empty NAT table and the default
// port range.
func NewRewriter(clusterCIDR NetworkInfo, hostIP [4]byte) *Rewriter {
	return &Rewriter{
		ClusterCIDR: clusterCIDR,
		HostIP:      hostIP,
		NodeIPs:     make(map[uint32]struct{}),
		PortRange:   DefaultPortRange,
		table:       make(map[NatKey]OriginValue),
	}
}

// isInternal reports whether ip falls inside the cluster CIDR, or is
// itself a known node IP — the original implementation treats a
// packet's destination as "internal" under either condition, since
// node-to-node traffic over the overlay shouldn't be SNATed even
// though a node's own IP doesn't necessarily fall inside the pod CIDR.
func (r *Rewriter) isInternal(ip [4]byte) bool {
	v := ipToUint32(ip[:])
	if v&r.ClusterCIDR.SubnetMask == r.ClusterCIDR.IP&r.ClusterCIDR.SubnetMask {
		return true
	}
	return r.isNodeIP(ip)
}

// isNodeIP reports whether ip is one of the cluster's node IPs.
func (r *Rewriter) isNodeIP(ip [4]byte) bool {
	_, ok := r.NodeIPs[ipToUint32(ip[:])]
	return ok
}

// Egress runs the SNAT path: packets leaving the pod network bound for
// something outside the cluster get their source address rewritten to
// the host IP and their source port remapped into the NAT port range,
// with the translation recorded so the matching reply can be reversed
// on ingress. Traffic whose destination is internal (S6) passes
// through untouched — the cluster's own routing already gets it there.
func (r *Rewriter) Egress(pkt *Packet) (Verdict, error) {
	dstIP := pkt.DstIP()
	if r.isInternal(dstIP) {
		return VerdictPass, nil
	}

	srcIP := pkt.SrcIP()
	srcPort := pkt.SrcPort()
	dstPort := pkt.DstPort()

	// Already host-sourced (e.g. a reply the ingress path just rewrote
	// back onto the wire): don't SNAT it a second time.
	if r.isNodeIP(srcIP) {
		return VerdictPass, nil
	}

	natPort := r.allocatePort(srcIP, srcPort, dstIP, dstPort)

	// Translations are never evicted from the table.
	r.mu.Lock()
	r.table[NatKey{
		SrcIP:   ipToUint32(r.HostIP[:]),
		DstIP:   ipToUint32(dstIP[:]),
		SrcPort: natPort,
		DstPort: dstPort,
	}] = OriginValue{IP: ipToUint32(srcIP[:]), Port: srcPort}
	r.mu.Unlock()

	pkt.SetSrcPort(natPort)
	pkt.SetSrcIP(r.HostIP)
	return VerdictPass, nil
}

// Ingress runs the de-NAT path: a reply packet addressed to the host's
// NAT port is looked up by its reversed 4-tuple and, on a hit, has its
// destination rewritten back to the pod that originated the
// connection. A miss (no matching translation) passes the packet
// through unchanged — it either isn't NAT-related traffic or belongs to
// a connection this host never originated.
func (r *Rewriter) Ingress(pkt *Packet) (Verdict, error) {
	// Traffic originating inside the cluster (or from a node) never went
	// through egress SNAT, so there's nothing to reverse.
	if r.isInternal(pkt.SrcIP()) {
		return VerdictPass, nil
	}

	dstIP := pkt.DstIP()
	dstPort := pkt.DstPort()

	key := NatKey{
		SrcIP:   ipToUint32(dstIP[:]),
		DstIP:   ipToUint32(pkt.SrcIP()[:]),
		SrcPort: dstPort,
		DstPort: pkt.SrcPort(),
	}

	r.mu.Lock()
	origin, ok := r.table[key]
	r.mu.Unlock()
	if !ok {
		return VerdictPass, nil
	}

	// The recorded origin already matches the packet's current
	// destination: the translation was already reversed (or never
	// needed), so don't rewrite again.
	if origin.IP == ipToUint32(dstIP[:]) && origin.Port == dstPort {
		return VerdictPass, nil
	}

	pkt.SetDstIP(uint32ToIP(origin.IP))
	pkt.SetDstPort(origin.Port)
	return VerdictPass, nil
}

// allocatePort tries to keep the connection's original source port if
// it already falls in the NAT range and isn't in use for this
// destination, and otherwise scans the range for the first free slot —
// the reference equivalent of snat_try_keep_port followed by
// snat_clamp_port_range.
func (r *Rewriter) allocatePort(srcIP [4]byte, origPort uint16, dstIP [4]byte, dstPort uint16) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	inUse := func(port uint16) bool {
		_, ok := r.table[NatKey{
			SrcIP:   ipToUint32(r.HostIP[:]),
			DstIP:   ipToUint32(dstIP[:]),
			SrcPort: port,
			DstPort: dstPort,
		}]
		return ok
	}

	if origPort >= r.PortRange.Start && origPort <= r.PortRange.End && !inUse(origPort) {
		return origPort
	}
	for port := r.PortRange.Start; port <= r.PortRange.End; port++ {
		if !inUse(port) {
			return port
		}
		if port == r.PortRange.End {
			break
		}
	}
	return origPort
}
