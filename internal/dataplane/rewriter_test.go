package dataplane

import "testing"

func clusterCIDR() NetworkInfo {
	return NetworkInfo{IP: ipToUint32(ip4("10.244.0.0")[:]), SubnetMask: ipToUint32(ip4("255.255.0.0")[:])}
}

// TestEgressSNATsExternalTraffic covers the egress NAT scenario: a pod
// packet bound for an address outside the cluster CIDR gets its source
// rewritten to the host IP and a NAT port drawn from the configured
// range, with a reversible translation recorded.
func TestEgressSNATsExternalTraffic(t *testing.T) {
	hostIP := ip4("10.0.0.1")
	rw := NewRewriter(clusterCIDR(), hostIP)

	podIP := ip4("10.244.0.5")
	pkt := buildTCPPacket(podIP, ip4("8.8.8.8"), 4000, 443)

	if _, err := rw.Egress(pkt); err != nil {
		t.Fatalf("Egress: %v", err)
	}

	if got := pkt.SrcIP(); got != hostIP {
		t.Errorf("src IP = %v, want host IP %v", got, hostIP)
	}
	natPort := pkt.SrcPort()
	if natPort < rw.PortRange.Start || natPort > rw.PortRange.End {
		t.Errorf("nat port %d outside range [%d,%d]", natPort, rw.PortRange.Start, rw.PortRange.End)
	}

	key := NatKey{
		SrcIP:   ipToUint32(hostIP[:]),
		DstIP:   ipToUint32(ip4("8.8.8.8")[:]),
		SrcPort: natPort,
		DstPort: 443,
	}
	origin, ok := rw.table[key]
	if !ok {
		t.Fatal("expected NAT table entry after egress rewrite")
	}
	if origin.IP != ipToUint32(podIP[:]) || origin.Port != 4000 {
		t.Errorf("origin = %+v, want ip=%v port=4000", origin, podIP)
	}
}

// TestIngressDeNATsReplyTraffic covers the ingress de-NAT scenario: a
// reply packet addressed to the host's NAT-assigned port gets its
// destination rewritten back to the originating pod.
func TestIngressDeNATsReplyTraffic(t *testing.T) {
	hostIP := ip4("10.0.0.1")
	rw := NewRewriter(clusterCIDR(), hostIP)

	podIP := ip4("10.244.0.5")
	egressPkt := buildTCPPacket(podIP, ip4("8.8.8.8"), 4000, 443)
	if _, err := rw.Egress(egressPkt); err != nil {
		t.Fatalf("Egress: %v", err)
	}
	natPort := egressPkt.SrcPort()

	reply := buildTCPPacket(ip4("8.8.8.8"), hostIP, 443, natPort)
	if _, err := rw.Ingress(reply); err != nil {
		t.Fatalf("Ingress: %v", err)
	}

	if got := reply.DstIP(); got != podIP {
		t.Errorf("dst IP = %v, want pod IP %v", got, podIP)
	}
	if got := reply.DstPort(); got != 4000 {
		t.Errorf("dst port = %d, want 4000", got)
	}
}

// TestIngressPassesThroughUnmatchedTraffic covers the NAT-passthrough
// scenario: a packet with no corresponding translation (e.g. ordinary
// intra-cluster traffic reaching this host's ingress path) passes
// through with its destination untouched.
func TestIngressPassesThroughUnmatchedTraffic(t *testing.T) {
	hostIP := ip4("10.0.0.1")
	rw := NewRewriter(clusterCIDR(), hostIP)

	pkt := buildTCPPacket(ip4("10.244.0.9"), ip4("10.244.0.5"), 5555, 80)
	dstBefore, portBefore := pkt.DstIP(), pkt.DstPort()

	if _, err := rw.Ingress(pkt); err != nil {
		t.Fatalf("Ingress: %v", err)
	}

	if pkt.DstIP() != dstBefore || pkt.DstPort() != portBefore {
		t.Error("passthrough packet was rewritten, want unchanged")
	}
}

// TestEgressPassesThroughIntraClusterTraffic covers the NAT-passthrough
// scenario from the egress side: pod-to-pod traffic destined inside the
// cluster CIDR is never SNATed.
func TestEgressPassesThroughIntraClusterTraffic(t *testing.T) {
	rw := NewRewriter(clusterCIDR(), ip4("10.0.0.1"))

	podSrc := ip4("10.244.0.9")
	pkt := buildTCPPacket(podSrc, ip4("10.244.0.5"), 5555, 80)

	if _, err := rw.Egress(pkt); err != nil {
		t.Fatalf("Egress: %v", err)
	}
	if pkt.SrcIP() != podSrc {
		t.Error("intra-cluster packet was SNATed, want unchanged")
	}
	if len(rw.table) != 0 {
		t.Errorf("NAT table entries = %d, want 0 for intra-cluster traffic", len(rw.table))
	}
}

func TestIsInternalTreatsNodeIPsAsInternal(t *testing.T) {
	rw := NewRewriter(clusterCIDR(), ip4("10.0.0.1"))
	nodeIP := ip4("10.0.0.2")
	rw.NodeIPs[ipToUint32(nodeIP[:])] = struct{}{}

	if !rw.isInternal(nodeIP) {
		t.Error("node IP outside pod CIDR should still be treated as internal")
	}
}

func TestAllocatePortKeepsOriginalWhenFree(t *testing.T) {
	rw := NewRewriter(clusterCIDR(), ip4("10.0.0.1"))
	port := rw.allocatePort(ip4("10.244.0.5"), 40000, ip4("8.8.8.8"), 443)
	if port != 40000 {
		t.Errorf("allocatePort = %d, want 40000 (in range and free)", port)
	}
}

func TestAllocatePortFallsBackWhenOutOfRange(t *testing.T) {
	rw := NewRewriter(clusterCIDR(), ip4("10.0.0.1"))
	port := rw.allocatePort(ip4("10.244.0.5"), 1234, ip4("8.8.8.8"), 443)
	if port < rw.PortRange.Start || port > rw.PortRange.End {
		t.Errorf("allocatePort = %d, want value in [%d,%d]", port, rw.PortRange.Start, rw.PortRange.End)
	}
}
