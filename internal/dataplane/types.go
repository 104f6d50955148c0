// Package dataplane implements the overlay's SNAT/de-SNAT packet
// rewriting logic: the per-packet classification and header-rewrite
// algorithm is authored once as a pure-Go reference state machine
// (rewriter.go), unit-testable without a kernel, and again as a
// loadable TC classifier program (program.go) built with
// github.com/cilium/ebpf for actual attachment to the uplink.
package dataplane

import "encoding/binary"

// NatKey identifies one SNAT translation, keyed the same way on both
// insertion (egress) and lookup (ingress): {nat-side ip/port, peer-side
// ip/port}. All fields are host-order in this Go port; the eBPF
// original stores them in network byte order and converts at the map
// boundary, a detail that doesn't change the algorithm's externally
// observable behavior.
type NatKey struct {
	SrcIP   uint32
	DstIP   uint32
	SrcPort uint16
	DstPort uint16
}

// OriginValue records the original (pre-NAT) source the packet carried,
// so a later reply can be de-NATed back to it. Dummy preserves the
// original struct's padding field — unused, kept only so the map's
// value layout matches the wire-facing type the cilium/ebpf-backed
// program shares with this package.
type OriginValue struct {
	IP    uint32
	Dummy uint16
	Port  uint16
}

// NetworkInfo is a CIDR: an IP and its subnet mask, both host-order.
// NET_CONFIG_MAP stores exactly two of these, keyed by NetConfigCluster
// and NetConfigHost below.
type NetworkInfo struct {
	IP         uint32
	SubnetMask uint32
}

// NET_CONFIG_MAP keys.
const (
	NetConfigCluster uint8 = 0
	NetConfigHost    uint8 = 1
)

// SockKey identifies one established TCP socket for the sockops/sk_msg
// intra-host shortcut (see sockops.go).
type SockKey struct {
	SrcIP   uint32
	DstIP   uint32
	SrcPort uint32
	DstPort uint32
	Family  uint32
}

// Verdict mirrors the TC_ACT_* outcomes of the classifier program.
type Verdict int

const (
	// VerdictPass lets the packet continue through the stack unchanged
	// (TC_ACT_PIPE in the reference implementation — this program never
	// terminates the pipeline itself, only modifies or leaves packets).
	VerdictPass Verdict = iota
	// VerdictShot drops the packet (TC_ACT_SHOT), reserved for parse
	// failures on headers the program has committed to reading.
	VerdictShot
)

func (v Verdict) String() string {
	if v == VerdictShot {
		return "shot"
	}
	return "pass"
}

// ipToUint32 and uint32ToIP convert between a 4-byte big-endian address
// and its host-order numeric form, matching the eBPF original's
// u32::from_be/.to_be conversions at the map boundary.
func ipToUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func uint32ToIP(v uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b
}
