// Package datapath idempotently programs the overlay network's bridge,
// VXLAN device, and per-peer routes/neighbors onto the host, given a
// resolved view of the cluster (host IP, cluster CIDR, pod CIDR, and
// the set of known peer pod CIDRs).
package datapath

import (
	"crypto/rand"
	"net"
)

// RandomUnicastMAC returns 6 bytes forced into the locally-administered,
// unicast address space (first byte: (b|0x02)&0xFE), matching the VXLAN
// device MAC generation step of the bridge/VXLAN setup sequence.
func RandomUnicastMAC() (net.HardwareAddr, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	b[0] = (b[0] | 0x02) & 0xFE
	return net.HardwareAddr(b), nil
}
