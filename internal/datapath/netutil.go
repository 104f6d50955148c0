package datapath

import (
	"net"
	"net/netip"
)

// firstHostAddress returns network-address+1 within prefix, the
// convention used for both the bridge gateway address and a peer's
// VXLAN-reachable gateway address.
func firstHostAddress(prefix netip.Prefix) netip.Addr {
	network := prefix.Masked().Addr()
	b := network.AsSlice()
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			break
		}
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

// prefixToIPNet converts a netip.Prefix to the net.IPNet shape the
// netlink package's Address/Route types consume.
func prefixToIPNet(prefix netip.Prefix) *net.IPNet {
	bits := prefix.Bits()
	total := 32
	if prefix.Addr().Is6() {
		total = 128
	}
	return &net.IPNet{
		IP:   netipAddrToIP(prefix.Addr()),
		Mask: net.CIDRMask(bits, total),
	}
}

func netipAddrToIP(a netip.Addr) net.IP {
	return net.IP(a.AsSlice())
}
