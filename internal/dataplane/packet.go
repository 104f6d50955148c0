package dataplane

import (
	"encoding/binary"
	"errors"
)

// Fixed header lengths this program understands. Like the kernel
// program it mirrors, it only parses the minimal fixed-size forms
// (no VLAN tags, no IP or TCP options) — anything else is left alone.
const (
	ethHdrLen = 14
	ipHdrLen  = 20
	tcpHdrLen = 20

	ethTypeIPv4 = 0x0800
	ipProtoTCP  = 6
)

var errTooShort = errors.New("dataplane: packet too short for ethernet+ipv4+tcp headers")
var errNotIPv4TCP = errors.New("dataplane: not an IPv4/TCP packet")

// Packet wraps a raw Ethernet frame and exposes the IPv4/TCP header
// fields the rewriter needs, mutating Data in place exactly as the
// kernel program mutates the skb it's handed.
type Packet struct {
	Data []byte
}

// ParsePacket validates that b is at least long enough to hold an
// Ethernet+IPv4+TCP header and that its ethertype/protocol are IPv4/TCP,
// the same upfront check tc_egress/tc_ingress perform before doing any
// rewriting.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < ethHdrLen+ipHdrLen+tcpHdrLen {
		return nil, errTooShort
	}
	p := &Packet{Data: b}
	if binary.BigEndian.Uint16(b[12:14]) != ethTypeIPv4 {
		return nil, errNotIPv4TCP
	}
	if p.ipProto() != ipProtoTCP {
		return nil, errNotIPv4TCP
	}
	return p, nil
}

func (p *Packet) ipOff() int  { return ethHdrLen }
func (p *Packet) tcpOff() int { return ethHdrLen + ipHdrLen }

func (p *Packet) ipProto() uint8 { return p.Data[p.ipOff()+9] }

func (p *Packet) SrcIP() [4]byte {
	var b [4]byte
	copy(b[:], p.Data[p.ipOff()+12:p.ipOff()+16])
	return b
}

func (p *Packet) DstIP() [4]byte {
	var b [4]byte
	copy(b[:], p.Data[p.ipOff()+16:p.ipOff()+20])
	return b
}

func (p *Packet) SrcPort() uint16 {
	return binary.BigEndian.Uint16(p.Data[p.tcpOff() : p.tcpOff()+2])
}

func (p *Packet) DstPort() uint16 {
	return binary.BigEndian.Uint16(p.Data[p.tcpOff()+2 : p.tcpOff()+4])
}

func (p *Packet) ipChecksum() uint16 {
	off := p.ipOff() + 10
	return binary.BigEndian.Uint16(p.Data[off : off+2])
}

func (p *Packet) setIPChecksum(v uint16) {
	off := p.ipOff() + 10
	binary.BigEndian.PutUint16(p.Data[off:off+2], v)
}

func (p *Packet) tcpChecksum() uint16 {
	off := p.tcpOff() + 16
	return binary.BigEndian.Uint16(p.Data[off : off+2])
}

func (p *Packet) setTCPChecksum(v uint16) {
	off := p.tcpOff() + 16
	binary.BigEndian.PutUint16(p.Data[off:off+2], v)
}

// SetSrcIP rewrites the IPv4 source address and patches the IP and TCP
// checksums incrementally for the address delta, mirroring
// snat_v4_rewrite_headers's address-rewrite half (bpf_csum_diff over the
// old/new address, then l3_csum_replace + l4_csum_replace with
// BPF_F_PSEUDO_HDR).
func (p *Packet) SetSrcIP(ip [4]byte) {
	old := p.SrcIP()
	off := p.ipOff() + 12
	copy(p.Data[off:off+4], ip[:])

	p.setIPChecksum(checksumAdjust(p.ipChecksum(), old[:], ip[:]))
	p.setTCPChecksum(checksumAdjust(p.tcpChecksum(), old[:], ip[:]))
}

// SetDstIP is SetSrcIP's mirror image, used on the ingress (de-NAT) path.
func (p *Packet) SetDstIP(ip [4]byte) {
	old := p.DstIP()
	off := p.ipOff() + 16
	copy(p.Data[off:off+4], ip[:])

	p.setIPChecksum(checksumAdjust(p.ipChecksum(), old[:], ip[:]))
	p.setTCPChecksum(checksumAdjust(p.tcpChecksum(), old[:], ip[:]))
}

// SetSrcPort rewrites the TCP source port and patches the TCP checksum
// for the two-byte field change, mirroring snat_v4_rewrite_headers's
// l4_csum_replace(..., old_port, new_port, size=2) call.
func (p *Packet) SetSrcPort(port uint16) {
	old := p.SrcPort()
	var oldB, newB [2]byte
	binary.BigEndian.PutUint16(oldB[:], old)
	binary.BigEndian.PutUint16(newB[:], port)

	binary.BigEndian.PutUint16(p.Data[p.tcpOff():p.tcpOff()+2], port)
	p.setTCPChecksum(checksumAdjust(p.tcpChecksum(), oldB[:], newB[:]))
}

// SetDstPort is SetSrcPort's mirror image, used on the ingress path.
func (p *Packet) SetDstPort(port uint16) {
	old := p.DstPort()
	var oldB, newB [2]byte
	binary.BigEndian.PutUint16(oldB[:], old)
	binary.BigEndian.PutUint16(newB[:], port)

	binary.BigEndian.PutUint16(p.Data[p.tcpOff()+2:p.tcpOff()+4], port)
	p.setTCPChecksum(checksumAdjust(p.tcpChecksum(), oldB[:], newB[:]))
}
