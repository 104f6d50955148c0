package dataplane

import (
	"encoding/binary"
	"net"
)

// buildTCPPacket constructs a minimal well-formed Ethernet+IPv4+TCP
// frame (no options, no payload) with correct IP and TCP checksums, so
// tests can assert that rewriting preserves checksum validity rather
// than just matching bytes.
func buildTCPPacket(srcIP, dstIP [4]byte, srcPort, dstPort uint16) *Packet {
	buf := make([]byte, ethHdrLen+ipHdrLen+tcpHdrLen)

	binary.BigEndian.PutUint16(buf[12:14], ethTypeIPv4)

	ip := buf[ethHdrLen:]
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipHdrLen+tcpHdrLen))
	ip[8] = 64 // TTL
	ip[9] = ipProtoTCP
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])
	binary.BigEndian.PutUint16(ip[10:12], fullChecksum(ip[:ipHdrLen]))

	tcp := buf[ethHdrLen+ipHdrLen:]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	tcp[12] = 5 << 4 // data offset, no options

	pseudo := tcpPseudoHeaderChecksum(srcIP, dstIP, tcpHdrLen)
	binary.BigEndian.PutUint16(tcp[16:18], ^foldChecksum(pseudo+sum16(tcp[:tcpHdrLen]))&0xffff)

	return &Packet{Data: buf}
}

// ip4 parses a dotted-quad IPv4 literal into its 4-byte form, panicking
// on malformed input — only ever called with literal test fixtures.
func ip4(s string) [4]byte {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		panic("dataplane: invalid test IPv4 literal " + s)
	}
	var b [4]byte
	copy(b[:], ip)
	return b
}
