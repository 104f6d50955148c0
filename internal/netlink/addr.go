package netlink

import (
	"encoding/binary"
	"net"
)

// ifaddrmsg is fixed at 8 bytes: family(1) + prefixlen(1) + flags(1) +
// scope(1) + index(4).
const ifaddrmsgLen = 8

// Address is a decoded (or to-be-created) IP address assignment on a
// link, grounded on the Address type in the reference implementation.
type Address struct {
	LinkIndex int32
	IPNet     *net.IPNet
	Label     string
	Scope     uint8
	Broadcast net.IP
}

func (a Address) family() uint8 {
	if a.IPNet.IP.To4() != nil {
		return afInet
	}
	return afInet6
}

// AddrHandle issues RTM_*ADDR requests.
type AddrHandle struct {
	req *Requester
}

func NewAddrHandle(req *Requester) *AddrHandle {
	return &AddrHandle{req: req}
}

func buildIfaddrmsg(family uint8, prefixLen, scope uint8, index int32) []byte {
	b := make([]byte, ifaddrmsgLen)
	b[0] = family
	b[1] = prefixLen
	b[2] = 0
	b[3] = scope
	binary.LittleEndian.PutUint32(b[4:8], uint32(index))
	return b
}

func (h *AddrHandle) addrAttrs(a *Address) []Attr {
	var attrs []Attr
	ip := a.IPNet.IP
	if ip4 := ip.To4(); ip4 != nil {
		attrs = append(attrs, NewAttr(ifaLocal, ip4))
		attrs = append(attrs, NewAttr(ifaAddress, ip4))
	} else {
		ip16 := ip.To16()
		attrs = append(attrs, NewAttr(ifaLocal, ip16))
		attrs = append(attrs, NewAttr(ifaAddress, ip16))
	}
	if a.Broadcast != nil {
		if bc4 := a.Broadcast.To4(); bc4 != nil {
			attrs = append(attrs, NewAttr(ifaBroadcast, bc4))
		}
	}
	if a.Label != "" {
		attrs = append(attrs, NewAttr(ifaLabel, zeroTerminated(a.Label)))
	}
	return attrs
}

// Add assigns a new address to the link, replacing any existing one on
// the same prefix (NLM_F_REPLACE), matching the idempotent-provisioning
// contract the datapath programmer depends on.
func (h *AddrHandle) Add(a *Address) error {
	prefixLen, _ := a.IPNet.Mask.Size()

	msg := NewMessage(rtmNewAddr, nlmFCreate|nlmFReplace|nlmFAck)
	msg.Add(buildIfaddrmsg(a.family(), uint8(prefixLen), a.Scope, a.LinkIndex))
	msg.Add(SerializeAttrs(h.addrAttrs(a)))

	_, err := h.req.Do(msg)
	return err
}

// Delete removes the address from the link.
func (h *AddrHandle) Delete(a *Address) error {
	prefixLen, _ := a.IPNet.Mask.Size()

	msg := NewMessage(rtmDelAddr, nlmFAck)
	msg.Add(buildIfaddrmsg(a.family(), uint8(prefixLen), a.Scope, a.LinkIndex))
	msg.Add(SerializeAttrs(h.addrAttrs(a)))

	_, err := h.req.Do(msg)
	return err
}

// List returns every address assigned to the link.
func (h *AddrHandle) List(linkIndex int32) ([]Address, error) {
	msg := NewMessage(rtmGetAddr, nlmFDump)
	msg.Add(buildIfaddrmsg(afUnspec, 0, 0, 0))

	payloads, err := h.req.Do(msg)
	if err != nil {
		return nil, err
	}

	var out []Address
	for _, p := range payloads {
		a, index, err := decodeAddr(p)
		if err != nil {
			return nil, err
		}
		if linkIndex != 0 && index != linkIndex {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAddr(payload []byte) (Address, int32, error) {
	if len(payload) < ifaddrmsgLen {
		return Address{}, 0, &CodecError{Reason: "short ifaddrmsg"}
	}
	family := payload[0]
	prefixLen := payload[1]
	scope := payload[3]
	index := int32(binary.LittleEndian.Uint32(payload[4:8]))

	m := NewAttrMap(ParseAttrs(payload[ifaddrmsgLen:]))

	var ip net.IP
	if raw, ok := m.Bytes(ifaLocal); ok {
		ip = net.IP(raw)
	} else if raw, ok := m.Bytes(ifaAddress); ok {
		ip = net.IP(raw)
	}

	bits := 32
	if family == afInet6 {
		bits = 128
	}

	a := Address{
		LinkIndex: index,
		IPNet:     &net.IPNet{IP: ip, Mask: net.CIDRMask(int(prefixLen), bits)},
		Scope:     scope,
	}
	if label, ok := m.String(ifaLabel); ok {
		a.Label = label
	}
	if bc, ok := m.Bytes(ifaBroadcast); ok {
		a.Broadcast = net.IP(bc)
	}

	return a, index, nil
}
