package netlink

import (
	"encoding/binary"
	"net"
)

// rtmsg is fixed at 12 bytes: family(1) + dst_len(1) + src_len(1) +
// tos(1) + table(1) + protocol(1) + scope(1) + type(1) + flags(4).
const rtmsgLen = 12

// Route describes a unicast route: destination prefix, optional gateway
// and preferred source, and the egress link. Grounded on RouteHandle's
// RouteMessage construction in the reference implementation.
type Route struct {
	LinkIndex int32
	Dst       *net.IPNet // nil means the default route
	Gw        net.IP
	Via       *Via // nexthop in a different address family than Dst
	Src       net.IP // preferred source (RTA_PREFSRC)
	Table     uint8
	Scope     uint8
	Protocol  uint8
	OnLink    bool
}

// Via is a nexthop address in a family possibly different from the
// route's destination family, e.g. an IPv6 nexthop for an IPv4
// destination reached over a point-to-point overlay link. Encoded as
// RTA_VIA: a 2-byte native-endian rtvia_family followed by the raw
// address bytes.
type Via struct {
	Family uint8
	Addr   net.IP
}

func (v Via) serialize() []byte {
	addr := v.Addr.To4()
	if v.Family == afInet6 {
		addr = v.Addr.To16()
	}
	b := make([]byte, 2+len(addr))
	binary.LittleEndian.PutUint16(b[0:2], uint16(v.Family))
	copy(b[2:], addr)
	return b
}

func (r Route) family() uint8 {
	switch {
	case r.Dst != nil:
		if r.Dst.IP.To4() != nil {
			return afInet
		}
		return afInet6
	case r.Gw != nil:
		if r.Gw.To4() != nil {
			return afInet
		}
		return afInet6
	default:
		return afInet
	}
}

// RouteHandle issues RTM_*ROUTE requests.
type RouteHandle struct {
	req *Requester
}

func NewRouteHandle(req *Requester) *RouteHandle {
	return &RouteHandle{req: req}
}

func buildRtmsg(family uint8, dstLen, srcLen, table, protocol, scope, rtype uint8, flags uint32) []byte {
	b := make([]byte, rtmsgLen)
	b[0] = family
	b[1] = dstLen
	b[2] = srcLen
	b[3] = 0 // tos
	b[4] = table
	b[5] = protocol
	b[6] = scope
	b[7] = rtype
	binary.LittleEndian.PutUint32(b[8:12], flags)
	return b
}

// routeAttrs builds RTA_DST/RTA_OIF/RTA_PREFSRC and then either RTA_VIA
// (when r.Via is set) or RTA_GATEWAY, in the order used by
// RouteHandle::handle, bailing with ErrFamilyMismatch if dst/src/gw
// disagree on address family. RTA_VIA carries its own family, so a Via
// nexthop is not checked against the destination's family.
func routeAttrs(r *Route) ([]Attr, error) {
	fam := r.family()
	var attrs []Attr

	if r.Dst != nil {
		ip := ipBytes(r.Dst.IP, fam)
		if ip == nil {
			return nil, ErrFamilyMismatch
		}
		attrs = append(attrs, NewAttr(rtaDst, ip))
	}

	if r.LinkIndex != 0 {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(r.LinkIndex))
		attrs = append(attrs, NewAttr(rtaOif, b))
	}

	if r.Src != nil {
		ip := ipBytes(r.Src, fam)
		if ip == nil {
			return nil, ErrFamilyMismatch
		}
		attrs = append(attrs, NewAttr(rtaPrefsrc, ip))
	}

	switch {
	case r.Via != nil:
		attrs = append(attrs, NewAttr(rtaVia, r.Via.serialize()))
	case r.Gw != nil:
		ip := ipBytes(r.Gw, fam)
		if ip == nil {
			return nil, ErrFamilyMismatch
		}
		attrs = append(attrs, NewAttr(rtaGateway, ip))
	}

	return attrs, nil
}

func ipBytes(ip net.IP, family uint8) []byte {
	if family == afInet {
		return ip.To4()
	}
	return ip.To16()
}

// Add installs the route (RTM_NEWROUTE, create+excl+ack, matching
// link.go's Add: EXCL makes a pre-existing route a soft EEXIST below
// rather than a silent replace, which is what lets repeated calls from
// the datapath programmer converge idempotently instead of churning
// the route on every run).
func (h *RouteHandle) Add(r *Route) error {
	dstLen := 0
	if r.Dst != nil {
		dstLen, _ = r.Dst.Mask.Size()
	}

	table := r.Table
	if table == 0 {
		table = rtTableMain
	}
	protocol := r.Protocol
	if protocol == 0 {
		protocol = rtprotBoot
	}
	scope := r.Scope
	if scope == 0 {
		scope = rtScopeUniverse
	}

	var flags uint32
	if r.OnLink {
		flags |= rtnhFOnlink
	}

	msg := NewMessage(rtmNewRoute, nlmFCreate|nlmFExcl|nlmFAck)
	msg.Add(buildRtmsg(r.family(), uint8(dstLen), 0, table, protocol, scope, rtnUnicast, flags))

	attrs, err := routeAttrs(r)
	if err != nil {
		return err
	}
	msg.Add(SerializeAttrs(attrs))

	_, err = h.req.Do(msg)
	if kerr, ok := err.(*KernelError); ok && kerr.IsExist() {
		return nil
	}
	return err
}

// Delete removes the route.
func (h *RouteHandle) Delete(r *Route) error {
	dstLen := 0
	if r.Dst != nil {
		dstLen, _ = r.Dst.Mask.Size()
	}

	msg := NewMessage(rtmDelRoute, nlmFAck)
	msg.Add(buildRtmsg(r.family(), uint8(dstLen), 0, rtTableMain, 0, rtScopeNowhere, rtnUnicast, 0))

	attrs, err := routeAttrs(r)
	if err != nil {
		return err
	}
	msg.Add(SerializeAttrs(attrs))

	_, err = h.req.Do(msg)
	return err
}

// Get performs a route lookup for dst (RTM_GETROUTE with
// RTM_F_LOOKUP_TABLE set on the rtmsg flags, matching RouteHandle::get).
func (h *RouteHandle) Get(dst net.IP) (*Route, error) {
	fam := afInet
	if dst.To4() == nil {
		fam = afInet6
	}
	bits := 32
	if fam == afInet6 {
		bits = 128
	}

	msg := NewMessage(rtmGetRoute, 0)
	msg.Add(buildRtmsg(uint8(fam), uint8(bits), 0, 0, 0, 0, 0, rtmFLookupTable))
	msg.Add(NewAttr(rtaDst, ipBytes(dst, uint8(fam))).Serialize())

	payloads, err := h.req.Do(msg)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, ErrNotFound
	}
	if len(payloads) > 1 {
		return nil, ErrAmbiguous
	}

	return decodeRoute(payloads[0])
}

func decodeRoute(payload []byte) (*Route, error) {
	if len(payload) < rtmsgLen {
		return nil, &CodecError{Reason: "short rtmsg"}
	}
	family := payload[0]
	dstLen := payload[1]
	scope := payload[6]
	table := payload[4]

	m := NewAttrMap(ParseAttrs(payload[rtmsgLen:]))

	r := &Route{Table: table, Scope: scope}
	if raw, ok := m.Bytes(rtaDst); ok {
		bits := 32
		if family == afInet6 {
			bits = 128
		}
		r.Dst = &net.IPNet{IP: net.IP(raw), Mask: net.CIDRMask(int(dstLen), bits)}
	}
	if raw, ok := m.Bytes(rtaGateway); ok {
		r.Gw = net.IP(raw)
	}
	if raw, ok := m.Bytes(rtaPrefsrc); ok {
		r.Src = net.IP(raw)
	}
	if oif, ok := m.U32(rtaOif); ok {
		r.LinkIndex = int32(oif)
	}

	return r, nil
}
