package netlink

import (
	"net"
	"testing"
)

func TestRouteAttrsFamilyMismatch(t *testing.T) {
	_, dst, _ := net.ParseCIDR("10.244.1.0/24")
	r := &Route{Dst: dst, Gw: net.ParseIP("fd00::1")}

	if _, err := routeAttrs(r); err != ErrFamilyMismatch {
		t.Fatalf("err = %v, want ErrFamilyMismatch", err)
	}
}

func TestRouteAttrsOrderAndValues(t *testing.T) {
	_, dst, _ := net.ParseCIDR("10.244.1.0/24")
	r := &Route{
		Dst:       dst,
		LinkIndex: 5,
		Gw:        net.ParseIP("10.244.0.1"),
	}

	attrs, err := routeAttrs(r)
	if err != nil {
		t.Fatalf("routeAttrs: %v", err)
	}
	m := NewAttrMap(attrs)

	if oif, ok := m.U32(rtaOif); !ok || oif != 5 {
		t.Errorf("RTA_OIF = %d, %v, want 5, true", oif, ok)
	}
	gwBytes, ok := m.Bytes(rtaGateway)
	if !ok || !net.IP(gwBytes).Equal(net.ParseIP("10.244.0.1")) {
		t.Errorf("RTA_GATEWAY = %v, ok=%v", gwBytes, ok)
	}
}

func TestDecodeRouteRoundTrip(t *testing.T) {
	dst := net.ParseIP("10.244.2.0").To4()
	rtm := buildRtmsg(afInet, 24, 0, rtTableMain, rtprotBoot, rtScopeLink, rtnUnicast, 0)
	attrs := SerializeAttrs([]Attr{
		NewAttr(rtaDst, dst),
		NewAttr(rtaOif, u32le(7)),
	})
	payload := append(rtm, attrs...)

	r, err := decodeRoute(payload)
	if err != nil {
		t.Fatalf("decodeRoute: %v", err)
	}
	if r.LinkIndex != 7 {
		t.Errorf("LinkIndex = %d, want 7", r.LinkIndex)
	}
	if ones, _ := r.Dst.Mask.Size(); ones != 24 {
		t.Errorf("mask size = %d, want 24", ones)
	}
	if !r.Dst.IP.Equal(dst) {
		t.Errorf("Dst.IP = %v, want %v", r.Dst.IP, dst)
	}
	if r.Scope != rtScopeLink {
		t.Errorf("Scope = %d, want %d", r.Scope, rtScopeLink)
	}
}

func TestRouteAttrsViaCrossFamily(t *testing.T) {
	_, dst, _ := net.ParseCIDR("192.168.0.0/24")
	r := &Route{
		LinkIndex: 1,
		Dst:       dst,
		Via:       &Via{Family: afInet6, Addr: net.ParseIP("2001::1")},
	}

	attrs, err := routeAttrs(r)
	if err != nil {
		t.Fatalf("routeAttrs: %v", err)
	}
	m := NewAttrMap(attrs)

	via, ok := m.Bytes(rtaVia)
	if !ok {
		t.Fatal("expected RTA_VIA attribute")
	}
	if len(via) != 18 {
		t.Fatalf("RTA_VIA len = %d, want 18 (2-byte family + 16-byte address)", len(via))
	}
	if via[0] != 0x0A || via[1] != 0x00 {
		t.Errorf("RTA_VIA family bytes = %#x %#x, want 0A 00", via[0], via[1])
	}
	if !net.IP(via[2:]).Equal(net.ParseIP("2001::1")) {
		t.Errorf("RTA_VIA address = %v, want 2001::1", net.IP(via[2:]))
	}
}

func TestRouteGetSetsLookupTableFlag(t *testing.T) {
	buf := buildRtmsg(afInet, 32, 0, 0, 0, 0, 0, rtmFLookupTable)
	flags := u32FromBuf(buf[8:12])
	if flags != rtmFLookupTable {
		t.Errorf("rtm_flags = %#x, want %#x", flags, rtmFLookupTable)
	}
}

func u32FromBuf(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
