package netlink

import (
	"bytes"
	"testing"
)

func TestAttrSerializeRoundTrip(t *testing.T) {
	a := NewAttr(iflaIfname, zeroTerminated("vxlan0"))
	buf := a.Serialize()

	parsed := ParseAttrs(buf)
	if len(parsed) != 1 {
		t.Fatalf("got %d attrs, want 1", len(parsed))
	}
	if parsed[0].Type != iflaIfname {
		t.Errorf("Type = %d, want %d", parsed[0].Type, iflaIfname)
	}
	if got, _ := NewAttrMap(parsed).String(iflaIfname); got != "vxlan0" {
		t.Errorf("String() = %q, want %q", got, "vxlan0")
	}
}

func TestAttrSerializePadsTo4Bytes(t *testing.T) {
	// A 1-byte value gives a 5-byte attribute, which must pad to 8.
	a := NewAttr(iflaVxlanTTL, []byte{64})
	buf := a.Serialize()
	if len(buf)%nlmsgAlignTo != 0 {
		t.Fatalf("serialized length %d is not 4-byte aligned", len(buf))
	}
}

func TestNestedAttrRoundTrip(t *testing.T) {
	child := NewAttr(iflaInfoKind, zeroTerminated("vxlan"))
	parent := NewNestedAttr(iflaLinkinfo, child)

	buf := parent.Serialize()
	parsed := ParseAttrs(buf)
	if len(parsed) != 1 {
		t.Fatalf("got %d attrs, want 1", len(parsed))
	}
	if parsed[0].Type != iflaLinkinfo {
		t.Errorf("Type = %d, want %d (NLA_F_NESTED bit should be stripped)", parsed[0].Type, iflaLinkinfo)
	}
	if len(parsed[0].Children) != 1 {
		t.Fatalf("got %d children, want 1", len(parsed[0].Children))
	}
	if got, _ := NewAttrMap(parsed[0].Children).String(iflaInfoKind); got != "vxlan" {
		t.Errorf("child String() = %q, want %q", got, "vxlan")
	}
}

func TestSerializeAttrsSiblings(t *testing.T) {
	attrs := []Attr{
		NewAttr(iflaMtu, []byte{0xdc, 0x05, 0, 0}),
		NewAttr(iflaIfname, zeroTerminated("br0")),
	}
	buf := SerializeAttrs(attrs)

	parsed := ParseAttrs(buf)
	if len(parsed) != 2 {
		t.Fatalf("got %d attrs, want 2", len(parsed))
	}
	m := NewAttrMap(parsed)
	if mtu, ok := m.U32(iflaMtu); !ok || mtu != 1500 {
		t.Errorf("U32(iflaMtu) = %d, %v, want 1500, true", mtu, ok)
	}
	if name, ok := m.String(iflaIfname); !ok || name != "br0" {
		t.Errorf("String(iflaIfname) = %q, %v, want br0, true", name, ok)
	}
}

func TestAttrMapBytes(t *testing.T) {
	mac := []byte{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
	a := NewAttr(iflaAddress, mac)
	m := NewAttrMap(ParseAttrs(a.Serialize()))

	got, ok := m.Bytes(iflaAddress)
	if !ok {
		t.Fatal("Bytes(iflaAddress) not found")
	}
	if !bytes.Equal(got, mac) {
		t.Errorf("Bytes(iflaAddress) = %v, want %v", got, mac)
	}
}
