package netlink

import (
	"encoding/binary"
	"net"
	"testing"
)

func TestBuildIfinfomsg(t *testing.T) {
	buf := buildIfinfomsg(7, 1, 1)
	if len(buf) != ifinfomsgLen {
		t.Fatalf("len = %d, want %d", len(buf), ifinfomsgLen)
	}
	if idx := binary.LittleEndian.Uint32(buf[4:8]); idx != 7 {
		t.Errorf("index = %d, want 7", idx)
	}
}

func TestVxlanDataAttrsOrderAndPort(t *testing.T) {
	v := &VxlanAttrs{
		ID:        42,
		Link:      3,
		Local:     net.ParseIP("10.0.0.1"),
		Port:      8472,
		FlowBased: true,
	}
	attrs := vxlanDataAttrs(v)
	m := NewAttrMap(attrs)

	// Flow-based mode forces id=0 regardless of the requested ID.
	if id, ok := m.U32(iflaVxlanID); !ok || id != 0 {
		t.Errorf("vxlan id = %d, %v, want 0, true (forced by flow-based mode)", id, ok)
	}
	if _, ok := m[iflaVxlanFlowbased]; !ok {
		t.Error("expected IFLA_VXLAN_FLOWBASED attribute when FlowBased is set")
	}

	portAttr, ok := m[iflaVxlanPort]
	if !ok {
		t.Fatal("expected IFLA_VXLAN_PORT attribute")
	}
	// The VXLAN port is encoded big-endian on the wire, unlike every
	// other numeric attribute in this family.
	if got := binary.BigEndian.Uint16(portAttr.Value); got != 8472 {
		t.Errorf("port = %d, want 8472 (big-endian encoded)", got)
	}
}

func TestVxlanIDPreservedWhenNotFlowBased(t *testing.T) {
	v := &VxlanAttrs{ID: 7}
	m := NewAttrMap(vxlanDataAttrs(v))
	if id, ok := m.U32(iflaVxlanID); !ok || id != 7 {
		t.Errorf("vxlan id = %d, %v, want 7, true", id, ok)
	}
	if _, ok := m[iflaVxlanFlowbased]; ok {
		t.Error("did not expect IFLA_VXLAN_FLOWBASED when FlowBased is false")
	}
}

func TestKindAttrsVxlanNesting(t *testing.T) {
	l := &Link{
		Attrs: LinkAttrs{Name: "sinabro_vxlan"},
		Kind:  KindVxlan,
		Vxlan: &VxlanAttrs{ID: 1, Port: 8472, FlowBased: true},
	}
	info := kindAttrs(l)
	if info.Type&nlaFNested == 0 {
		t.Fatal("IFLA_LINKINFO must carry NLA_F_NESTED")
	}

	buf := info.Serialize()
	parsed := ParseAttrs(buf)
	if len(parsed) != 1 {
		t.Fatalf("got %d top-level attrs, want 1", len(parsed))
	}

	infoAttrs := NewAttrMap(parsed[0].Children)
	if kind, ok := infoAttrs.String(iflaInfoKind); !ok || kind != "vxlan" {
		t.Errorf("IFLA_INFO_KIND = %q, %v, want vxlan, true", kind, ok)
	}
	if _, ok := infoAttrs[iflaInfoData]; !ok {
		t.Error("expected IFLA_INFO_DATA nested attribute")
	}
}

func TestDecodeLinkRoundTrip(t *testing.T) {
	ifinfo := buildIfinfomsg(9, 0, 0)
	attrs := []Attr{
		NewAttr(iflaIfname, zeroTerminated("eth0")),
		NewAttr(iflaMtu, u32le(1500)),
	}
	payload := append(ifinfo, SerializeAttrs(attrs)...)

	l, err := decodeLink(payload)
	if err != nil {
		t.Fatalf("decodeLink: %v", err)
	}
	if l.Attrs.Index != 9 {
		t.Errorf("Index = %d, want 9", l.Attrs.Index)
	}
	if l.Attrs.Name != "eth0" {
		t.Errorf("Name = %q, want eth0", l.Attrs.Name)
	}
	if l.Attrs.MTU != 1500 {
		t.Errorf("MTU = %d, want 1500", l.Attrs.MTU)
	}
}

func u32le(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}
