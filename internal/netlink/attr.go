package netlink

import (
	"encoding/binary"
)

const rtaHdrLen = 4

// Attr is one node of a netlink attribute TLV tree: {len, type} followed
// by a raw value, a nested sequence of child attributes, or both (a raw
// header followed by children, as the veth peer nest uses).
//
// Serializing: write a placeholder len, the type, the raw value, pad to
// a 4-byte boundary, then append each child's own serialization and
// finally backpatch len to cover everything emitted (§4.1's nested
// tree invariant).
type Attr struct {
	Type     uint16
	Value    []byte
	Children []Attr
}

// NewAttr builds a leaf attribute carrying a raw value.
func NewAttr(attrType uint16, value []byte) Attr {
	return Attr{Type: attrType, Value: value}
}

// NewNestedAttr builds a parent attribute whose value is the
// concatenation of its children's own serialized forms. The NLA_F_NESTED
// flag is ORed into Type automatically.
func NewNestedAttr(attrType uint16, children ...Attr) Attr {
	return Attr{Type: attrType | nlaFNested, Children: children}
}

// Serialize encodes the attribute (and, recursively, its children) into
// wire bytes, 4-byte aligned.
func (a Attr) Serialize() []byte {
	body := make([]byte, rtaHdrLen+len(a.Value))
	copy(body[rtaHdrLen:], a.Value)

	aligned := alignTo(len(body), nlmsgAlignTo)
	if len(body) < aligned {
		body = append(body, make([]byte, aligned-len(body))...)
	}

	if len(a.Children) > 0 {
		for _, child := range a.Children {
			body = append(body, child.Serialize()...)
		}
	}

	// The length field covers header+value+children but NOT the padding
	// between this attribute and the next sibling (§4.1 invariant).
	length := rtaHdrLen + len(a.Value)
	if len(a.Children) > 0 {
		length = len(body)
	}

	binary.LittleEndian.PutUint16(body[0:2], uint16(length))
	binary.LittleEndian.PutUint16(body[2:4], a.Type)

	return body
}

// SerializeAttrs concatenates the wire serialization of a sequence of
// sibling attributes.
func SerializeAttrs(attrs []Attr) []byte {
	var buf []byte
	for _, a := range attrs {
		buf = append(buf, a.Serialize()...)
	}
	return buf
}

// ParseAttrs decodes a sequence of sibling attributes from a buffer,
// e.g. the attribute list following a LinkMsg/AddrMsg/RouteMsg/NeighMsg
// payload. An attribute with NLA_F_NESTED set also has its value decoded
// recursively into Children.
func ParseAttrs(buf []byte) []Attr {
	var attrs []Attr

	for len(buf) >= rtaHdrLen {
		length := binary.LittleEndian.Uint16(buf[0:2])
		rawType := binary.LittleEndian.Uint16(buf[2:4])

		if int(length) < rtaHdrLen || int(length) > len(buf) {
			break
		}

		value := make([]byte, int(length)-rtaHdrLen)
		copy(value, buf[rtaHdrLen:length])

		attrType := rawType &^ nlaFNested
		attr := Attr{Type: attrType, Value: value}
		if rawType&nlaFNested != 0 {
			attr.Children = ParseAttrs(value)
		}

		attrs = append(attrs, attr)

		consumed := alignTo(int(length), nlmsgAlignTo)
		if consumed > len(buf) {
			break
		}
		buf = buf[consumed:]
	}

	return attrs
}

// AttrMap indexes a flat attribute list by type for convenient lookup
// during decode, mirroring RouteAttrMap in the reference implementation.
type AttrMap map[uint16]Attr

// NewAttrMap builds an AttrMap from a parsed attribute list. Later
// attributes of the same type overwrite earlier ones.
func NewAttrMap(attrs []Attr) AttrMap {
	m := make(AttrMap, len(attrs))
	for _, a := range attrs {
		m[a.Type] = a
	}
	return m
}

func (m AttrMap) Bytes(t uint16) ([]byte, bool) {
	a, ok := m[t]
	return a.Value, ok
}

func (m AttrMap) U8(t uint16) (uint8, bool) {
	a, ok := m[t]
	if !ok || len(a.Value) < 1 {
		return 0, false
	}
	return a.Value[0], true
}

func (m AttrMap) U16(t uint16) (uint16, bool) {
	a, ok := m[t]
	if !ok || len(a.Value) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(a.Value), true
}

func (m AttrMap) U32(t uint16) (uint32, bool) {
	a, ok := m[t]
	if !ok || len(a.Value) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(a.Value), true
}

func (m AttrMap) String(t uint16) (string, bool) {
	a, ok := m[t]
	if !ok {
		return "", false
	}
	s := a.Value
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), true
}

// zeroTerminated returns s as a NUL-terminated byte slice, matching the
// wire convention for IFNAME/IFA_LABEL string attributes.
func zeroTerminated(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}
