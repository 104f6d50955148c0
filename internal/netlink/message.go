// Package netlink implements the Linux kernel's route and generic netlink
// control protocol bit-exactly: message framing, attribute TLVs, socket
// multiplexing, request/response correlation, and typed models for links,
// addresses, routes, and neighbor/FDB entries.
//
// The wire-level pieces (message framing, attribute trees, the raw
// AF_NETLINK socket) are deliberately hand-rolled against
// golang.org/x/sys/unix rather than built on a higher-level netlink
// wrapper: the datapath programmer needs bit-exact control over exactly
// which attributes go on the wire (VXLAN parameters, nested veth peer
// info, bridge options), which a generic wrapper would abstract away.
package netlink

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed 16-byte netlink message header (nlmsghdr).
type Header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	PID   uint32
}

// NewHeader builds a request header with NLM_F_REQUEST always set.
func NewHeader(msgType uint16, flags int) Header {
	return Header{
		Len:   nlmsgHdrLen,
		Type:  msgType,
		Flags: nlmFRequest | uint16(flags),
		Seq:   0,
		PID:   0,
	}
}

func (h Header) isMulti() bool {
	return h.Flags&nlmFMulti != 0
}

// Message is one netlink datagram: a header plus its family-specific
// payload and attribute bytes, already concatenated.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates an empty request message of the given type/flags.
func NewMessage(msgType uint16, flags int) *Message {
	return &Message{Header: NewHeader(msgType, flags)}
}

// Add appends bytes to the message payload and grows the header length
// field accordingly, mirroring Message::add in the reference
// implementation this package is grounded on.
func (m *Message) Add(b []byte) {
	m.Payload = append(m.Payload, b...)
	m.Header.Len += uint32(len(b))
}

// Serialize writes the header followed by the accumulated payload,
// backpatching Len with the final byte count. Unlike some netlink
// implementations that only patch the low 16 bits of this 32-bit field,
// this one patches the full 4 bytes — see DESIGN.md's note on the
// original implementation's 2-byte backpatch.
func (m *Message) Serialize() []byte {
	total := nlmsgHdrLen + len(m.Payload)
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint16(buf[4:6], m.Header.Type)
	binary.LittleEndian.PutUint16(buf[6:8], m.Header.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], m.Header.Seq)
	binary.LittleEndian.PutUint32(buf[12:16], m.Header.PID)
	copy(buf[nlmsgHdrLen:], m.Payload)

	m.Header.Len = uint32(total)
	return buf
}

// VerifyHeader checks that a decoded message matches the sequence number
// and local pid of the in-flight request it is supposed to answer.
func (m *Message) VerifyHeader(seq, pid uint32) error {
	if m.Header.Seq != seq {
		return fmt.Errorf("netlink: unexpected sequence number %d, want %d", m.Header.Seq, seq)
	}
	if m.Header.PID != pid {
		return fmt.Errorf("netlink: unexpected pid %d, want %d", m.Header.PID, pid)
	}
	return nil
}

// alignTo rounds n up to the nearest multiple of align.
func alignTo(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// ParseMessages splits a received datagram buffer into individual
// messages. Each message's declared Len bounds its payload; the consumed
// length is rounded up to a 4-byte boundary to locate the next message,
// per §3's framing invariant.
func ParseMessages(buf []byte) ([]Message, error) {
	var msgs []Message

	for len(buf) >= nlmsgHdrLen {
		length := binary.LittleEndian.Uint32(buf[0:4])
		if length < nlmsgHdrLen || int(length) > len(buf) {
			return nil, &CodecError{Reason: fmt.Sprintf("invalid nlmsg_len %d (buffer has %d bytes)", length, len(buf))}
		}

		h := Header{
			Len:   length,
			Type:  binary.LittleEndian.Uint16(buf[4:6]),
			Flags: binary.LittleEndian.Uint16(buf[6:8]),
			Seq:   binary.LittleEndian.Uint32(buf[8:12]),
			PID:   binary.LittleEndian.Uint32(buf[12:16]),
		}

		payload := make([]byte, int(length)-nlmsgHdrLen)
		copy(payload, buf[nlmsgHdrLen:length])

		msgs = append(msgs, Message{Header: h, Payload: payload})

		consumed := alignTo(int(length), nlmsgAlignTo)
		if consumed > len(buf) {
			break
		}
		buf = buf[consumed:]
	}

	return msgs, nil
}
