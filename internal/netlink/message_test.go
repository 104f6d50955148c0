package netlink

import (
	"bytes"
	"testing"
)

func TestMessageSerializeRoundTrip(t *testing.T) {
	msg := NewMessage(rtmGetLink, 0)
	msg.Add([]byte{1, 2, 3, 4})

	buf := msg.Serialize()
	if len(buf) != nlmsgHdrLen+4 {
		t.Fatalf("serialized length = %d, want %d", len(buf), nlmsgHdrLen+4)
	}

	msgs, err := ParseMessages(buf)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Header.Type != rtmGetLink {
		t.Errorf("Type = %d, want %d", msgs[0].Header.Type, rtmGetLink)
	}
	if !bytes.Equal(msgs[0].Payload, []byte{1, 2, 3, 4}) {
		t.Errorf("Payload = %v, want [1 2 3 4]", msgs[0].Payload)
	}
}

func TestMessageSerializeLenCoversFullBuffer(t *testing.T) {
	msg := NewMessage(rtmNewLink, nlmFCreate)
	msg.Add(make([]byte, 300))

	buf := msg.Serialize()
	if int(msg.Header.Len) != len(buf) {
		t.Fatalf("Header.Len = %d, want %d (the full serialized length)", msg.Header.Len, len(buf))
	}
}

func TestParseMessagesMultiple(t *testing.T) {
	a := NewMessage(rtmNewLink, nlmFMulti)
	a.Add([]byte{9, 9})
	b := NewMessage(nlmsgDone, 0)

	buf := append(a.Serialize(), b.Serialize()...)

	msgs, err := ParseMessages(buf)
	if err != nil {
		t.Fatalf("ParseMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[0].Header.isMulti() {
		t.Errorf("first message should have NLM_F_MULTI set")
	}
	if msgs[1].Header.Type != nlmsgDone {
		t.Errorf("second message Type = %d, want NLMSG_DONE", msgs[1].Header.Type)
	}
}

func TestParseMessagesRejectsInvalidLen(t *testing.T) {
	buf := make([]byte, nlmsgHdrLen)
	// length field left as zero, which is below nlmsgHdrLen and invalid.
	if _, err := ParseMessages(buf); err == nil {
		t.Fatal("expected CodecError for zero-length header")
	}
}

func TestVerifyHeader(t *testing.T) {
	m := &Message{Header: Header{Seq: 5, PID: 42}}
	if err := m.VerifyHeader(5, 42); err != nil {
		t.Errorf("VerifyHeader matched values: %v", err)
	}
	if err := m.VerifyHeader(6, 42); err == nil {
		t.Error("expected error on sequence mismatch")
	}
	if err := m.VerifyHeader(5, 43); err == nil {
		t.Error("expected error on pid mismatch")
	}
}

func TestAlignTo(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 16: 16, 17: 20}
	for in, want := range cases {
		if got := alignTo(in, nlmsgAlignTo); got != want {
			t.Errorf("alignTo(%d) = %d, want %d", in, got, want)
		}
	}
}
