package netlink

import (
	"bytes"
	"testing"
)

func TestDecodeErrorSuccess(t *testing.T) {
	payload := make([]byte, 4+nlmsgHdrLen)
	errno, trailing := decodeError(payload)
	if errno != 0 {
		t.Errorf("errno = %d, want 0", errno)
	}
	if trailing != nil {
		t.Errorf("trailing = %v, want nil", trailing)
	}
}

func TestDecodeErrorFailure(t *testing.T) {
	payload := make([]byte, 4+nlmsgHdrLen)
	// -2 (ENOENT) in two's complement little-endian.
	payload[0], payload[1], payload[2], payload[3] = 0xfe, 0xff, 0xff, 0xff

	errno, _ := decodeError(payload)
	if errno != -2 {
		t.Errorf("errno = %d, want -2", errno)
	}
}

func TestDecodeErrorTrailingBytes(t *testing.T) {
	payload := make([]byte, 4+nlmsgHdrLen)
	extra := []byte{0xaa, 0xbb}
	payload = append(payload, extra...)

	_, trailing := decodeError(payload)
	if !bytes.Equal(trailing, extra) {
		t.Errorf("trailing = %v, want %v", trailing, extra)
	}
}

func TestDecodeErrorShortPayload(t *testing.T) {
	errno, trailing := decodeError([]byte{1, 2})
	if errno != 0 || trailing != nil {
		t.Errorf("decodeError on short payload = (%d, %v), want (0, nil)", errno, trailing)
	}
}
