package netlink

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the taxonomy of spec.md §7.
var (
	// ErrNotFound is returned by Link.Get when the kernel returned zero
	// matching payloads.
	ErrNotFound = errors.New("netlink: not found")

	// ErrAmbiguous is returned by Link.Get when the kernel returned more
	// than one matching payload.
	ErrAmbiguous = errors.New("netlink: ambiguous result")

	// ErrFamilyMismatch is returned when route attributes (dst/src/gw)
	// disagree on address family and no `via` attribute bridges them.
	ErrFamilyMismatch = errors.New("netlink: address family mismatch")

	// ErrWrongPeer is returned when a datagram was received from a
	// sender other than the kernel (pid != 0) on a kernel-addressed
	// socket. Fatal to the in-flight request; the socket itself remains
	// usable for subsequent requests.
	ErrWrongPeer = errors.New("netlink: response from unexpected peer")
)

// KernelError wraps an errno reported by the kernel in an NLMSG_ERROR
// reply, together with any trailing diagnostic bytes the kernel attached
// (e.g. extended ACK text).
type KernelError struct {
	Errno    int32
	Trailing []byte
}

func (e *KernelError) Error() string {
	if len(e.Trailing) == 0 {
		return fmt.Sprintf("netlink: kernel error %d", -e.Errno)
	}
	return fmt.Sprintf("netlink: kernel error %d (trailing %d bytes)", -e.Errno, len(e.Trailing))
}

// IsExist reports whether a KernelError corresponds to EEXIST.
// LinkHandle.Add, RouteHandle.Add and NeighHandle.Add treat this case
// as success, which keeps the datapath programmer (C5) idempotent across
// restarts; the programmer itself does not check for EEXIST.
func (e *KernelError) IsExist() bool {
	return e.Errno == -17 // EEXIST
}

// CodecError describes a malformed header, truncated buffer, or unknown
// discriminant encountered while decoding a wire message or attribute
// tree.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return "netlink: codec error: " + e.Reason
}

// IoError wraps a raw syscall failure (socket/bind/send/recv/getsockname).
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("netlink: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}
