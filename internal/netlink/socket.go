package netlink

import (
	"golang.org/x/sys/unix"
)

// Socket is a raw AF_NETLINK datagram socket bound to the kernel
// (group 0, pid assigned by bind) for one protocol (NETLINK_ROUTE or
// NETLINK_GENERIC). Every handle built over the same Requester shares
// its Socket; callers that run requests concurrently open one Socket
// each.
type Socket struct {
	fd  int
	pid uint32
}

// OpenSocket opens and binds a netlink socket for the given protocol
// (unix.NETLINK_ROUTE or unix.NETLINK_GENERIC), optionally subscribing
// to multicast groups.
func OpenSocket(protocol int, groups uint32) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, protocol)
	if err != nil {
		return nil, &IoError{Op: "socket", Err: err}
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: groups}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, &IoError{Op: "bind", Err: err}
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, &IoError{Op: "getsockname", Err: err}
	}
	nlsa, ok := sa.(*unix.SockaddrNetlink)
	if !ok {
		unix.Close(fd)
		return nil, &IoError{Op: "getsockname", Err: unix.EINVAL}
	}

	return &Socket{fd: fd, pid: nlsa.Pid}, nil
}

// PID returns the local port id assigned to this socket by bind(2).
func (s *Socket) PID() uint32 {
	return s.pid
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// SetNonblock toggles O_NONBLOCK on the socket's file descriptor, used
// by callers that want to poll multicast groups without blocking the
// request/response path.
func (s *Socket) SetNonblock(nonblocking bool) error {
	return unix.SetNonblock(s.fd, nonblocking)
}

// Send writes buf to the kernel (pid 0, group 0).
func (s *Socket) Send(buf []byte) error {
	to := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(s.fd, buf, 0, to); err != nil {
		return &IoError{Op: "sendto", Err: err}
	}
	return nil
}

// recvBufSize matches the reference implementation's fixed receive
// buffer; large enough for a full RTM_GETROUTE/RTM_GETLINK dump of a
// moderately sized cluster node.
const recvBufSize = 65536

// Recv reads one or more netlink messages from the socket along with
// the sender's address, so callers can verify responses actually came
// from the kernel (pid 0).
func (s *Socket) Recv() ([]Message, uint32, error) {
	buf := make([]byte, recvBufSize)

	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return nil, 0, &IoError{Op: "recvfrom", Err: err}
	}

	var fromPID uint32
	if nlsa, ok := from.(*unix.SockaddrNetlink); ok {
		fromPID = nlsa.Pid
	}

	msgs, err := ParseMessages(buf[:n])
	if err != nil {
		return nil, 0, err
	}
	return msgs, fromPID, nil
}
