package netlink

import (
	"sync/atomic"
)

// Requester issues netlink requests over a shared Socket and correlates
// responses by sequence number, mirroring SocketHandle::request in the
// reference implementation: stamp, send, then loop receiving until an
// NLMSG_DONE/NLMSG_ERROR terminator for our own sequence number/pid
// arrives, collecting any data payloads seen along the way.
type Requester struct {
	sock *Socket
	seq  uint32
}

// NewRequester wraps a Socket with sequence-number bookkeeping.
func NewRequester(sock *Socket) *Requester {
	return &Requester{sock: sock}
}

// Do sends msg and collects the payloads of every response message
// belonging to this request, stopping at the first NLMSG_DONE or
// NLMSG_ERROR (errno 0) terminator, or returning the kernel's error.
//
// Responses from a pid other than 0 (the kernel) are rejected outright
// with ErrWrongPeer — a multiplexed socket should never see this, but a
// misbehaving peer is grounds to abort rather than silently absorb
// foreign traffic. Responses whose sequence number doesn't match this
// request are skipped rather than treated as fatal, since multiple
// requests can be in flight in relaxed designs (the agent itself only
// ever runs one at a time per socket, but this matches the reference
// implementation's tolerance).
func (r *Requester) Do(msg *Message) ([][]byte, error) {
	seq := atomic.AddUint32(&r.seq, 1)
	msg.Header.Seq = seq
	msg.Header.PID = r.sock.PID()

	if err := r.sock.Send(msg.Serialize()); err != nil {
		return nil, err
	}

	var results [][]byte

	for {
		msgs, fromPID, err := r.sock.Recv()
		if err != nil {
			return nil, err
		}
		if fromPID != 0 {
			return nil, ErrWrongPeer
		}

		done := false

		for _, m := range msgs {
			if m.Header.Seq != seq || m.Header.PID != msg.Header.PID {
				continue
			}

			switch m.Header.Type {
			case nlmsgDone:
				done = true
			case nlmsgError:
				errno, trailing := decodeError(m.Payload)
				if errno == 0 {
					done = true
					break
				}
				return nil, &KernelError{Errno: errno, Trailing: trailing}
			default:
				results = append(results, m.Payload)
			}

			if !m.Header.isMulti() {
				done = true
			}

			if done {
				break
			}
		}

		if done {
			break
		}
	}

	return results, nil
}

// decodeError parses the nlmsgerr payload: a little-endian int32 errno
// followed by the netlink message header that triggered it, and
// (potentially, on newer kernels with NETLINK_EXT_ACK enabled) extended
// ACK attributes after that. Only the errno and any bytes past the
// embedded header are surfaced; nothing in this codebase currently
// parses extended ACK attributes.
func decodeError(payload []byte) (int32, []byte) {
	if len(payload) < 4 {
		return 0, nil
	}
	errno := int32(uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24)

	const embeddedHeaderLen = nlmsgHdrLen
	if len(payload) <= 4+embeddedHeaderLen {
		return errno, nil
	}
	return errno, payload[4+embeddedHeaderLen:]
}
