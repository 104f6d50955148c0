package dataplane

// SockOpsTable is the pure-Go reference for SOCK_OPS_MAP: the sockops
// handler (tcp_accelerate in the original) registers an established
// intra-host TCP socket here keyed by its 4-tuple, and the sk_msg
// handler (tcp_bypass) looks a peer's key up to redirect segments
// directly between the two local sockets, skipping the TC
// classifiers (and therefore the NAT rewrite) entirely for
// host-local traffic.
type SockOpsTable struct {
	entries map[SockKey]struct{}
}

// NewSockOpsTable builds an empty table.
func NewSockOpsTable() *SockOpsTable {
	return &SockOpsTable{entries: make(map[SockKey]struct{})}
}

// Register records an established connection's 4-tuple, called from the
// reference equivalent of the ESTABLISHED_CB sockops event.
func (t *SockOpsTable) Register(key SockKey) {
	t.entries[key] = struct{}{}
}

// Unregister removes a connection's 4-tuple once it closes.
func (t *SockOpsTable) Unregister(key SockKey) {
	delete(t.entries, key)
}

// CanBypass reports whether a message from src to dst has a matching
// registered peer socket and therefore qualifies for the sk_msg
// redirect shortcut — it does only when BOTH directions of the
// connection are locally registered, since a redirect needs a real
// local socket on the other end.
func (t *SockOpsTable) CanBypass(key SockKey) bool {
	reverse := SockKey{
		SrcIP:   key.DstIP,
		DstIP:   key.SrcIP,
		SrcPort: key.DstPort,
		DstPort: key.SrcPort,
		Family:  key.Family,
	}
	_, fwd := t.entries[key]
	_, rev := t.entries[reverse]
	return fwd && rev
}
