package datapath

import (
	"fmt"
	"os"
)

// writeSysctl sets a single /proc/sys value. The reference
// implementation goes through the `sysctl` crate's Ctl::set_value_string,
// which itself is a thin wrapper over the same /proc/sys file write; no
// third-party Go package in the retrieved example pack wraps this, so it
// is done directly.
func writeSysctl(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// configureForwarding applies the per-NIC sysctls the overlay depends
// on: IPv4/IPv6 forwarding, and the rp_filter/accept_local/send_redirects
// relaxations needed for VXLAN decapsulated traffic arriving with a pod
// source address on the uplink's interface. Each write is best-effort —
// a failure (e.g. running inside a restricted container without write
// access to /proc/sys) is logged by the caller but does not abort
// programming.
func configureForwarding(ifName string) []error {
	settings := []struct {
		path  string
		value string
	}{
		{fmt.Sprintf("/proc/sys/net/ipv4/conf/%s/forwarding", ifName), "1"},
		{fmt.Sprintf("/proc/sys/net/ipv4/conf/%s/rp_filter", ifName), "0"},
		{fmt.Sprintf("/proc/sys/net/ipv4/conf/%s/accept_local", ifName), "1"},
		{fmt.Sprintf("/proc/sys/net/ipv4/conf/%s/send_redirects", ifName), "0"},
		{fmt.Sprintf("/proc/sys/net/ipv6/conf/%s/forwarding", ifName), "1"},
	}

	var errs []error
	for _, s := range settings {
		if err := writeSysctl(s.path, s.value); err != nil {
			errs = append(errs, fmt.Errorf("sysctl %s=%s: %w", s.path, s.value, err))
		}
	}
	return errs
}
