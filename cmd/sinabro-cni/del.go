package main

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/wqld/sinabro/internal/netlink"
	"github.com/wqld/sinabro/pkg/cni"
)

// runDel reads the container's current address out of its network
// namespace, returns it to the allocator's free set, then deletes the
// host-side veth end (the kernel removes the paired peer end along
// with it). A missing interface (namespace already torn down by the
// runtime) is treated as a no-op, matching the reference
// implementation's Ok(None) early return.
func runDel(env cni.Env, _ cni.NetConf) error {
	var containerIP string

	err := withNetNS(env.NetNS, func() error {
		sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
		if err != nil {
			return fmt.Errorf("open netlink socket in netns: %w", err)
		}
		defer sock.Close()

		linkHandle := netlink.NewLinkHandle(netlink.NewRequester(sock))
		l, err := linkHandle.Get(env.IfName)
		if err != nil {
			return nil
		}

		addrHandle := netlink.NewAddrHandle(netlink.NewRequester(sock))
		addrs, err := addrHandle.List(l.Attrs.Index)
		if err != nil || len(addrs) == 0 {
			return nil
		}

		containerIP = addrs[0].IPNet.IP.String()
		return nil
	})
	if err != nil {
		return err
	}

	if containerIP != "" {
		if err := releaseContainerIP(containerIP); err != nil {
			return err
		}
	}

	return deleteHostVeth(env.ContainerID)
}

// deleteHostVeth removes the host-side veth end named from
// containerID, the same deterministic name runAdd assigned it.
// Deleting either end of a veth pair removes both, so the in-namespace
// peer end disappears along with it (or has already gone with the
// namespace's own teardown).
func deleteHostVeth(containerID string) error {
	sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
	if err != nil {
		return fmt.Errorf("open netlink socket: %w", err)
	}
	defer sock.Close()

	linkHandle := netlink.NewLinkHandle(netlink.NewRequester(sock))
	vethName := "veth" + vethSuffix(containerID)

	l, err := linkHandle.Get(vethName)
	if err != nil {
		if errors.Is(err, netlink.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolve %s: %w", vethName, err)
	}
	return linkHandle.Delete(l.Attrs.Index)
}
