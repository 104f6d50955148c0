package main

import (
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"

	"github.com/wqld/sinabro/internal/datapath"
	"github.com/wqld/sinabro/internal/netlink"
	"github.com/wqld/sinabro/pkg/cni"
)

const bridgeName = "cni0"

// runAdd wires a veth pair between the host bridge and the container's
// network namespace, allocates the pod's address, and configures it.
// Grounded on the reference implementation's AddCommand::run.
func runAdd(env cni.Env, conf cni.NetConf) (*cni.AddResult, error) {
	subnet, err := netip.ParsePrefix(conf.Subnet)
	if err != nil {
		return nil, fmt.Errorf("parse subnet %q: %w", conf.Subnet, err)
	}

	containerIP, err := requestContainerIP()
	if err != nil {
		return nil, err
	}
	containerAddr := fmt.Sprintf("%s/%d", containerIP, subnet.Bits())
	bridgeIP := firstHostAddress(subnet)

	sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}
	defer sock.Close()
	link := netlink.NewLinkHandle(netlink.NewRequester(sock))

	cni0, err := link.Get(bridgeName)
	if err != nil {
		return nil, fmt.Errorf("resolve bridge %s: %w", bridgeName, err)
	}

	suffix := vethSuffix(env.ContainerID)
	vethName := "veth" + suffix
	peerName := "peer" + suffix

	vethMAC, err := datapath.RandomUnicastMAC()
	if err != nil {
		return nil, fmt.Errorf("generate veth mac: %w", err)
	}
	peerMAC, err := datapath.RandomUnicastMAC()
	if err != nil {
		return nil, fmt.Errorf("generate peer mac: %w", err)
	}

	if err := link.Add(&netlink.Link{
		Attrs: netlink.LinkAttrs{Name: vethName, MTU: 1500, TxQLen: 1000, HardwareAddr: vethMAC},
		Kind:  netlink.KindVeth,
		PeerAttrs: &netlink.LinkAttrs{
			Name:         peerName,
			HardwareAddr: peerMAC,
		},
	}); err != nil {
		return nil, fmt.Errorf("create veth pair: %w", err)
	}

	veth, err := link.Get(vethName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", vethName, err)
	}
	peer, err := link.Get(peerName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", peerName, err)
	}

	if err := link.SetUp(veth.Attrs.Index); err != nil {
		return nil, fmt.Errorf("set %s up: %w", vethName, err)
	}
	if err := link.SetMaster(veth.Attrs.Index, cni0.Attrs.Index); err != nil {
		return nil, fmt.Errorf("enslave %s to %s: %w", vethName, bridgeName, err)
	}

	netnsFile, err := os.Open(env.NetNS)
	if err != nil {
		return nil, fmt.Errorf("open netns %s: %w", env.NetNS, err)
	}
	defer netnsFile.Close()

	if err := link.SetNsFd(peer.Attrs.Index, int(netnsFile.Fd())); err != nil {
		return nil, fmt.Errorf("move %s into %s: %w", peerName, env.NetNS, err)
	}

	var containerMAC net.HardwareAddr
	err = withNetNS(env.NetNS, func() error {
		nsSock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
		if err != nil {
			return fmt.Errorf("open netlink socket in netns: %w", err)
		}
		defer nsSock.Close()
		nsLink := netlink.NewLinkHandle(netlink.NewRequester(nsSock))

		containerLink, err := nsLink.Get(peerName)
		if err != nil {
			return fmt.Errorf("resolve %s in netns: %w", peerName, err)
		}
		if err := nsLink.SetName(containerLink.Attrs.Index, env.IfName); err != nil {
			return fmt.Errorf("rename %s to %s: %w", peerName, env.IfName, err)
		}
		if err := nsLink.SetUp(containerLink.Attrs.Index); err != nil {
			return fmt.Errorf("set %s up: %w", env.IfName, err)
		}

		ip, ipNet, err := net.ParseCIDR(containerAddr)
		if err != nil {
			return fmt.Errorf("parse container address %q: %w", containerAddr, err)
		}
		addrHandle := netlink.NewAddrHandle(netlink.NewRequester(nsSock))
		if err := addrHandle.Add(&netlink.Address{
			LinkIndex: containerLink.Attrs.Index,
			IPNet:     &net.IPNet{IP: ip, Mask: ipNet.Mask},
		}); err != nil {
			return fmt.Errorf("assign address %s: %w", containerAddr, err)
		}

		routeHandle := netlink.NewRouteHandle(netlink.NewRequester(nsSock))
		if err := routeHandle.Add(&netlink.Route{
			LinkIndex: containerLink.Attrs.Index,
			Gw:        net.ParseIP(bridgeIP.String()),
		}); err != nil {
			return fmt.Errorf("add default route via %s: %w", bridgeIP, err)
		}

		containerMAC = containerLink.Attrs.HardwareAddr
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &cni.AddResult{
		CNIVersion: "0.3.0",
		Interfaces: []cni.Interface{
			{Name: env.IfName, Mac: containerMAC.String(), Sandbox: env.NetNS},
		},
		IPs: []cni.IPConfig{
			{Version: "4", Address: containerAddr, Gateway: bridgeIP.String(), Interface: 0},
		},
	}, nil
}

// firstHostAddress returns network-address+1 within prefix, the
// convention the agent's bridge setup uses for the bridge's own
// gateway address.
func firstHostAddress(prefix netip.Prefix) netip.Addr {
	return prefix.Masked().Addr().Next()
}

// vethSuffix returns 4 uppercase-hex characters derived from
// containerID, matching the reference implementation's veth/peer
// naming scheme (veth<suffix>/peer<suffix>) but deterministic rather
// than random, so runDel can recompute the same host-side veth name to
// delete it without needing to persist any allocation state.
func vethSuffix(containerID string) string {
	h := fnv.New32a()
	io.WriteString(h, containerID)
	return fmt.Sprintf("%04X", h.Sum32()&0xFFFF)
}
