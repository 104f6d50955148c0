package clusterview

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"strings"
)

// ExecClusterView resolves cluster state by shelling out to kubectl,
// matching the "documented brittle dependency" the reference
// implementation accepts in context.rs: it execs into a peer agent pod
// and greps `ip link show sinabro_vxlan` output for the MAC address
// rather than maintaining a side channel. Node and pod-CIDR information
// come from `kubectl get nodes -o json`, the direct Go analogue of
// kube.rs's typed client calls — this repo has no Kubernetes client
// library in its dependency set, so the same information is obtained
// through the same CLI every cluster operator already has configured.
type ExecClusterView struct {
	Kubectl       string // defaults to "kubectl"
	AgentSelector string // label selector matching the overlay agent DaemonSet pods
	Namespace     string
	uplink        string
}

// NewExecClusterView builds an ExecClusterView that reports this node's
// own address from uplink (e.g. "eth0").
func NewExecClusterView(uplink, namespace, agentSelector string) *ExecClusterView {
	return &ExecClusterView{
		Kubectl:       "kubectl",
		AgentSelector: agentSelector,
		Namespace:     namespace,
		uplink:        uplink,
	}
}

func (e *ExecClusterView) kubectl() string {
	if e.Kubectl == "" {
		return "kubectl"
	}
	return e.Kubectl
}

// HostIP returns the first IPv4 address assigned to the configured
// uplink interface.
func (e *ExecClusterView) HostIP(context.Context) (netip.Addr, error) {
	iface, err := net.InterfaceByName(e.uplink)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("clusterview: lookup uplink %s: %w", e.uplink, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			addr, ok := netip.AddrFromSlice(ip4)
			if ok {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("clusterview: no IPv4 address on %s", e.uplink)
}

type kubeNode struct {
	Spec struct {
		PodCIDR string `json:"podCIDR"`
	} `json:"spec"`
	Status struct {
		Addresses []struct {
			Type    string `json:"type"`
			Address string `json:"address"`
		} `json:"addresses"`
	} `json:"status"`
}

type kubeNodeList struct {
	Items []kubeNode `json:"items"`
}

func (e *ExecClusterView) listNodes(ctx context.Context) ([]kubeNode, error) {
	cmd := exec.CommandContext(ctx, e.kubectl(), "get", "nodes", "-o", "json")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("clusterview: kubectl get nodes: %w", err)
	}
	var list kubeNodeList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("clusterview: decode node list: %w", err)
	}
	return list.Items, nil
}

// NodeRoutes lists every cluster node's first reported address and pod
// CIDR, mirroring NodeRoute::from(Node) in the reference implementation.
func (e *ExecClusterView) NodeRoutes(ctx context.Context) ([]NodeRoute, error) {
	nodes, err := e.listNodes(ctx)
	if err != nil {
		return nil, err
	}

	var routes []NodeRoute
	for _, n := range nodes {
		if len(n.Status.Addresses) == 0 || n.Spec.PodCIDR == "" {
			continue
		}
		ip, err := netip.ParseAddr(n.Status.Addresses[0].Address)
		if err != nil {
			continue
		}
		podCIDR, err := netip.ParsePrefix(n.Spec.PodCIDR)
		if err != nil {
			continue
		}
		routes = append(routes, NodeRoute{NodeIP: ip, PodCIDR: podCIDR})
	}
	return routes, nil
}

// PodCIDR returns this node's own pod CIDR by matching its host IP
// against the node list.
func (e *ExecClusterView) PodCIDR(ctx context.Context) (netip.Prefix, error) {
	host, err := e.HostIP(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	routes, err := e.NodeRoutes(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	for _, r := range routes {
		if r.NodeIP == host {
			return r.PodCIDR, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("clusterview: no node found matching host IP %s", host)
}

// ClusterCIDR derives the cluster-wide pod network by widening every
// node's pod CIDR to the shortest common prefix. Clusters that already
// pin a single cluster CIDR at provisioning time can substitute a fixed
// value here; this derivation keeps ClusterView usable without a
// dedicated cluster-config CRD.
func (e *ExecClusterView) ClusterCIDR(ctx context.Context) (netip.Prefix, error) {
	routes, err := e.NodeRoutes(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	if len(routes) == 0 {
		return netip.Prefix{}, fmt.Errorf("clusterview: no node routes available")
	}

	bits := routes[0].PodCIDR.Bits()
	for _, r := range routes[1:] {
		if r.PodCIDR.Bits() < bits {
			bits = r.PodCIDR.Bits()
		}
	}
	// Narrow to the first node's network at the shortest observed
	// prefix length; every node's pod CIDR is expected to fall under
	// one contiguous cluster-wide block in a typical flat-CIDR cluster.
	return routes[0].PodCIDR.Addr().Prefix(bits)
}

// PeerVxlanMAC execs into a peer agent pod on nodeIP and parses the
// `link/ether` line of `ip link show sinabro_vxlan`.
func (e *ExecClusterView) PeerVxlanMAC(ctx context.Context, nodeIP netip.Addr) (net.HardwareAddr, error) {
	pod, err := e.findAgentPod(ctx, nodeIP)
	if err != nil {
		return nil, err
	}

	args := []string{"exec", "-n", e.Namespace, pod, "--", "ip", "link", "show", "sinabro_vxlan"}
	cmd := exec.CommandContext(ctx, e.kubectl(), args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("clusterview: exec into %s: %w", pod, err)
	}

	return parseLinkEther(out)
}

func (e *ExecClusterView) findAgentPod(ctx context.Context, nodeIP netip.Addr) (string, error) {
	args := []string{"get", "pods", "-n", e.Namespace, "-l", e.AgentSelector,
		"--field-selector", "status.phase=Running", "-o", "json"}
	cmd := exec.CommandContext(ctx, e.kubectl(), args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("clusterview: list agent pods: %w", err)
	}

	var list struct {
		Items []struct {
			Metadata struct {
				Name string `json:"name"`
			} `json:"metadata"`
			Status struct {
				HostIP string `json:"hostIP"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(out, &list); err != nil {
		return "", fmt.Errorf("clusterview: decode pod list: %w", err)
	}

	for _, p := range list.Items {
		if p.Status.HostIP == nodeIP.String() {
			return p.Metadata.Name, nil
		}
	}
	return "", fmt.Errorf("clusterview: no agent pod found on node %s", nodeIP)
}

// parseLinkEther extracts the MAC address from the second line of `ip
// link show <dev>` output, e.g. "    link/ether 02:ab:cd:ef:01:02 brd ...".
func parseLinkEther(out []byte) (net.HardwareAddr, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i, f := range fields {
			if f == "link/ether" && i+1 < len(fields) {
				return net.ParseMAC(fields[i+1])
			}
		}
	}
	return nil, fmt.Errorf("clusterview: no link/ether line found in %q", string(out))
}
