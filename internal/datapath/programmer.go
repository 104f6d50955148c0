package datapath

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/wqld/sinabro/internal/clusterview"
	"github.com/wqld/sinabro/internal/netlink"
)

// Config names the host-visible device parameters the programmer
// drives. Defaults match the fixed values named in the datapath
// programming sequence.
type Config struct {
	BridgeName string // default "cni0"
	UplinkName string // default "eth0"
	VxlanName  string // default "sinabro_vxlan"
	VxlanID    uint32 // default 1
	VxlanPort  uint16 // default 8472
	VxlanMTU   uint32 // default 1450
}

func (c *Config) setDefaults() {
	if c.BridgeName == "" {
		c.BridgeName = "cni0"
	}
	if c.UplinkName == "" {
		c.UplinkName = "eth0"
	}
	if c.VxlanName == "" {
		c.VxlanName = "sinabro_vxlan"
	}
	if c.VxlanID == 0 {
		c.VxlanID = 1
	}
	if c.VxlanPort == 0 {
		c.VxlanPort = 8472
	}
	if c.VxlanMTU == 0 {
		c.VxlanMTU = 1450
	}
}

// Programmer drives the host's bridge/VXLAN/route/neighbor state to
// match a resolved cluster view, idempotently: every step either
// creates the desired object or silently accepts that it already
// exists (EEXIST), so repeated runs (e.g. agent restarts) converge to
// the same state without manual teardown.
type Programmer struct {
	cfg Config
	req *netlink.Requester
	log *slog.Logger

	link *netlink.LinkHandle
	addr *netlink.AddrHandle
}

// NewProgrammer builds a Programmer over req, used for the serial
// bridge/uplink/VXLAN setup steps in Run. The per-peer route/neighbor
// programming in programPeers does not reuse req: a single
// *netlink.Requester serializes one request at a time (Do matches
// replies by sequence number and drops anything that isn't its own,
// see request.go), so two goroutines sharing it would race and could
// starve each other waiting on a DONE/ERROR another goroutine already
// consumed. Each peer task opens its own socket instead.
func NewProgrammer(cfg Config, req *netlink.Requester, log *slog.Logger) *Programmer {
	cfg.setDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Programmer{
		cfg:  cfg,
		req:  req,
		log:  log.With("component", "datapath"),
		link: netlink.NewLinkHandle(req),
		addr: netlink.NewAddrHandle(req),
	}
}

// Run performs the full idempotent bridge/VXLAN/per-peer programming
// sequence for the given cluster view.
func (p *Programmer) Run(ctx context.Context, view clusterview.ClusterView) error {
	hostIP, err := view.HostIP(ctx)
	if err != nil {
		return fmt.Errorf("datapath: resolve host IP: %w", err)
	}
	podCIDR, err := view.PodCIDR(ctx)
	if err != nil {
		return fmt.Errorf("datapath: resolve pod CIDR: %w", err)
	}

	if err := p.ensureBridge(podCIDR); err != nil {
		return fmt.Errorf("datapath: bridge: %w", err)
	}

	uplink, err := p.ensureUplinkUp()
	if err != nil {
		return fmt.Errorf("datapath: uplink: %w", err)
	}

	vxlanIdx, err := p.ensureVxlan(uplink.Attrs.Index, hostIP)
	if err != nil {
		return fmt.Errorf("datapath: vxlan: %w", err)
	}

	for _, errFromSysctl := range configureForwarding(p.cfg.UplinkName) {
		p.log.Warn("sysctl configuration failed", "error", errFromSysctl)
	}
	for _, errFromSysctl := range configureForwarding(p.cfg.VxlanName) {
		p.log.Warn("sysctl configuration failed", "error", errFromSysctl)
	}

	routes, err := view.NodeRoutes(ctx)
	if err != nil {
		return fmt.Errorf("datapath: resolve node routes: %w", err)
	}

	return p.programPeers(ctx, view, vxlanIdx, hostIP, podCIDR, routes)
}

// ensureBridge creates (if missing) the bridge link, brings it up, and
// assigns it the first host address of podCIDR.
func (p *Programmer) ensureBridge(podCIDR netip.Prefix) error {
	br := &netlink.Link{
		Attrs: netlink.LinkAttrs{Name: p.cfg.BridgeName},
		Kind:  netlink.KindBridge,
		Bridge: &netlink.BridgeAttrs{
			VlanFiltering:  false,
			MulticastSnoop: true,
		},
	}
	if err := p.link.Add(br); err != nil {
		return err
	}

	l, err := p.link.Get(p.cfg.BridgeName)
	if err != nil {
		return err
	}
	if !l.IsUp() {
		if err := p.link.SetUp(l.Attrs.Index); err != nil {
			return err
		}
	}

	gw := firstHostAddress(podCIDR)
	ipnet := prefixToIPNet(netip.PrefixFrom(gw, podCIDR.Bits()))
	if err := p.addr.Add(&netlink.Address{LinkIndex: l.Attrs.Index, IPNet: ipnet, Scope: 0}); err != nil {
		return err
	}

	return nil
}

// ensureUplinkUp resolves the configured uplink device and brings it
// up, returning the resolved link for its ifindex.
func (p *Programmer) ensureUplinkUp() (*netlink.Link, error) {
	l, err := p.link.Get(p.cfg.UplinkName)
	if err != nil {
		return nil, err
	}
	if !l.IsUp() {
		if err := p.link.SetUp(l.Attrs.Index); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ensureVxlan creates (if missing) the VXLAN device bound to uplinkIdx,
// brings it up, and assigns hostIP/32.
func (p *Programmer) ensureVxlan(uplinkIdx int32, hostIP netip.Addr) (int32, error) {
	mac, err := RandomUnicastMAC()
	if err != nil {
		return 0, fmt.Errorf("generate vxlan MAC: %w", err)
	}

	vx := &netlink.Link{
		Attrs: netlink.LinkAttrs{Name: p.cfg.VxlanName, MTU: p.cfg.VxlanMTU, HardwareAddr: mac},
		Kind:  netlink.KindVxlan,
		Vxlan: &netlink.VxlanAttrs{
			ID:        p.cfg.VxlanID,
			Link:      uplinkIdx,
			Local:     netipAddrToIP(hostIP),
			Port:      p.cfg.VxlanPort,
			Learning:  false,
			FlowBased: false,
			TTL:       0,
		},
	}
	if err := p.link.Add(vx); err != nil {
		return 0, err
	}

	l, err := p.link.Get(p.cfg.VxlanName)
	if err != nil {
		return 0, err
	}
	if !l.IsUp() {
		if err := p.link.SetUp(l.Attrs.Index); err != nil {
			return 0, err
		}
	}

	ipnet := prefixToIPNet(netip.PrefixFrom(hostIP, hostIP.BitLen()))
	if err := p.addr.Add(&netlink.Address{LinkIndex: l.Attrs.Index, IPNet: ipnet}); err != nil {
		return 0, err
	}

	return l.Attrs.Index, nil
}

// programPeers runs one independently idempotent task per peer node
// route, fanning out with errgroup so a slow or failing peer resolution
// (e.g. a stalled exec into a remote pod) doesn't block the others.
// The group has no shared context, so one peer's failure does not
// cancel its siblings; Wait returns the first error after all finish.
// Each task opens its own netlink socket (see NewProgrammer's doc
// comment) instead of sharing p.req, matching the reference
// implementation's Netlink::new() per task.
func (p *Programmer) programPeers(ctx context.Context, view clusterview.ClusterView, vxlanIdx int32, hostIP netip.Addr, podCIDR netip.Prefix, routes []clusterview.NodeRoute) error {
	var g errgroup.Group

	for _, r := range routes {
		r := r
		if r.PodCIDR == podCIDR || r.NodeIP == hostIP {
			continue // skip our own route
		}
		g.Go(func() error {
			if err := p.programPeer(ctx, view, vxlanIdx, r); err != nil {
				p.log.Error("peer programming failed", "peer", r.NodeIP, "error", err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func (p *Programmer) programPeer(ctx context.Context, view clusterview.ClusterView, vxlanIdx int32, r clusterview.NodeRoute) error {
	sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
	if err != nil {
		return fmt.Errorf("open netlink socket for peer %s: %w", r.NodeIP, err)
	}
	defer sock.Close()
	req := netlink.NewRequester(sock)
	route := netlink.NewRouteHandle(req)
	neigh := netlink.NewNeighHandle(req)

	gw := firstHostAddress(r.PodCIDR)
	dst := prefixToIPNet(r.PodCIDR)

	if err := route.Add(&netlink.Route{
		LinkIndex: vxlanIdx,
		Dst:       dst,
		Gw:        netipAddrToIP(gw),
		OnLink:    true,
	}); err != nil {
		return fmt.Errorf("add route to %s: %w", r.PodCIDR, err)
	}

	mac, err := view.PeerVxlanMAC(ctx, r.NodeIP)
	if err != nil {
		return fmt.Errorf("resolve peer vxlan MAC for %s: %w", r.NodeIP, err)
	}

	if err := neigh.Add(&netlink.Neighbor{
		LinkIndex: vxlanIdx,
		Family:    netlink.AFInet,
		IP:        netipAddrToIP(gw),
		LLAddr:    mac,
	}); err != nil {
		return fmt.Errorf("add arp entry for %s: %w", gw, err)
	}

	if err := neigh.Add(&netlink.Neighbor{
		LinkIndex: vxlanIdx,
		Family:    netlink.AFBridge,
		IP:        netipAddrToIP(r.NodeIP),
		LLAddr:    mac,
	}); err != nil {
		return fmt.Errorf("add fdb entry for %s: %w", r.NodeIP, err)
	}

	return nil
}
