// Package orchestrator sequences the agent's startup: resolve cluster
// state, program the datapath, load and attach the packet-rewrite
// program, start the IP allocator and control servers, and watch for
// future peer changes — the bootstrap sequence named C7 in the overlay
// agent's component design.
package orchestrator

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/cilium/ebpf/link"
	"golang.org/x/sys/unix"

	"github.com/wqld/sinabro/internal/allocator"
	"github.com/wqld/sinabro/internal/cniconfig"
	"github.com/wqld/sinabro/internal/clusterview"
	"github.com/wqld/sinabro/internal/config"
	"github.com/wqld/sinabro/internal/control"
	"github.com/wqld/sinabro/internal/dataplane"
	"github.com/wqld/sinabro/internal/datapath"
	"github.com/wqld/sinabro/internal/netlink"
)

// Orchestrator drives the full agent lifecycle described in the
// bootstrap/orchestrator component: programming the datapath once at
// startup, loading and attaching the kernel packet-rewrite program,
// serving IP allocation and status over HTTP, and re-running the
// datapath program on every cluster-view change the watcher reports.
type Orchestrator struct {
	cfg  config.Config
	view clusterview.ClusterView
	log  *slog.Logger

	sock *netlink.Socket
	req  *netlink.Requester
	prog *datapath.Programmer

	collection     *dataplane.Collection
	egress         link.Link
	ingress        link.Link
	allocatorStore *allocator.Store
	allocatorSrv   *allocator.Server
	controlSrv     *control.Server
	watcher        *clusterview.Watcher

	startTime time.Time
}

// New creates an Orchestrator over the given agent configuration and
// cluster view.
func New(cfg config.Config, view clusterview.ClusterView, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{cfg: cfg, view: view, log: log.With("component", "orchestrator")}
}

// Run executes the full startup sequence and then blocks, re-running
// the datapath programming step whenever the cluster-view watcher
// reports a route-set change, until ctx is cancelled. On cancellation
// it tears down every resource it started.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	hostIP, err := o.view.HostIP(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve host ip: %w", err)
	}
	clusterCIDR, err := o.view.ClusterCIDR(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve cluster cidr: %w", err)
	}
	podCIDR, err := o.view.PodCIDR(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve pod cidr: %w", err)
	}

	if err := cniconfig.Write(o.cfg.CNI.ConfigPath, clusterCIDR, podCIDR); err != nil {
		return fmt.Errorf("orchestrator: write cni config: %w", err)
	}
	o.log.Info("wrote cni config", "path", o.cfg.CNI.ConfigPath)

	sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
	if err != nil {
		return fmt.Errorf("orchestrator: open netlink socket: %w", err)
	}
	o.sock = sock
	o.req = netlink.NewRequester(sock)

	o.prog = datapath.NewProgrammer(datapath.Config{
		BridgeName: o.cfg.Datapath.BridgeName,
		UplinkName: o.cfg.Datapath.UplinkName,
		VxlanName:  o.cfg.Datapath.VxlanName,
		VxlanID:    o.cfg.Datapath.VxlanID,
		VxlanPort:  o.cfg.Datapath.VxlanPort,
		VxlanMTU:   o.cfg.Datapath.VxlanMTU,
	}, o.req, o.log)

	if err := o.prog.Run(ctx, o.view); err != nil {
		o.Shutdown()
		return fmt.Errorf("orchestrator: program datapath: %w", err)
	}

	if err := o.loadAndAttachDataplane(hostIP, clusterCIDR); err != nil {
		o.Shutdown()
		return err
	}

	if err := o.startAllocator(podCIDR); err != nil {
		o.Shutdown()
		return err
	}

	o.controlSrv = control.NewServer(control.ResolveSocketPath(), o.statusSnapshot, o.log)
	if err := o.controlSrv.Start(); err != nil {
		o.Shutdown()
		return fmt.Errorf("orchestrator: start control server: %w", err)
	}

	o.watcher = clusterview.NewWatcher(o.view, clusterview.WatchConfig{Logger: o.log})
	go o.watcher.Run(ctx)
	go o.watchLoop(ctx)

	<-ctx.Done()
	o.Shutdown()
	return nil
}

// loadAndAttachDataplane loads the packet-rewrite maps/programs,
// populates NET_CONFIG_MAP and NODE_MAP from the resolved cluster
// view, and attaches the classifiers to the configured uplink.
func (o *Orchestrator) loadAndAttachDataplane(hostIP netip.Addr, clusterCIDR netip.Prefix) error {
	coll, err := dataplane.LoadCollection()
	if err != nil {
		return fmt.Errorf("orchestrator: load dataplane program: %w", err)
	}
	o.collection = coll

	hostInfo := dataplane.NetworkInfo{IP: addrToU32(hostIP), SubnetMask: 0}
	clusterInfo := dataplane.NetworkInfo{
		IP:         addrToU32(clusterCIDR.Addr()),
		SubnetMask: prefixMaskU32(clusterCIDR),
	}
	if err := coll.SetNetConfig(clusterInfo, hostInfo); err != nil {
		return fmt.Errorf("orchestrator: populate net config map: %w", err)
	}

	routes, err := o.view.NodeRoutes(context.Background())
	if err != nil {
		return fmt.Errorf("orchestrator: resolve node routes for node map: %w", err)
	}
	nodeIPs := make([]uint32, 0, len(routes)+1)
	nodeIPs = append(nodeIPs, addrToU32(hostIP))
	for _, r := range routes {
		nodeIPs = append(nodeIPs, addrToU32(r.NodeIP))
	}
	if err := coll.SetNodeIPs(nodeIPs); err != nil {
		return fmt.Errorf("orchestrator: populate node map: %w", err)
	}

	uplink, err := netlink.NewLinkHandle(o.req).Get(o.cfg.Datapath.UplinkName)
	if err != nil {
		return fmt.Errorf("orchestrator: resolve uplink for attach: %w", err)
	}

	egress, ingress, err := dataplane.Attach(coll, int(uplink.Attrs.Index))
	if err != nil {
		return fmt.Errorf("orchestrator: attach dataplane program: %w", err)
	}
	o.egress, o.ingress = egress, ingress
	o.log.Info("attached packet-rewrite program", "iface", o.cfg.Datapath.UplinkName)
	return nil
}

// startAllocator opens (or seeds) the IP store and starts the
// allocator HTTP service.
func (o *Orchestrator) startAllocator(podCIDR netip.Prefix) error {
	store, err := allocator.NewStore(podCIDR, o.cfg.Allocator.StorePath)
	if err != nil {
		return fmt.Errorf("orchestrator: open ip store: %w", err)
	}
	o.allocatorStore = store

	srv := allocator.NewServer(o.cfg.Allocator.BindAddress, store, o.log)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("orchestrator: start allocator server: %w", err)
	}
	o.allocatorSrv = srv
	return nil
}

// watchLoop re-runs the datapath programming sequence whenever the
// cluster watcher reports a change to the node route set — the
// programming sequence is idempotent, so this converges the host state
// to the new topology without requiring a restart.
func (o *Orchestrator) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-o.watcher.Changes():
			if !ok {
				return
			}
			o.log.Info("node routes changed, reprogramming datapath")
			if err := o.prog.Run(ctx, o.view); err != nil {
				o.log.Error("reprogramming datapath after route change", "error", err)
			}
		}
	}
}

// statusSnapshot implements control.StatusProvider.
func (o *Orchestrator) statusSnapshot() control.Status {
	ctx := context.Background()
	hostIP, _ := o.view.HostIP(ctx)
	clusterCIDR, _ := o.view.ClusterCIDR(ctx)
	podCIDR, _ := o.view.PodCIDR(ctx)
	routes, _ := o.view.NodeRoutes(ctx)

	peers := make([]control.PeerStatus, 0, len(routes))
	for _, r := range routes {
		peers = append(peers, control.PeerStatus{
			NodeIP:  r.NodeIP.String(),
			PodCIDR: r.PodCIDR.String(),
			Synced:  true,
		})
	}

	return control.Status{
		HostIP:          hostIP.String(),
		PodCIDR:         podCIDR.String(),
		ClusterCIDR:     clusterCIDR.String(),
		DatapathReady:   o.prog != nil,
		ProgramAttached: o.collection != nil,
		UptimeSeconds:   time.Since(o.startTime).Seconds(),
		Peers:           peers,
	}
}

// Shutdown tears down every resource Run started, tolerating a partial
// startup (nil fields are skipped).
func (o *Orchestrator) Shutdown() {
	if o.controlSrv != nil {
		o.controlSrv.Stop()
	}
	if o.allocatorSrv != nil {
		o.allocatorSrv.Stop()
	}
	if o.ingress != nil {
		o.ingress.Close()
	}
	if o.egress != nil {
		o.egress.Close()
	}
	if o.collection != nil {
		o.collection.Close()
	}
	if o.sock != nil {
		o.sock.Close()
	}
}

func addrToU32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func prefixMaskU32(p netip.Prefix) uint32 {
	bits := p.Bits()
	var mask uint32
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	return mask
}
