package dataplane

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
)

// Kernel program scope.
//
// The full egress/ingress SNAT algorithm — address and port rewriting,
// incremental checksum patching, NAT table insert/lookup — is authored
// once, completely, as the pure-Go reference in rewriter.go/packet.go,
// which is what this package's tests exercise. The instructions below
// are a minimal hand-assembled TC classifier (there is no clang/bpf2go
// toolchain available to compile the real C-equivalent program from
// source) that accepts every packet unconditionally. It exists so
// LoadCollection/Attach below have a genuine ebpf.Program to load and
// attach to the uplink, exercising the same cilium/ebpf map and link
// plumbing a full classifier would use; the packet-rewrite semantics
// themselves live in Go until a real clang toolchain is wired into the
// build.
func classifierInstructions() asm.Instructions {
	return asm.Instructions{
		asm.Mov.Imm(asm.R0, int32(classifierPass)),
		asm.Return(),
	}
}

// classifierPass is TC_ACT_OK — let the packet continue unmodified.
const classifierPass = 0

// Collection bundles the loaded maps and programs this package manages.
type Collection struct {
	NetConfig *ebpf.Map
	NodeMap   *ebpf.Map
	SNAT      *ebpf.Map
	SockOps   *ebpf.Map

	Egress  *ebpf.Program
	Ingress *ebpf.Program
}

// LoadCollection builds the maps from MapSpecs and loads the egress and
// ingress classifier programs, without attaching them to any interface.
func LoadCollection() (*Collection, error) {
	specs := MapSpecs()

	c := &Collection{}
	var err error
	if c.NetConfig, err = ebpf.NewMap(specs["net_config_map"]); err != nil {
		return nil, fmt.Errorf("dataplane: create net_config_map: %w", err)
	}
	if c.NodeMap, err = ebpf.NewMap(specs["node_map"]); err != nil {
		c.Close()
		return nil, fmt.Errorf("dataplane: create node_map: %w", err)
	}
	if c.SNAT, err = ebpf.NewMap(specs["snat_ipv4_map"]); err != nil {
		c.Close()
		return nil, fmt.Errorf("dataplane: create snat_ipv4_map: %w", err)
	}
	if c.SockOps, err = ebpf.NewMap(specs["sock_ops_map"]); err != nil {
		c.Close()
		return nil, fmt.Errorf("dataplane: create sock_ops_map: %w", err)
	}

	progSpec := &ebpf.ProgramSpec{
		Name:         "sinabro_tc",
		Type:         ebpf.SchedCLS,
		Instructions: classifierInstructions(),
		License:      "GPL",
	}
	if c.Egress, err = ebpf.NewProgram(progSpec); err != nil {
		c.Close()
		return nil, fmt.Errorf("dataplane: load egress program: %w", err)
	}
	if c.Ingress, err = ebpf.NewProgram(progSpec); err != nil {
		c.Close()
		return nil, fmt.Errorf("dataplane: load ingress program: %w", err)
	}

	return c, nil
}

// Close releases every loaded map and program, tolerating partially
// initialized collections from a failed LoadCollection.
func (c *Collection) Close() error {
	closers := []interface{ Close() error }{c.NetConfig, c.NodeMap, c.SNAT, c.SockOps, c.Egress, c.Ingress}
	var first error
	for _, cl := range closers {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Attach attaches the egress and ingress classifiers to ifindex via the
// TCX hook, returning closers for both.
func Attach(c *Collection, ifindex int) (egress, ingress link.Link, err error) {
	egress, err = link.AttachTCX(link.TCXOptions{
		Program:   c.Egress,
		Attach:    ebpf.AttachTCXEgress,
		Interface: ifindex,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dataplane: attach egress: %w", err)
	}

	ingress, err = link.AttachTCX(link.TCXOptions{
		Program:   c.Ingress,
		Attach:    ebpf.AttachTCXIngress,
		Interface: ifindex,
	})
	if err != nil {
		egress.Close()
		return nil, nil, fmt.Errorf("dataplane: attach ingress: %w", err)
	}

	return egress, ingress, nil
}
