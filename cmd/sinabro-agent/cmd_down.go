package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/wqld/sinabro/internal/netlink"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Remove the bridge and VXLAN devices this agent created",
	Long: `Deletes the bridge and VXLAN links created by 'sinabro-agent up'.
The kernel packet-rewrite program detaches automatically once the 'up'
process exits, since this agent doesn't pin its program/link handles to
bpffs; down only needs to clean up the persistent network devices.`,
	RunE: runDown,
}

func runDown(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sock, err := netlink.OpenSocket(unix.NETLINK_ROUTE, 0)
	if err != nil {
		return fmt.Errorf("open netlink socket: %w", err)
	}
	defer sock.Close()

	link := netlink.NewLinkHandle(netlink.NewRequester(sock))

	var errs []error
	if err := deleteIfExists(link, cfg.Datapath.VxlanName); err != nil {
		errs = append(errs, err)
	}
	if err := deleteIfExists(link, cfg.Datapath.BridgeName); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func deleteIfExists(link *netlink.LinkHandle, name string) error {
	l, err := link.Get(name)
	if err != nil {
		if errors.Is(err, netlink.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resolve %s: %w", name, err)
	}
	if err := link.Delete(l.Attrs.Index); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	globalLogger.Info("removed link", "name", name)
	return nil
}
