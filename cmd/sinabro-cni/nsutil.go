package main

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// withNetNS runs fn with the calling goroutine's thread switched into
// the network namespace at path, switching back before returning.
// Grounded on the reference implementation's use of
// nix::sched::setns(netns_file, CLONE_NEWNET) around the per-container
// interface configuration step; Go has no goroutine-local namespace, so
// the OS thread is locked for the duration instead.
func withNetNS(path string, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := os.Open("/proc/self/ns/net")
	if err != nil {
		return fmt.Errorf("open current netns: %w", err)
	}
	defer origNS.Close()

	targetNS, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open target netns %s: %w", path, err)
	}
	defer targetNS.Close()

	if err := unix.Setns(int(targetNS.Fd()), unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("setns into %s: %w", path, err)
	}
	defer unix.Setns(int(origNS.Fd()), unix.CLONE_NEWNET)

	return fn()
}
