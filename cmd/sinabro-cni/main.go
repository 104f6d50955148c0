// Command sinabro-cni is the CNI plugin invoked by the container
// runtime for every pod's network setup and teardown: it wires a veth
// pair into the bridge sinabro-agent maintains, allocates the pod's
// address from that agent's IP allocator, and configures the address
// and default route inside the pod's network namespace.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wqld/sinabro/pkg/cni"
)

func main() {
	if err := run(); err != nil {
		emitError(err)
		os.Exit(1)
	}
}

func run() error {
	env := cni.Env{
		Command:     os.Getenv("CNI_COMMAND"),
		ContainerID: os.Getenv("CNI_CONTAINERID"),
		NetNS:       os.Getenv("CNI_NETNS"),
		IfName:      os.Getenv("CNI_IFNAME"),
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin config: %w", err)
	}

	var conf cni.NetConf
	if err := json.Unmarshal(raw, &conf); err != nil {
		return fmt.Errorf("parse stdin config: %w", err)
	}

	switch env.Command {
	case cni.CommandAdd:
		result, err := runAdd(env, conf)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(result)
	case cni.CommandDel:
		return runDel(env, conf)
	default:
		return fmt.Errorf("unsupported CNI_COMMAND %q", env.Command)
	}
}

// emitError writes the standard CNI error envelope to stdout, per the
// "non-zero exit with JSON error object" contract every plugin must
// honor regardless of which command failed.
func emitError(err error) {
	e := cni.Error{
		CNIVersion: "0.3.0",
		Code:       cni.ErrInternal,
		Msg:        err.Error(),
	}
	json.NewEncoder(os.Stdout).Encode(e)
}
