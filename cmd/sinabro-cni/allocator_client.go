package main

import (
	"fmt"
	"io"
	"net/http"
)

// allocatorBaseURL is the fixed loopback address sinabro-agent's IP
// allocator listens on (bound 0.0.0.0:3000, reachable from the host
// network namespace the plugin runs in before moving the veth peer
// into the container's namespace).
const allocatorBaseURL = "http://localhost:3000"

// requestContainerIP pops the lowest free address from the allocator.
func requestContainerIP() (string, error) {
	res, err := http.Get(allocatorBaseURL + "/ipam/ip")
	if err != nil {
		return "", fmt.Errorf("request container ip: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read allocator response: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("ip allocator exhausted")
	}
	return string(body), nil
}

// releaseContainerIP returns ip to the allocator's free set.
func releaseContainerIP(ip string) error {
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/ipam/ip/%s", allocatorBaseURL, ip), nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("release container ip: %w", err)
	}
	defer res.Body.Close()
	return nil
}
