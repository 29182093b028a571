package repl

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// NetProvider provides line-delimited communication over a stream socket (unix or tcp).
type NetProvider struct {
	network string
	address string

	// WaitForSocket polls for a unix socket file to appear before dialing (default: 5s)
	WaitForSocket time.Duration
}

// NewNetProvider creates a new socket communication provider
func NewNetProvider(network, address string) *NetProvider {
	return &NetProvider{
		network:       network,
		address:       address,
		WaitForSocket: 5 * time.Second,
	}
}

// Open implements Provider
func (n *NetProvider) Open(ctx context.Context) (Channel, error) {
	if n.network == "unix" {
		if err := n.waitForSocketFile(ctx); err != nil {
			return nil, err
		}
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, n.network, n.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s socket %s: %w", n.network, n.address, err)
	}
	return newStreamChannel(conn, conn, conn.Close), nil
}

// waitForSocketFile waits for the bridge to create its socket file
func (n *NetProvider) waitForSocketFile(ctx context.Context) error {
	deadline := time.Now().Add(n.WaitForSocket)
	for {
		if _, err := os.Stat(n.address); err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return nil // let the dial report the real error
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
