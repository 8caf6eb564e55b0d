// Package netx holds network probes used when choosing a storage backend.
package netx

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Reachable reports whether a TCP connection to addr can be opened within
// timeout. It is a cheap pre-check before a full gRPC handshake.
func Reachable(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}
