package netx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	require.NoError(t, Reachable(context.Background(), addr, time.Second))

	require.NoError(t, ln.Close())
	require.Error(t, Reachable(context.Background(), addr, 200*time.Millisecond))
}
