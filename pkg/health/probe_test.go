package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestProbeSucceedsOnceListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	ok := Probe(context.Background(), port, 5*time.Second, 10*time.Millisecond, zerolog.Nop())
	require.True(t, ok)
}

func TestProbeTimesOutWhenNothingListens(t *testing.T) {
	// Find a free port, then close it immediately so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	start := time.Now()
	ok := Probe(context.Background(), port, 30*time.Millisecond, 10*time.Millisecond, zerolog.Nop())
	require.False(t, ok)
	require.Less(t, time.Since(start), time.Second)
}

func TestProbeRespectsContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := Probe(ctx, port, 90*time.Second, 2*time.Second, zerolog.Nop())
	require.False(t, ok)
}
