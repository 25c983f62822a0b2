package health

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBudget is the total time the probe retries for before giving up.
const DefaultBudget = 90 * time.Second

// DefaultInterval is the wait between connect attempts.
const DefaultInterval = 2 * time.Second

// Probe reports whether a TCP connection to 127.0.0.1:port succeeds within
// budget, retrying every interval. It waits interval before the first
// attempt: wait, then connect, then retry on failure. A connection that
// accepted but failed to close cleanly still counts as healthy; the close
// error is only logged, never fatal.
func Probe(ctx context.Context, port int, budget, interval time.Duration, logger zerolog.Logger) bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false
			}
			conn, err := net.DialTimeout("tcp", addr, interval)
			if err != nil {
				continue
			}
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Int("port", port).Msg("probe connection close failed")
			}
			return true
		}
	}
}
