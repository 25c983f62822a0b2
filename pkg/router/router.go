// Package router implements the front-end routing table and reverse proxy
// described below: a Router that App Supervisors publish and
// retract RouteTarget entries against, and a Proxy that dispatches incoming
// requests by Host header to the matching target.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/keeper/pkg/kerrs"
	"github.com/cuemby/keeper/pkg/types"
)

// PortRange bounds the ports GetPort hands out to newly launched children.
type PortRange struct {
	Low  int
	High int
}

// DefaultPortRange matches the ephemeral range Keter itself reserves for
// app children.
var DefaultPortRange = PortRange{Low: 4000, High: 4999}

// Table is the in-memory routing table: a concurrency-safe host → RouteTarget
// map plus a leased-port pool. It implements supervisor.Router.
type Table struct {
	mu      sync.RWMutex
	entries map[string]types.RouteTarget
	leased  map[int]bool
	rng     PortRange
	cursor  int
}

// New constructs an empty Table over the given port range.
func New(rng PortRange) *Table {
	return &Table{
		entries: make(map[string]types.RouteTarget),
		leased:  make(map[int]bool),
		rng:     rng,
		cursor:  rng.Low - 1,
	}
}

// GetPort leases the next free port in the configured range, wrapping
// around once it is exhausted. Returns kerrs.PortExhausted if every port in
// the range is currently leased.
func (t *Table) GetPort(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span := t.rng.High - t.rng.Low + 1
	for i := 0; i < span; i++ {
		t.cursor++
		if t.cursor > t.rng.High {
			t.cursor = t.rng.Low
		}
		if !t.leased[t.cursor] {
			t.leased[t.cursor] = true
			return t.cursor, nil
		}
	}
	return 0, kerrs.New(kerrs.PortExhausted, "lease port", fmt.Errorf("no free port in [%d,%d]", t.rng.Low, t.rng.High))
}

// ReleasePort returns a previously leased port to the pool. Releasing a
// port that isn't leased is a no-op.
func (t *Table) ReleasePort(ctx context.Context, port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.leased, port)
	return nil
}

// AddEntry publishes or replaces the route for host. Never fails in this
// in-memory implementation; the error return exists for the Router
// interface's remote-transport implementations (see pkg/rpc).
func (t *Table) AddEntry(ctx context.Context, host string, target types.RouteTarget) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[host] = target
	return nil
}

// RemoveEntry retracts the route for host, if any.
func (t *Table) RemoveEntry(ctx context.Context, host string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, host)
	return nil
}

// Lookup returns the RouteTarget published for host and whether one exists.
// Used by Proxy to dispatch incoming requests.
func (t *Table) Lookup(host string) (types.RouteTarget, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	target, ok := t.entries[host]
	return target, ok
}

// Len reports the number of published routes. Used by the metrics collector.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LeasedPorts reports how many ports are currently leased to running
// children. Used by the metrics collector.
func (t *Table) LeasedPorts() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leased)
}
