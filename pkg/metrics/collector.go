package metrics

import (
	"time"

	"github.com/cuemby/keeper/pkg/types"
)

// StateLister reports the current AppState of every app the daemon
// supervises. Implemented by the daemon's supervisor registry.
type StateLister interface {
	States() map[types.AppName]types.AppState
}

// RouteCounter reports how many routes are currently published and how many
// ports are currently leased. Implemented by *router.Table.
type RouteCounter interface {
	Len() int
	LeasedPorts() int
}

// Collector periodically snapshots app states and route counts into the
// package's Prometheus gauges.
type Collector struct {
	apps   StateLister
	routes RouteCounter
	stopCh chan struct{}
}

// NewCollector builds a Collector polling apps and routes every tick.
func NewCollector(apps StateLister, routes RouteCounter) *Collector {
	return &Collector{apps: apps, routes: routes, stopCh: make(chan struct{})}
}

// Start begins collecting on a 15s tick, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	counts := map[types.AppState]int{
		types.AppStateBootstrapping: 0,
		types.AppStateServing:       0,
		types.AppStateReloading:     0,
		types.AppStateDead:          0,
	}
	for _, st := range c.apps.States() {
		counts[st]++
	}
	for st, n := range counts {
		AppsTotal.WithLabelValues(string(st)).Set(float64(n))
	}

	RoutesTotal.Set(float64(c.routes.Len()))
	PortLeasesInUse.Set(float64(c.routes.LeasedPorts()))
}
