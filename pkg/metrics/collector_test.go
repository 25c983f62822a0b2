package metrics

import (
	"testing"

	"github.com/cuemby/keeper/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeStateLister map[types.AppName]types.AppState

func (f fakeStateLister) States() map[types.AppName]types.AppState { return f }

type fakeRouteCounter struct {
	routes int
	leased int
}

func (f fakeRouteCounter) Len() int         { return f.routes }
func (f fakeRouteCounter) LeasedPorts() int { return f.leased }

func TestCollectorCollectUpdatesGauges(t *testing.T) {
	apps := fakeStateLister{
		"app1": types.AppStateServing,
		"app2": types.AppStateServing,
		"app3": types.AppStateReloading,
	}
	c := NewCollector(apps, fakeRouteCounter{routes: 5, leased: 3})

	c.collect()

	require.Equal(t, float64(2), testutil.ToFloat64(AppsTotal.WithLabelValues(string(types.AppStateServing))))
	require.Equal(t, float64(1), testutil.ToFloat64(AppsTotal.WithLabelValues(string(types.AppStateReloading))))
	require.Equal(t, float64(5), testutil.ToFloat64(RoutesTotal))
	require.Equal(t, float64(3), testutil.ToFloat64(PortLeasesInUse))
}
