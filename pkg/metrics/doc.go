// Package metrics exposes the keeper daemon's Prometheus metrics: app
// counts by AppState, route and port-lease counts, reload/bring-up/
// termination counters and a probe-duration histogram, plus a component
// health aggregator mounted by
// the admin API at /healthz, /ready, and /live.
//
// Collector polls a StateLister and a RouteCounter on a 15s tick; both are
// satisfied by the daemon's supervisor registry and *router.Table
// respectively, keeping this package free of a direct import on either.
// RegisterComponent/UpdateComponent are called by cmd/keeper as each of the
// daemon's own collaborators (store, router, proxy) comes up, so /ready
// reflects keeper's actual dependency set rather than a placeholder one.
package metrics
