// Package events is a lightweight in-process pub/sub bus broadcasting app
// lifecycle transitions (bootstrapping, serving, reloading, dead) to whoever
// subscribes — the admin API's SSE endpoint, primarily. The probe-timeout
// and reload-failed event types are declared, but nothing in this
// repository publishes them.
package events
