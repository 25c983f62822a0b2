// Package api implements the keeper daemon's admin HTTP surface: listing
// apps and their AppState, triggering reload/terminate, streaming lifecycle
// events over SSE, and mounting /metrics and /healthz.
package api
