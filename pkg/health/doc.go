// Package health implements the readiness gate a newly launched child must
// pass before the supervisor publishes its routes: a bounded TCP-connect
// retry loop against 127.0.0.1:port.
package health
