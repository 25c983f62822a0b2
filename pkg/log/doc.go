// Package log wraps zerolog to provide structured, leveled logging for the
// keeper daemon, with per-app and per-incarnation child loggers so every
// log line emitted during a Supervisor's lifecycle carries its app tag.
package log
