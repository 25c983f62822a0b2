// Package kerrs defines the typed error kinds a Supervisor reacts to when
// deciding whether a failure is fatal (Bring-up), soft (Reload), or ignored
// (Terminate).
package kerrs

import "fmt"

// Kind discriminates the error conditions a Supervisor must tell apart.
type Kind string

const (
	BundleIO        Kind = "bundle_io"
	BundleUnsafe    Kind = "bundle_unsafe"
	TempDirFailed   Kind = "temp_dir_failed"
	ConfigMissing   Kind = "config_missing"
	ConfigMalformed Kind = "config_malformed"
	PortExhausted   Kind = "port_exhausted"
	ChildSpawnFailed Kind = "child_spawn_failed"
	ProbeTimeout    Kind = "probe_timeout"
	DBUnavailable   Kind = "db_unavailable"
)

// Error wraps an underlying error with a Kind so callers can branch with
// errors.Is/errors.As without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err carries the given Kind, so callers can write
// errors.Is(err, kerrs.New(kerrs.BundleUnsafe, "", nil)) style checks via
// HasKind instead — Is is defined to satisfy errors.Is with a Kind sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an *Error for the given Kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// HasKind reports whether err (or anything it wraps) is a *Error of the
// given Kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
