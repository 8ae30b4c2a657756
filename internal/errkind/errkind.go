// Package errkind names the error taxonomy shared across the digest
// pipeline so call sites can branch on *kind* of failure instead of
// sniffing error strings.
package errkind

import "fmt"

// Kind classifies a failure the way the rest of the system needs to react
// to it, not the way it happened to occur.
type Kind string

const (
	// UpstreamTransient is worth retrying at the call site.
	UpstreamTransient Kind = "upstream_transient"
	// UpstreamUnavailable means retries are exhausted; the caller should
	// degrade (placeholder block) rather than fail the whole digest.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// CategoryStarved means the selection engine could not fill five
	// slots even after widening to the fallback horizon.
	CategoryStarved Kind = "category_starved"
	// TransportRateLimited carries a retry-after hint from the transport.
	TransportRateLimited Kind = "transport_rate_limited"
	// TransportPermanent means the recipient can never be delivered to
	// again (unauthorized, chat not found) until re-subscribed.
	TransportPermanent Kind = "transport_permanent"
	// Fatal means the process cannot continue (bad config, unwritable
	// data dir) and should exit non-zero.
	Fatal Kind = "fatal"
)

// Error wraps an underlying error with a Kind so it can be inspected with
// errors.As without string matching.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Retry   bool
	RetryAt string // opaque retry-after hint, e.g. from a transport 429
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ee, ok := err.(*Error); ok {
		e = ee
	} else {
		return false
	}
	return e.Kind == kind
}
