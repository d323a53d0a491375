package feed

import (
	"fmt"
	"net/http"
)

// FailureKind names why a source yielded no document. It is logged as
// error_type on the "Could not get feed" line.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureForbidden   FailureKind = "forbidden"
	FailureNotFound    FailureKind = "not_found"
	FailureGone        FailureKind = "gone"
	FailureUpstream    FailureKind = "upstream_failure"
	FailureNetwork     FailureKind = "network"
	FailureParse       FailureKind = "parse_error"
	FailureUnexpected  FailureKind = "unexpected"
)

var statusKinds = map[int]FailureKind{
	http.StatusTooManyRequests: FailureRateLimited,
	http.StatusForbidden:       FailureForbidden,
	http.StatusNotFound:        FailureNotFound,
	http.StatusGone:            FailureGone,
}

// FetchError is returned by Adapter.Retrieve when a source yields no
// document. URL is the address actually requested, proxy prefix included.
type FetchError struct {
	Kind   FailureKind
	Status int // 0 when no response arrived
	URL    string
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: %s returned HTTP %d", e.Kind, e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Routine reports whether the failure is an ordinary upstream condition.
// Anything else is logged at error level.
func (e *FetchError) Routine() bool { return e.Kind != FailureUnexpected }

// NewStatusError classifies a non-2xx response.
func NewStatusError(status int, url string) *FetchError {
	kind, ok := statusKinds[status]
	switch {
	case ok:
	case status >= http.StatusInternalServerError && status < 600:
		kind = FailureUpstream
	default:
		kind = FailureUnexpected
	}
	return &FetchError{Kind: kind, Status: status, URL: url, Cause: fmt.Errorf("HTTP %d", status)}
}

// NewNetworkError wraps DNS, connection and timeout failures.
func NewNetworkError(cause error, url string) *FetchError {
	return &FetchError{Kind: FailureNetwork, URL: url, Cause: cause}
}

// NewParseError wraps a body that is neither RSS nor Atom.
func NewParseError(cause error, url string) *FetchError {
	return &FetchError{Kind: FailureParse, URL: url, Cause: cause}
}
