package runner

import (
	"errors"
	"fmt"
)

// ErrorKind tags the failure modes a query runner reports to the host.
type ErrorKind int

// ErrorKind constants.
const (
	// KindQueryFailed is any query or serialization failure not covered below.
	KindQueryFailed ErrorKind = iota
	// KindConfigurationUnavailable means the runner's client is not present.
	KindConfigurationUnavailable
	// KindServerUnreachable means the liveness probe failed before submission.
	KindServerUnreachable
	// KindQueryCancelled means the caller cancelled the query.
	KindQueryCancelled
	// KindSchemaIntrospectionFailed means the metadata query failed.
	KindSchemaIntrospectionFailed
)

// CancelledMessage is the exact message reported for user cancellation.
const CancelledMessage = "Query cancelled by user."

func (k ErrorKind) String() string {
	switch k {
	case KindConfigurationUnavailable:
		return "configuration unavailable"
	case KindServerUnreachable:
		return "server not reachable"
	case KindQueryCancelled:
		return "query cancelled"
	case KindSchemaIntrospectionFailed:
		return "schema introspection failed"
	default:
		return "query failed"
	}
}

// Error is the structured error every runner operation returns.
type Error struct {
	Kind ErrorKind
	// Runner is the type key of the runner that failed.
	Runner string
	// Query is the query text involved, if any.
	Query string
	// Err is the underlying cause.
	Err error
}

// Sentinel errors for errors.Is matching by kind.
var (
	ErrConfigurationUnavailable  = &Error{Kind: KindConfigurationUnavailable}
	ErrServerUnreachable         = &Error{Kind: KindServerUnreachable}
	ErrQueryCancelled            = &Error{Kind: KindQueryCancelled}
	ErrQueryFailed               = &Error{Kind: KindQueryFailed}
	ErrSchemaIntrospectionFailed = &Error{Kind: KindSchemaIntrospectionFailed}
)

// Error returns the message surfaced to the host. It is never empty.
func (e *Error) Error() string {
	switch e.Kind {
	case KindQueryCancelled:
		return CancelledMessage
	case KindSchemaIntrospectionFailed:
		if e.Err != nil {
			return "Failed getting schema: " + e.Err.Error()
		}
		return "Failed getting schema."
	case KindQueryFailed:
		if e.Err != nil && e.Err.Error() != "" {
			return e.Err.Error()
		}
		return e.Kind.String()
	default:
		if e.Err != nil && e.Err.Error() != "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrQueryCancelled)
// works regardless of cause or query.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err is, or wraps, a runner Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// KindOf returns the kind of a runner Error, or KindQueryFailed for any
// other non-nil error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindQueryFailed
}
