package walkai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/walkai/stride/internal/query"
)

// TransportError reports a request that never produced a valid success
// payload: a network failure (Status 0) or a non-2xx response. Detail
// carries the backend's detail message when one was provided.
type TransportError struct {
	Status int
	Detail string
	cause  error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Detail)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}

func (e *TransportError) Unwrap() error {
	return e.cause
}

// SchemaError reports a 2xx response whose body failed structural
// validation. This is the only defense against backend/client schema drift,
// so fetchers raise it rather than passing malformed payloads through.
type SchemaError struct {
	Resource string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Resource, e.Reason)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// TransportError (or was a pure network failure).
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// DetailOf returns the backend detail message carried by err, falling back
// when err carries none.
func DetailOf(err error, fallback string) string {
	var te *TransportError
	if errors.As(err, &te) && strings.TrimSpace(te.Detail) != "" {
		return te.Detail
	}
	return fallback
}

// ErrorTag is the base mutation classifier: transport and schema failures
// map to their tags, anything else is unknown. Pages layer the
// status-specific business meanings (409 conflict, 400 expired) on top.
func ErrorTag(err error) query.Tag {
	var te *TransportError
	if errors.As(err, &te) {
		return query.TagTransport
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return query.TagSchema
	}
	return query.TagUnknown
}
