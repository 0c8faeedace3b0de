package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ErrMissingField is wrapped by a *DecodeError when a response lacks a required field.
var ErrMissingField = errors.New("missing field")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Code, e.Message)
}

// DecodeError is returned when a response body is not what the endpoint promises.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// NewRequestID returns a fresh sortable request id.
func NewRequestID() string {
	return ulid.Make().String()
}

// WithRequestID attaches id to ctx so every call made with it carries the same X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
