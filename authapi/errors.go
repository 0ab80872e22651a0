package authapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest       = errors.New("authapi: bad request")
	ErrNotFound         = errors.New("authapi: route not found")
	ErrServerFault      = errors.New("authapi: server error")
	ErrUnexpectedStatus = errors.New("authapi: unexpected status")
	ErrTransport        = errors.New("authapi: transport failure")
)

// StatusError reports a non-2xx reply. Message is the service's own message
// when the body carried one.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authapi %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authapi %s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return statusSentinel(e.StatusCode)
}

func statusSentinel(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusInternalServerError:
		return ErrServerFault
	default:
		return ErrUnexpectedStatus
	}
}

// TransportError wraps a failure that happened before a status code was read.
// Error returns the underlying message unchanged so callers can show it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}
