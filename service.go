package authflow

import (
	"context"
	"errors"

	"github.com/MrEthical07/authflow/authapi"
)

// AuthService is the remote authentication backend. *authapi.Client
// implements it; tests substitute fakes.
type AuthService interface {
	Login(ctx context.Context, req authapi.LoginRequest) (*authapi.LoginResponse, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterResponse, error)
}

var _ AuthService = (*authapi.Client)(nil)

// ServiceError is returned by Login and Register when the service call
// fails. It unwraps to one of the ErrService* sentinels and to the original
// error. StatusCode is zero when no HTTP status was received.
type ServiceError struct {
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

// Error returns the underlying message so transport failures read the same
// as they did at the source.
func (e *ServiceError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrapServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ServiceError
	if errors.As(err, &existing) {
		return err
	}

	se := &ServiceError{Op: op, Kind: ErrServiceUnavailable, Err: err}

	var status *authapi.StatusError
	if errors.As(err, &status) {
		se.StatusCode = status.StatusCode
		switch {
		case errors.Is(err, authapi.ErrBadRequest):
			se.Kind = ErrServiceBadRequest
		case errors.Is(err, authapi.ErrNotFound):
			se.Kind = ErrServiceNotFound
		case errors.Is(err, authapi.ErrServerFault):
			se.Kind = ErrServiceFault
		default:
			se.Kind = ErrServiceStatus
		}
	}
	return se
}
