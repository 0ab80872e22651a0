package authflow

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine or ResetController is used before Build.
	ErrEngineNotReady = errors.New("authflow engine not ready")

	// ErrEmailRequired is returned by StartReset when the email is blank.
	ErrEmailRequired = errors.New("email required")
	// ErrPasswordPolicy is returned by FinishReset when the new password is too short.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrResetNoCode is returned when no reset code has been generated for the controller.
	ErrResetNoCode = errors.New("reset code not generated")
	// ErrResetCodeExpired is returned when the reset code lifetime has elapsed.
	ErrResetCodeExpired = errors.New("reset code expired")
	// ErrResetCodeMismatch is returned when the submitted code differs from the stored one.
	ErrResetCodeMismatch = errors.New("reset code mismatch")
	// ErrResetNotVerified is returned by FinishReset in strict mode when the code was never verified.
	ErrResetNotVerified = errors.New("reset code not verified")
	// ErrResetStoreUnavailable is returned when the reset session backend fails.
	ErrResetStoreUnavailable = errors.New("reset session backend unavailable")

	// ErrTokenMissing is returned by Login when the service reports success without a token.
	ErrTokenMissing = errors.New("token missing from login response")
	// ErrTokenRejected is returned by Login when token verification is configured and fails.
	ErrTokenRejected = errors.New("token rejected")
	// ErrServiceBadRequest maps a 400 from the authentication service.
	ErrServiceBadRequest = errors.New("authentication service rejected request")
	// ErrServiceNotFound maps a 404 from the authentication service.
	ErrServiceNotFound = errors.New("authentication service route not found")
	// ErrServiceFault maps a 500 from the authentication service.
	ErrServiceFault = errors.New("authentication service internal error")
	// ErrServiceStatus maps any other non-success status from the authentication service.
	ErrServiceStatus = errors.New("authentication service returned unexpected status")
	// ErrServiceUnavailable wraps transport failures reaching the authentication service.
	ErrServiceUnavailable = errors.New("authentication service unavailable")

	// ErrSubscriptionClosed is returned by Subscription.Next after Close.
	ErrSubscriptionClosed = errors.New("subscription closed")
)
