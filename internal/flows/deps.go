package flows

import "errors"

// Fallbacks for deps built without an Errors set, so a zero-value deps struct
// still fails instead of panicking.
var (
	errLoginFlowNotReady = errors.New("login flow not ready")
	errResetFlowNotReady = errors.New("password reset flow not ready")
)
