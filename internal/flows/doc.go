// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunStartPasswordReset, RunVerifyPasswordResetCode,
// ...) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies. This keeps the Engine thin and lets
// tests drive every branch with stub dependencies and a fixed clock.
//
// # Architecture boundaries
//
// Flow functions coordinate the reset-session store, the authentication
// service, audit, and metrics. They do NOT own any of these resources, and
// they never produce user-facing text: they return sentinel errors supplied
// through the deps and the root package turns those into messages.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authflow (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
