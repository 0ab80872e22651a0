// Package authflow is the client side of an email and password
// authentication service: login, registration and a three-step password
// reset driven by a five digit one-time code.
//
// Every operation reports its progress through one shared [Machine], which
// moves Idle → Loading → Success or Error. Screens subscribe to it and drain
// terminal results with [Engine.TakeResult].
//
// An [Engine] is assembled once with [Builder] and is safe for concurrent use.
// Concurrent operations are latest-wins: the last transition is the state.
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Engine], [Builder], [Config],
// [ResetController] and value types (RequestState, SessionInfo,
// MetricsSnapshot). Flow orchestration, reset-session storage, message
// catalogs and audit dispatch live under internal/ and are never exported.
// The HTTP wire format belongs to the authapi package.
//
// # What this package must NOT do
//
//   - Store a plaintext reset code anywhere (only its SHA-256 is kept).
//   - Change a credential on the authentication service during a reset.
//   - Persist the login session beyond the lifetime of the Engine.
package authflow
