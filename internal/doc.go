// Package internal holds the reset-code primitives shared by the engine:
// uniform five digit generation from crypto/rand and constant-time matching
// against a stored SHA-256.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for login, register and reset
//   - logging: slog setup with trace correlation and secret redaction
//   - messages: go-i18n catalog of user-facing texts (es, en)
//   - stores: in-memory and Redis reset-session backends
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Be imported by any package outside the authflow module.
package internal
