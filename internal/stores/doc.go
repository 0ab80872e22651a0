// Package stores provides the backends that hold the single in-progress
// password-reset record of a controller.
//
// # Design
//
// A record holds the flow id, target email, SHA-256 of the one-time code,
// absolute expiry, and the verified flag. Save overwrites the previous record
// under the same key, which makes a new reset request latest-wins. The Redis
// backend stores a versioned binary encoding with a TTL and flips the verified
// flag inside a WATCH/MULTI transaction that retries on contention.
//
// # Architecture boundaries
//
// This package owns persistence only. It does not generate codes, judge
// expiry, or produce user-facing messages; those belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import authflow or any sibling internal package.
//   - Store or log plaintext codes.
package stores
