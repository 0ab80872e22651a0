// Package jwt inspects the bearer tokens returned by the authentication
// service. Without a signing method the claims are decoded but not verified,
// which is all an untrusted client can do; configured with an HS256 secret or
// an Ed25519 public key the signature and registered claims are enforced.
//
// The same Manager can issue tokens when given a private key. The fake server
// in authapi/authapitest uses that to mint realistic tokens.
package jwt
