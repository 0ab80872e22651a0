// Package authapi is the HTTP JSON client for the remote authentication service.
//
// Two routes are consumed, both relative to the configured base URL:
//
//	POST auth/login     {email,password}                   → {success?,message?,token?,user?}
//	POST auth/register  {name,last_name,email,password}    → {success?,message?}
//
// Non-2xx replies are returned as [*StatusError], which unwraps to one of
// [ErrBadRequest], [ErrNotFound], [ErrServerFault] or [ErrUnexpectedStatus].
// Failures below HTTP (DNS, dial, TLS, bad JSON) unwrap to [ErrTransport].
//
// Every call runs inside an OpenTelemetry client span taken from the global
// tracer provider and carries an X-Request-ID header.
package authapi
