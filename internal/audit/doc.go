// Package audit implements async event dispatching for authentication and
// password-reset operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op,
//     [SinkFunc], [Fanout]).
//   - [Dispatcher]: numbered, buffered async relay that drops when full or
//     waits for space until the caller's context ends.
//   - [Event]: structured audit record with timestamp, type, subject, flow and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine and the flow functions do.
package audit
