// Package audit records security-relevant events asynchronously.
//
// # Components
//
//   - [Event] is a structured record with a ULID, timestamp, type, user, client and metadata.
//   - [Sink] consumes events. Provided sinks write to a channel, a JSON stream,
//     a zerolog logger or the audit_logs collection of the document store.
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The engine does that.
//   - Record passwords, token values or secrets.
//   - Import goTodo or any sibling internal package.
package audit
