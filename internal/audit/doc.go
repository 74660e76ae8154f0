// Package audit implements async event dispatching for authentication outcomes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, principal, IP and metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. Which events to emit is decided by
// the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import statelessauth or any sibling internal package.
//   - Record passwords or tokens.
package audit
