// Package internal holds packages that are private to statelessauth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function flow orchestrators for every Engine operation
//   - rate: Redis-backed fixed-window limiter used by the HTTP layer
//
// # What this package must NOT do
//
//   - Export types that appear in the public statelessauth API.
//   - Be imported by any package outside the statelessauth module.
package internal
