// Package flows contains pure-function orchestrators for the Engine's
// register, login, refresh and authenticate operations.
//
// Each Run function takes a typed dependency struct and has no side effects
// beyond those dependencies. The Engine builds the structs, owns the
// resources behind them and maps results back to its sentinel errors.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import statelessauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency functions.
package flows
