// Package rate provides a Redis-backed fixed-window attempt limiter used by
// the HTTP layer in front of login and refresh.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// <prefix><scope>:<key>, for example "sa:rl:login:203.0.113.7".
//
// # What this package must NOT do
//
//   - Run inside the Engine. Brute-force mitigation is layered in front of it.
//   - Be imported outside the statelessauth module.
package rate
