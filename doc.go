// Package statelessauth provides stateless email/password authentication:
// HMAC-signed access and refresh tokens, a path-scoped refresh cookie and
// bearer-token principal binding.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// statelessauth is the public surface. It exposes [Engine], [Builder],
// [Config], [SecurityContext] and the store contracts ([CredentialStore],
// [PrincipalWriter]). Flow orchestration and audit dispatch live under
// internal/ and are never exported. Token, password and cookie primitives
// live in the jwt, password and cookie packages.
//
// # What this package must NOT do
//
//   - Keep server-side session state. Logout clears the cookie only and an
//     issued access token stays valid until it expires.
//   - Log or expose the signing key, passwords or tokens.
//   - Import any sub-package that re-imports statelessauth (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path: one signature check and one credential
// store lookup. Register and Login add one password hash operation each.
package statelessauth
