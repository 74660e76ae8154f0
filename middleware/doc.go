// Package middleware exposes net/http middleware built on
// statelessauth.Engine bearer authentication.
//
// # Middleware
//
//   - [Authenticate] binds a SecurityContext when a valid bearer token is
//     present and otherwise passes the request through unchanged. It never
//     rejects a request.
//   - [RequireAuthenticated] rejects requests without a SecurityContext (401).
//   - [RequireRole] rejects requests whose principal has none of the given
//     roles (403).
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access the credential store.
//   - Make authorization decisions beyond authenticated/role checks.
package middleware
