// Package cookie manages the HTTP-only refresh-token cookie.
//
// The cookie is scoped to the refresh endpoint path so browsers only send it
// there. Secure is set by the caller, normally from the production flag.
package cookie
