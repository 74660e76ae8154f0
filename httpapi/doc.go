// Package httpapi mounts the authentication endpoints on a chi router.
//
//	POST /auth/register  201 {user, accessToken, refreshToken} + refresh cookie
//	POST /auth/login     200 same shape, 401 on bad credentials
//	POST /auth/logout    204, refresh cookie cleared
//	GET  /auth/refresh   200 {accessToken}, 401 without a usable cookie
//	GET  /auth/me        200 principal view, 401 without a bearer token
//
// Bodies use the envelope from package response. Every request passes
// through middleware.Authenticate, so handlers further down the chain can
// read the SecurityContext when a valid bearer token was sent.
package httpapi
