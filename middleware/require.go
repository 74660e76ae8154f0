package middleware

import (
	"net/http"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/httpapi/response"
)

// RequireAuthenticated rejects requests that carry no SecurityContext with
// 401. Mount it after [Authenticate].
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := statelessauth.SecurityContextFromContext(r.Context()); !ok {
				response.Unauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects unauthenticated requests with 401 and principals
// holding none of roles with 403.
func RequireRole(roles ...statelessauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, ok := statelessauth.SecurityContextFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "authentication required")
				return
			}
			if !sc.HasRole(roles...) {
				response.Forbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
