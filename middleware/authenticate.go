package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/statelessauth"
)

// Authenticator resolves a bearer token to a security context.
// *statelessauth.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*statelessauth.SecurityContext, error)
}

// Authenticate returns middleware that reads "Authorization: Bearer <token>",
// asks auth to resolve it and binds the resulting SecurityContext to the
// request context. Missing, invalid or expired tokens leave the request
// unauthenticated; the next handler always runs.
func Authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if ip := clientIP(r); ip != "" {
				ctx = statelessauth.WithClientIP(ctx, ip)
			}

			sc, err := auth.Authenticate(ctx, token)
			if err != nil || sc == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(statelessauth.WithSecurityContext(ctx, sc)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware rewrites when the service runs behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
