package statelessauth

import (
	"context"
	"time"
)

type clientIPContextKey struct{}
type securityContextKey struct{}

// SecurityContext is the authenticated identity bound to one request.
type SecurityContext struct {
	Principal   PrincipalView
	Authorities []string
	TokenID     string
	ExpiresAt   time.Time
}

// HasRole reports whether the bound principal has one of roles.
func (s *SecurityContext) HasRole(roles ...Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Principal.Role == r {
			return true
		}
	}
	return false
}

func newSecurityContext(p Principal, tokenID string, expiresAt time.Time) *SecurityContext {
	return &SecurityContext{
		Principal:   p.View(),
		Authorities: []string{p.Role.Authority()},
		TokenID:     tokenID,
		ExpiresAt:   expiresAt,
	}
}

// WithSecurityContext returns a copy of ctx carrying sc.
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFromContext returns the security context bound by the
// authentication middleware, if any.
func SecurityContextFromContext(ctx context.Context) (*SecurityContext, bool) {
	if ctx == nil {
		return nil, false
	}
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok && sc != nil
}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the IP attached by [WithClientIP], or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
