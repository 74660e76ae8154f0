package statelessauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/statelessauth/cookie"
	internalaudit "github.com/MrEthical07/statelessauth/internal/audit"
	"github.com/MrEthical07/statelessauth/internal/flows"
	"github.com/MrEthical07/statelessauth/jwt"
	"github.com/MrEthical07/statelessauth/password"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine runs the register, login, logout, refresh and bearer
// authentication flows. It is immutable after Build and safe for concurrent
// use.
type Engine struct {
	config      Config
	store       PrincipalStore
	hashUpdater PasswordHashUpdater
	jwt         *jwt.Manager
	hasher      *password.Hasher
	dummyHash   string
	cookies     *cookie.Store
	validate    *validator.Validate
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	audit       *internalaudit.Dispatcher
}

// Close stops the audit dispatcher after delivering queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL returns the configured access-token lifetime.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.jwt != nil && e.hasher != nil && e.cookies != nil
}

/*
====================================
AUTHENTICATE
====================================
*/

// Authenticate verifies a bearer access token and resolves it to an active
// principal. Token and principal failures are reported as [ErrUnauthorized];
// the precise cause is logged and audited. A store failure is returned
// wrapped and does not match ErrUnauthorized.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*SecurityContext, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, "statelessauth.Authenticate")
	defer span.End()

	res := flows.RunAuthenticate(ctx, accessToken, flows.AuthenticateDeps{
		VerifyAccess:       e.verifyWith(e.jwt.VerifyAccess),
		ClassifyTokenError: classifyTokenError,
		Lookup:             e.principalLookup(),
	})

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}

	if res.Failure != flows.FailureNone {
		e.metricInc(MetricAuthenticateRejected)
		e.recordFailure(ctx, "authenticate", auditEventAuthenticateRejected, res.Failure, res.Err, res.Token, res.Principal)
		err := e.tokenFlowError(res.Failure, res.Err)
		recordSpanError(span, err)
		return nil, err
	}

	e.metricInc(MetricAuthenticateSuccess)
	p := principalFromRecord(res.Principal)
	span.SetAttributes(
		attribute.Int64("principal.id", p.ID),
		attribute.String("principal.role", p.Role.String()),
	)

	return newSecurityContext(p, res.Token.TokenID, res.Token.ExpiresAt), nil
}

/*
====================================
REFRESH
====================================
*/

// RefreshAccessToken reads the refresh cookie from r and exchanges it for a
// new access token. A missing cookie and every verification or principal
// failure return [ErrUnauthorized]; a store failure is returned wrapped.
// The refresh token is not rotated.
func (e *Engine) RefreshAccessToken(ctx context.Context, r *http.Request) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	token, _ := e.cookies.Extract(r)
	return e.Refresh(ctx, token)
}

// Refresh exchanges a refresh token for a new access token. It is the
// cookie-free form of [Engine.RefreshAccessToken].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.startSpan(ctx, "statelessauth.Refresh")
	defer span.End()

	var expiresAt time.Time
	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		VerifyRefresh:      e.verifyWith(e.jwt.VerifyRefresh),
		ClassifyTokenError: classifyTokenError,
		Lookup:             e.principalLookup(),
		IssueAccessToken: func(rec flows.PrincipalRecord) (string, error) {
			token, err := e.jwt.IssueAccess(subjectFromRecord(rec))
			if err == nil {
				expiresAt = e.jwt.Now().Add(e.jwt.AccessTTL())
			}
			return token, err
		},
	})

	if res.Failure != flows.FailureNone {
		e.metricInc(MetricRefreshFailure)
		e.recordFailure(ctx, "refresh", auditEventRefreshFailure, res.Failure, res.Err, res.Token, res.Principal)
		err := e.tokenFlowError(res.Failure, res.Err)
		recordSpanError(span, err)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Principal.ID, res.Principal.Email, res.Token.TokenID, nil, nil)
	span.SetAttributes(attribute.Int64("principal.id", res.Principal.ID))

	return &RefreshResult{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: expiresAt,
	}, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout clears the refresh cookie on w. No store is consulted and access
// tokens already issued stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter) {
	if e == nil || e.cookies == nil {
		return
	}

	if w != nil {
		e.cookies.Clear(w)
	}
	e.metricInc(MetricLogout)

	var (
		principalID int64
		email       string
	)
	if sc, ok := SecurityContextFromContext(ctx); ok {
		principalID = sc.Principal.ID
		email = sc.Principal.Email
	}
	e.emitAudit(ctx, auditEventLogout, true, principalID, email, "", nil, nil)
}

/*
====================================
SHARED HELPERS
====================================
*/

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) verifyWith(verify func(string) (*jwt.Claims, error)) func(string) (flows.VerifiedToken, error) {
	return func(token string) (flows.VerifiedToken, error) {
		claims, err := verify(token)
		if err != nil {
			return flows.VerifiedToken{}, err
		}
		tok := flows.VerifiedToken{
			Subject:     claims.Subject,
			PrincipalID: claims.PrincipalID,
			TokenID:     claims.ID,
		}
		if claims.ExpiresAt != nil {
			tok.ExpiresAt = claims.ExpiresAt.Time
		}
		return tok, nil
	}
}

func (e *Engine) principalLookup() flows.PrincipalLookup {
	return flows.PrincipalLookup{
		FindByEmail: func(ctx context.Context, email string) (flows.PrincipalRecord, error) {
			p, err := e.store.FindByEmail(ctx, email)
			if err != nil {
				return flows.PrincipalRecord{}, err
			}
			return recordFromPrincipal(p), nil
		},
		IsNotFound: func(err error) bool { return errors.Is(err, ErrPrincipalNotFound) },
	}
}

func (e *Engine) issueTokens(rec flows.PrincipalRecord) (string, string, error) {
	sub := subjectFromRecord(rec)
	access, err := e.jwt.IssueAccess(sub)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.jwt.IssueRefresh(sub)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (e *Engine) authResult(rec flows.PrincipalRecord, access, refresh string) *AuthResult {
	now := e.jwt.Now()
	return &AuthResult{
		Principal:        principalFromRecord(rec).View(),
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(e.jwt.AccessTTL()),
		RefreshExpiresAt: now.Add(e.jwt.RefreshTTL()),
	}
}

func classifyTokenError(err error) flows.FailureKind {
	switch {
	case errors.Is(err, jwt.ErrInvalidSignature):
		return flows.FailureTokenSignature
	case errors.Is(err, jwt.ErrExpiredToken):
		return flows.FailureTokenExpired
	default:
		return flows.FailureTokenMalformed
	}
}

// tokenFlowError collapses every token or principal failure into
// ErrUnauthorized. Store and signing failures are infrastructure errors and
// wrap their cause instead, so callers answer 5xx rather than asking the
// client to log in again.
func (e *Engine) tokenFlowError(kind flows.FailureKind, cause error) error {
	if kind == flows.FailureLookup || kind == flows.FailureIssue {
		return fmt.Errorf("%s: %w", kind.Reason(), cause)
	}
	return ErrUnauthorized
}

// recordFailure bumps token metrics, logs at a level matching the cause and
// emits the audit event for a rejected refresh or bearer token.
func (e *Engine) recordFailure(
	ctx context.Context,
	op string,
	event string,
	kind flows.FailureKind,
	cause error,
	tok flows.VerifiedToken,
	rec flows.PrincipalRecord,
) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("reason", kind.Reason()),
	}
	if rec.ID != 0 {
		fields = append(fields, zap.Int64("principal_id", rec.ID))
	}

	switch kind {
	case flows.FailureTokenSignature:
		e.metricInc(MetricTokenTampered)
		e.logger.Warn("token signature rejected", append(fields, zap.String("client_ip", ClientIPFromContext(ctx)))...)
	case flows.FailureTokenExpired:
		e.metricInc(MetricTokenExpired)
		e.logger.Debug("token expired", fields...)
	case flows.FailureTokenMalformed:
		e.metricInc(MetricTokenMalformed)
		e.logger.Info("token malformed", append(fields, zap.Error(cause))...)
	case flows.FailureLookup, flows.FailureIssue:
		e.logger.Error("token flow failed", append(fields, zap.Error(cause))...)
	case flows.FailureMissingToken:
		// Anonymous request.
	default:
		e.logger.Info("token principal rejected", fields...)
	}

	if kind == flows.FailureMissingToken && op == "authenticate" {
		return
	}
	e.emitAudit(ctx, event, false, rec.ID, rec.Email, tok.TokenID, tokenFailureError(kind), func() map[string]string {
		return map[string]string{"reason": kind.Reason()}
	})
}

func tokenFailureError(kind flows.FailureKind) error {
	switch kind {
	case flows.FailureTokenSignature:
		return ErrInvalidSignature
	case flows.FailureTokenExpired:
		return ErrExpiredToken
	case flows.FailureTokenMalformed:
		return ErrMalformedToken
	case flows.FailureLookup, flows.FailureIssue:
		return errors.New(kind.Reason())
	default:
		return ErrUnauthorized
	}
}

func recordFromPrincipal(p Principal) flows.PrincipalRecord {
	return flows.PrincipalRecord{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Role:         p.Role.String(),
		Active:       p.Active,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
	}
}

func principalFromRecord(rec flows.PrincipalRecord) Principal {
	// Stores only hold valid roles; an unparsable one becomes the zero Role,
	// which satisfies no role check.
	role, _ := ParseRole(rec.Role)
	return Principal{
		ID:           rec.ID,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Role:         role,
		Active:       rec.Active,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
	}
}

func subjectFromRecord(rec flows.PrincipalRecord) jwt.Subject {
	return jwt.Subject{
		Email:       rec.Email,
		PrincipalID: rec.ID,
		Role:        rec.Role,
	}
}
