package statelessauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/statelessauth/internal/flows"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Login authenticates email and password, issues a token pair and sets the
// refresh cookie on w (when w is non-nil).
//
// Unknown emails, wrong passwords and inactive principals all return
// [ErrAuthentication].
func (e *Engine) Login(ctx context.Context, w http.ResponseWriter, req LoginRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	ctx, span := e.startSpan(ctx, "statelessauth.Login")
	defer span.End()

	res, err := flows.RunLogin(ctx, normalizeEmail(req.Email), req.Password, e.loginFlowDeps())

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricLoginLatency, time.Since(start))
	}

	if err != nil {
		recordSpanError(span, err)
		if !isClientError(err) {
			e.logger.Error("login failed", zap.Error(err))
		}
		return nil, err
	}

	if w != nil {
		e.cookies.Set(w, res.RefreshToken)
	}
	span.SetAttributes(attribute.Int64("principal.id", res.Principal.ID))

	return e.authResult(res.Principal, res.AccessToken, res.RefreshToken), nil
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,

		FindByEmail:    e.principalLookup().FindByEmail,
		IsNotFound:     func(err error) bool { return errors.Is(err, ErrPrincipalNotFound) },
		VerifyPassword: e.hasher.Verify,
		DummyVerify: func(raw string) {
			_ = e.hasher.Verify(raw, e.dummyHash)
		},
		NeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword: e.hasher.Hash,
		IssueTokens:  e.issueTokens,

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.flowAudit,
		Warn: func(msg string, err error) {
			e.logger.Warn(msg, zap.Error(err))
		},

		Metrics: flows.LoginMetrics{
			Success:         int(MetricLoginSuccess),
			Failure:         int(MetricLoginFailure),
			PasswordUpgrade: int(MetricPasswordUpgraded),
		},
		Events: flows.LoginEvents{
			Success: auditEventLoginSuccess,
			Failure: auditEventLoginFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady: ErrEngineNotReady,
			Authentication: ErrAuthentication,
		},
	}
	if e.hashUpdater != nil {
		deps.UpdatePasswordHash = e.hashUpdater.UpdatePasswordHash
	}
	return deps
}
