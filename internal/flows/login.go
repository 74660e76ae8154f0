package flows

import (
	"context"
	"fmt"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Principal    PrincipalRecord
	AccessToken  string
	RefreshToken string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	Success         int
	Failure         int
	PasswordUpgrade int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success string
	Failure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady error
	Authentication error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool

	FindByEmail    func(context.Context, string) (PrincipalRecord, error)
	IsNotFound     func(error) bool
	VerifyPassword func(raw, hash string) bool
	// DummyVerify burns one password verification for unknown emails so
	// response time does not reveal whether the email exists.
	DummyVerify        func(raw string)
	NeedsUpgrade       func(string) bool
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, int64, string) error
	IssueTokens        func(PrincipalRecord) (string, string, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, error)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin authenticates email and password and issues a token pair.
//
// An unknown email, an inactive principal and a wrong password all return
// Errors.Authentication. Store failures other than not-found are returned
// wrapped so callers can tell them apart from bad credentials.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
	if deps.FindByEmail == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueTokens == nil {
		return nil, deps.Errors.EngineNotReady
	}

	reject := func(principalID int64, reason string) error {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, principalID, email, deps.Errors.Authentication, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return deps.Errors.Authentication
	}

	if email == "" || password == "" {
		return nil, reject(0, "empty_credentials")
	}

	p, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			if deps.DummyVerify != nil {
				deps.DummyVerify(password)
			}
			return nil, reject(0, "unknown_email")
		}
		deps.EmitAudit(ctx, deps.Events.Failure, false, 0, email, err, func() map[string]string {
			return map[string]string{"reason": "lookup_failed"}
		})
		return nil, fmt.Errorf("find principal: %w", err)
	}

	if !deps.VerifyPassword(password, p.PasswordHash) {
		return nil, reject(p.ID, "wrong_password")
	}
	if !p.Active {
		return nil, reject(p.ID, "inactive")
	}

	if deps.PasswordUpgradeOnLogin &&
		deps.UpdatePasswordHash != nil &&
		deps.NeedsUpgrade != nil &&
		deps.HashPassword != nil &&
		deps.NeedsUpgrade(p.PasswordHash) {
		// Login proceeds with the old hash if the rewrite fails.
		if upgraded, err := deps.HashPassword(password); err != nil {
			deps.Warn("password rehash failed", err)
		} else if err := deps.UpdatePasswordHash(ctx, p.ID, upgraded); err != nil {
			deps.Warn("password hash update failed", err)
		} else {
			p.PasswordHash = upgraded
			deps.MetricInc(deps.Metrics.PasswordUpgrade)
		}
	}

	access, refresh, err := deps.IssueTokens(p)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Failure, false, p.ID, email, err, func() map[string]string {
			return map[string]string{"reason": "issue_failed"}
		})
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, p.ID, email, nil, nil)

	return &LoginResult{
		Principal:    p,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
