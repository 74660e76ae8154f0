package flows

import (
	"context"
	"errors"
	"fmt"
)

// RegisterInput is the flow-local registration request. Email is already
// normalized.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult carries the created principal and its token pair.
type RegisterResult struct {
	Principal    PrincipalRecord
	AccessToken  string
	RefreshToken string
}

// RegisterMetrics carries metric IDs needed by the register flow.
type RegisterMetrics struct {
	Success   int
	Duplicate int
	Invalid   int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	Success string
	Failure string
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady error
	InvalidInput   error
	AlreadyExists  error
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	ValidateInput   func(RegisterInput) error
	ExistsByEmail   func(context.Context, string) (bool, error)
	HashPassword    func(string) (string, error)
	CreatePrincipal func(context.Context, RegisterInput, string) (PrincipalRecord, error)
	IssueTokens     func(PrincipalRecord) (string, string, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister checks the email is free, hashes the password, creates the
// principal and issues its first token pair. No token is issued unless the
// principal was created.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*RegisterResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.ExistsByEmail == nil ||
		deps.HashPassword == nil ||
		deps.CreatePrincipal == nil ||
		deps.IssueTokens == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(reason string, err error) {
		deps.EmitAudit(ctx, deps.Events.Failure, false, 0, in.Email, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
	}

	if deps.ValidateInput != nil {
		if err := deps.ValidateInput(in); err != nil {
			deps.MetricInc(deps.Metrics.Invalid)
			fail("invalid_input", err)
			return nil, err
		}
	}

	exists, err := deps.ExistsByEmail(ctx, in.Email)
	if err != nil {
		fail("lookup_failed", err)
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		deps.MetricInc(deps.Metrics.Duplicate)
		fail("email_taken", deps.Errors.AlreadyExists)
		return nil, deps.Errors.AlreadyExists
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		fail("hash_failed", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := deps.CreatePrincipal(ctx, in, hash)
	if err != nil {
		// The store may still report a duplicate when two registrations race
		// past the existence check.
		if deps.Errors.AlreadyExists != nil && errors.Is(err, deps.Errors.AlreadyExists) {
			deps.MetricInc(deps.Metrics.Duplicate)
			fail("email_taken", deps.Errors.AlreadyExists)
			return nil, deps.Errors.AlreadyExists
		}
		fail("create_failed", err)
		return nil, fmt.Errorf("create principal: %w", err)
	}

	access, refresh, err := deps.IssueTokens(p)
	if err != nil {
		fail("issue_failed", err)
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, p.ID, p.Email, nil, func() map[string]string {
		return map[string]string{"role": p.Role}
	})

	return &RegisterResult{
		Principal:    p,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
