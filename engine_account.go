package statelessauth

import (
	"context"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/MrEthical07/statelessauth/internal/flows"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxNameLength = 100

// Register creates an active principal with the configured default role,
// issues its first token pair and sets the refresh cookie on w (when w is
// non-nil).
//
// An email that is already registered returns [ErrResourceAlreadyExists]
// before any password is hashed or token issued. Invalid input returns an
// error matching [ErrInvalidInput].
func (e *Engine) Register(ctx context.Context, w http.ResponseWriter, req RegisterRequest) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	ctx, span := e.startSpan(ctx, "statelessauth.Register")
	defer span.End()

	in := flows.RegisterInput{
		Email:     normalizeEmail(req.Email),
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	res, err := flows.RunRegister(ctx, in, e.registerFlowDeps())
	if err != nil {
		recordSpanError(span, err)
		if !isClientError(err) {
			e.logger.Error("register failed", zap.Error(err))
		}
		return nil, err
	}

	if w != nil {
		e.cookies.Set(w, res.RefreshToken)
	}

	e.logger.Info("principal registered",
		zap.Int64("principal_id", res.Principal.ID),
		zap.String("role", res.Principal.Role),
	)
	span.SetAttributes(attribute.Int64("principal.id", res.Principal.ID))

	return e.authResult(res.Principal, res.AccessToken, res.RefreshToken), nil
}

func (e *Engine) registerFlowDeps() flows.RegisterDeps {
	return flows.RegisterDeps{
		ValidateInput: e.validateRegister,
		ExistsByEmail: e.store.ExistsByEmail,
		HashPassword:  e.hasher.Hash,
		CreatePrincipal: func(ctx context.Context, in flows.RegisterInput, hash string) (flows.PrincipalRecord, error) {
			p, err := e.store.CreatePrincipal(ctx, NewPrincipal{
				Email:        in.Email,
				PasswordHash: hash,
				Role:         e.config.Account.DefaultRole,
				Active:       true,
				FirstName:    in.FirstName,
				LastName:     in.LastName,
			})
			if err != nil {
				return flows.PrincipalRecord{}, err
			}
			return recordFromPrincipal(p), nil
		},
		IssueTokens: e.issueTokens,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit: e.flowAudit,
		Metrics: flows.RegisterMetrics{
			Success:   int(MetricRegisterSuccess),
			Duplicate: int(MetricRegisterDuplicate),
			Invalid:   int(MetricRegisterInvalid),
		},
		Events: flows.RegisterEvents{
			Success: auditEventRegisterSuccess,
			Failure: auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			EngineNotReady: ErrEngineNotReady,
			InvalidInput:   ErrInvalidInput,
			AlreadyExists:  ErrResourceAlreadyExists,
		},
	}
}

func (e *Engine) validateRegister(in flows.RegisterInput) error {
	if err := e.validate.Var(in.Email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: email is missing or malformed", ErrInvalidInput)
	}

	n := utf8.RuneCountInString(in.Password)
	if n < e.config.Password.MinLength || n > e.config.Password.MaxLength {
		return fmt.Errorf("%w: password must be %d to %d characters",
			ErrInvalidInput, e.config.Password.MinLength, e.config.Password.MaxLength)
	}

	if utf8.RuneCountInString(in.FirstName) > maxNameLength || utf8.RuneCountInString(in.LastName) > maxNameLength {
		return fmt.Errorf("%w: names are limited to %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}
