package statelessauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/statelessauth/cookie"
	"github.com/MrEthical07/statelessauth/jwt"
	"github.com/MrEthical07/statelessauth/password"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/MrEthical07/statelessauth"

// Builder assembles an [Engine]. A Builder is single-use: after a successful
// Build further calls fail.
type Builder struct {
	config Config
	store  PrincipalStore

	logger         *zap.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithPrincipalStore sets the credential store. Required.
func (b *Builder) WithPrincipalStore(store PrincipalStore) *Builder {
	b.store = store
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. It only receives events when
// Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to the
// global provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides the time source for token issuance and verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, decodes the signing secret once and
// returns an immutable Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("principal store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	// -------- SIGNING KEY --------
	key, err := jwt.DecodeSecret(cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Key:           key,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Now:           b.now,
	})
	// NewManager copied the key.
	clear(key)
	if err != nil {
		return nil, err
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.NewHasher(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("statelessauth-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	// -------- REFRESH COOKIE --------
	cookies, err := cookie.NewStore(cookie.Config{
		Name:     cfg.Cookie.Name,
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		MaxAge:   cfg.JWT.RefreshTTL,
		Secure:   cfg.Security.ProductionMode,
		SameSite: cfg.Cookie.SameSite,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		jwt:       jm,
		hasher:    hasher,
		dummyHash: dummy,
		cookies:   cookies,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.Named("statelessauth"),
		tracer:    tp.Tracer(tracerName),
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
	}
	if up, ok := b.store.(PasswordHashUpdater); ok {
		engine.hashUpdater = up
	}

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		engine.logger.Warn("config lint",
			zap.String("code", w.Code),
			zap.String("severity", w.Severity.String()),
			zap.String("message", w.Message),
		)
	}

	b.built = true

	return engine, nil
}
