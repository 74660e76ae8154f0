package httpapi

import (
	"context"
	"net/http"

	"github.com/MrEthical07/statelessauth"
	"github.com/MrEthical07/statelessauth/internal/rate"
	authmw "github.com/MrEthical07/statelessauth/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Service is the Engine surface used by the handlers.
// *statelessauth.Engine implements it.
type Service interface {
	Register(ctx context.Context, w http.ResponseWriter, req statelessauth.RegisterRequest) (*statelessauth.AuthResult, error)
	Login(ctx context.Context, w http.ResponseWriter, req statelessauth.LoginRequest) (*statelessauth.AuthResult, error)
	Logout(ctx context.Context, w http.ResponseWriter)
	RefreshAccessToken(ctx context.Context, r *http.Request) (*statelessauth.RefreshResult, error)
	Authenticate(ctx context.Context, accessToken string) (*statelessauth.SecurityContext, error)
}

// RouterOptions controls NewRouter. Service is required; every other field
// may be left zero.
type RouterOptions struct {
	Service Service
	Logger  *zap.Logger

	// Limiter, when set, throttles register, login and refresh per client IP.
	Limiter *rate.Limiter

	CORSOptions    *cors.Options
	Middleware     []func(http.Handler) http.Handler
	MetricsHandler http.Handler
	HealthHandler  http.HandlerFunc
	ExtraRoutes    func(chi.Router)

	// MaxBodyBytes caps JSON request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64
}

const defaultMaxBodyBytes = 64 << 10

// DefaultCORSOptions returns a development CORS policy. Credentials are
// allowed so browsers send the refresh cookie.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with the shared middleware stack and the
// /auth routes mounted.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	h := &handlers{
		svc:     opts.Service,
		logger:  logger.Named("httpapi"),
		maxBody: maxBody,
	}
	throttle := func(scope string) func(http.Handler) http.Handler {
		return RateLimit(opts.Limiter, scope, logger)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authmw.Authenticate(opts.Service))

		r.With(throttle("register")).Post("/register", h.register)
		r.With(throttle("login")).Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.With(throttle("refresh")).Get("/refresh", h.refresh)
		r.With(authmw.RequireAuthenticated()).Get("/me", h.me)
	})

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}
