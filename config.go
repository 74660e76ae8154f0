package statelessauth

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/statelessauth/jwt"
	"github.com/MrEthical07/statelessauth/password"
)

// Config is the complete Engine configuration. Build copies it; later changes
// to the caller's value have no effect.
type Config struct {
	JWT      JWTConfig
	Cookie   CookieConfig
	Password PasswordConfig
	Account  AccountConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	// Secret is the base64-encoded HMAC key. It is decoded once during Build.
	Secret        string
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the refresh-token cookie. Secure follows
// Security.ProductionMode and MaxAge follows JWT.RefreshTTL.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	SameSite http.SameSite
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the accepted password length range.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
	MinLength      int // 1 by default: only empty passwords are rejected
	MaxLength      int
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration defaults.
type AccountConfig struct {
	DefaultRole Role
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment-wide switches.
type SecurityConfig struct {
	// ProductionMode marks the refresh cookie Secure.
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns development defaults. JWT.Secret is empty and must be set.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name:     "refreshToken",
			Path:     "/auth/refresh",
			SameSite: http.SameSiteStrictMode,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
			MinLength:      1,
			MaxLength:      128,
		},
		Account: AccountConfig{
			DefaultRole: RoleCustomer,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

// ProductionConfig returns DefaultConfig with the given secret, ProductionMode,
// audit enabled and an 8 character password minimum.
func ProductionConfig(secret string) Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = secret
	cfg.Security.ProductionMode = true
	cfg.Audit.Enabled = true
	cfg.Password.MinLength = 8
	return cfg
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "", "hs256", "hs384", "hs512":
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if _, err := jwt.DecodeSecret(c.JWT.Secret); err != nil {
		return fmt.Errorf("JWT Secret: %w", err)
	}

	// Cookie
	if c.Cookie.Path != "" && !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with '/'")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Security.ProductionMode {
		return errors.New("Cookie SameSite=None requires ProductionMode (Secure cookies)")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Account
	if !c.Account.DefaultRole.Valid() {
		return errors.New("Account DefaultRole is not a known role")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintSeverity ranks a lint warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	default:
		return "HIGH"
	}
}

// LintWarning is a legal but risky setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	picked := r.BySeverity(min)
	if len(picked) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(picked))
	for _, w := range picked {
		msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that pass Validate but weaken the deployment.
func (c *Config) Lint() LintResult {
	var out LintResult
	add := func(code string, sev LintSeverity, msg string) {
		out = append(out, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Security.ProductionMode {
		add("production_mode_disabled", LintWarn, "refresh cookie is sent without the Secure attribute")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens cannot be revoked; keep AccessTTL at 15m or less")
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens are not rotated; RefreshTTL above 30d widens the theft window")
	}
	if key, err := jwt.DecodeSecret(c.JWT.Secret); err == nil {
		want := 32
		switch strings.ToLower(c.JWT.SigningMethod) {
		case "hs384":
			want = 48
		case "hs512":
			want = 64
		}
		if len(key) < want {
			add("signing_key_short", LintHigh, fmt.Sprintf("%s key should be at least %d bytes", c.JWT.SigningMethod, want))
		}
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "security events are not recorded")
	}
	if c.Password.MinLength < 8 {
		add("password_min_length_short", LintInfo, fmt.Sprintf("passwords of %d character(s) are accepted", c.Password.MinLength))
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2id memory below 64 MiB")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode || c.Cookie.SameSite == http.SameSiteDefaultMode {
		add("cookie_samesite_weak", LintWarn, "refresh cookie is sent on cross-site requests")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}
