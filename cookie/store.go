package cookie

import (
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultName is the cookie that carries the refresh token.
	DefaultName = "refreshToken"
	// DefaultPath scopes the cookie to the refresh endpoint only.
	DefaultPath = "/auth/refresh"
)

// Config describes the refresh cookie attributes.
type Config struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Store writes, clears and reads the refresh-token cookie. It is immutable
// and safe for concurrent use.
type Store struct {
	cfg Config
}

// NewStore fills defaults for Name, Path and SameSite and returns a Store.
// MaxAge must be positive.
func NewStore(cfg Config) (*Store, error) {
	if cfg.MaxAge <= 0 {
		return nil, errors.New("cookie MaxAge must be > 0")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteStrictMode
	}
	if cfg.SameSite == http.SameSiteNoneMode && !cfg.Secure {
		return nil, errors.New("SameSite=None requires a secure cookie")
	}
	return &Store{cfg: cfg}, nil
}

// Name returns the cookie name.
func (s *Store) Name() string { return s.cfg.Name }

// Path returns the cookie path.
func (s *Store) Path() string { return s.cfg.Path }

// Set attaches token as the refresh cookie with Max-Age equal to the refresh lifetime.
func (s *Store) Set(w http.ResponseWriter, token string) {
	c := s.base()
	c.Value = token
	c.MaxAge = int(s.cfg.MaxAge / time.Second)
	http.SetCookie(w, c)
}

// Clear overwrites the refresh cookie with an empty value and Max-Age=0.
func (s *Store) Clear(w http.ResponseWriter) {
	c := s.base()
	c.Value = ""
	// net/http renders a negative MaxAge as "Max-Age=0".
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

// Extract returns the refresh token from r. A missing or empty cookie is
// reported as absent, not as an error.
func (s *Store) Extract(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(s.cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *Store) base() *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.Name,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: s.cfg.SameSite,
	}
}
