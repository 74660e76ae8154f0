package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the HMAC-SHA variant used to sign tokens.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

// MinKeyBytes is the shortest decoded secret accepted by [DecodeSecret] and [NewManager].
const MinKeyBytes = 32

// TokenType discriminates access tokens from refresh tokens inside the claims.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrMalformedToken reports a token that cannot be decoded or carries unusable claims.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken reports a correctly signed token whose exp is not after now.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidSignature reports a token whose signature does not match the process key
	// or whose header names a different algorithm.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrInvalidKey reports a missing, undecodable or too-short signing secret.
	ErrInvalidKey = errors.New("invalid signing key")
)

// Config holds the token manager settings. The key is copied by [NewManager]
// and never exposed again.
type Config struct {
	SigningMethod SigningMethod
	Key           []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	// Now overrides the clock used for iat/exp and for verification.
	Now func() time.Time
}

// Subject is the identity a token is issued for.
type Subject struct {
	Email       string
	PrincipalID int64
	Role        string
}

// Claims is the payload carried by both token kinds. Refresh tokens leave
// PrincipalID and Role empty.
type Claims struct {
	PrincipalID int64     `json:"id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Type        TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HMAC-signed tokens with a single immutable key.
// It is safe for concurrent use.
type Manager struct {
	method     jwt.SigningMethod
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
	parser     *jwt.Parser
}

// DecodeSecret decodes a base64 signing secret. Standard and URL alphabets are
// accepted, padded or not. The decoded key must be at least [MinKeyBytes] long.
func DecodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidKey)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		key, err := enc.DecodeString(secret)
		if err != nil {
			continue
		}
		if len(key) < MinKeyBytes {
			return nil, fmt.Errorf("%w: decoded secret is %d bytes, need at least %d", ErrInvalidKey, len(key), MinKeyBytes)
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: secret is not valid base64", ErrInvalidKey)
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access TTL must be shorter than refresh TTL")
	}
	if len(cfg.Key) < MinKeyBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrInvalidKey, MinKeyBytes)
	}

	method, err := resolveMethod(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
		// Non-strict base64 ignores the pad bits of the last signature
		// character, so distinct strings would decode to the same MAC.
		jwt.WithStrictDecoding(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Manager{
		method:     method,
		key:        key,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        now,
		parser:     jwt.NewParser(options...),
	}, nil
}

// AccessTTL returns the lifetime of issued access tokens.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// KeyLen returns the signing key length in bytes. The key itself is never exposed.
func (m *Manager) KeyLen() int { return len(m.key) }

// Now returns the manager's current time.
func (m *Manager) Now() time.Time { return m.now() }

// RefreshTTL returns the lifetime of issued refresh tokens.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs a short-lived token carrying the subject email, principal id and role.
func (m *Manager) IssueAccess(sub Subject) (string, error) {
	if sub.Email == "" {
		return "", errors.New("access token requires a subject")
	}
	return m.sign(Claims{
		PrincipalID: sub.PrincipalID,
		Role:        sub.Role,
		Type:        TypeAccess,
	}, sub.Email, m.accessTTL)
}

// IssueRefresh signs a long-lived token carrying only the subject email.
func (m *Manager) IssueRefresh(sub Subject) (string, error) {
	if sub.Email == "" {
		return "", errors.New("refresh token requires a subject")
	}
	return m.sign(Claims{Type: TypeRefresh}, sub.Email, m.refreshTTL)
}

func (m *Manager) sign(claims Claims, subject string, ttl time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(m.key)
}

// Verify checks signature, algorithm, expiry and subject presence, in that
// order. The returned error matches exactly one of [ErrInvalidSignature],
// [ErrExpiredToken] or [ErrMalformedToken] under errors.Is.
func (m *Manager) Verify(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	parsed, err := m.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}

	return claims, nil
}

// VerifyAccess verifies token and requires it to be an access token.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	return m.verifyType(token, TypeAccess)
}

// VerifyRefresh verifies token and requires it to be a refresh token.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	return m.verifyType(token, TypeRefresh)
}

func (m *Manager) verifyType(token string, want TokenType) (*Claims, error) {
	claims, err := m.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrMalformedToken, want, claims.Type)
	}
	return claims, nil
}

// ExtractSubject fully verifies token and returns its subject email.
func (m *Manager) ExtractSubject(token string) (string, error) {
	claims, err := m.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func resolveMethod(m SigningMethod) (jwt.SigningMethod, error) {
	switch SigningMethod(strings.ToLower(string(m))) {
	case MethodHS256, "":
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing method %q", m)
	}
}
