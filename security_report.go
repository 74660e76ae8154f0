package statelessauth

import (
	"net/http"
	"time"
)

// SecurityReport summarizes the security posture of a built Engine. It never
// contains key material.
type SecurityReport struct {
	ProductionMode         bool
	SigningAlgorithm       string
	Issuer                 string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	SigningKeyBytes        int
	Argon2                 PasswordConfigReport
	PasswordUpgradeOnLogin bool
	HashUpgradeSupported   bool
	CookieName             string
	CookiePath             string
	CookieSecure           bool
	CookieSameSite         string
	DefaultRole            Role
	AuditEnabled           bool

	// Always false: refresh tokens are not rotated and there is no
	// revocation list.
	RefreshRotationEnabled bool
	RevocationEnabled      bool
}

// PasswordConfigReport is the argon2id part of a [SecurityReport].
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	keyBytes := 0
	if e.jwt != nil {
		keyBytes = e.jwt.KeyLen()
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		Issuer:           e.config.JWT.Issuer,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		SigningKeyBytes:  keyBytes,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		HashUpgradeSupported:   e.hashUpdater != nil,
		CookieName:             e.cookies.Name(),
		CookiePath:             e.cookies.Path(),
		CookieSecure:           e.config.Security.ProductionMode,
		CookieSameSite:         sameSiteName(e.config.Cookie.SameSite),
		DefaultRole:            e.config.Account.DefaultRole,
		AuditEnabled:           e.audit != nil,
	}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return "Default"
	}
}
