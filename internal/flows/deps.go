package flows

import (
	"context"
	"time"
)

// PrincipalRecord is the flow-local principal model. Role is the wire name.
type PrincipalRecord struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	FirstName    string
	LastName     string
}

// VerifiedToken is what flows need from a successfully verified token.
type VerifiedToken struct {
	Subject     string
	PrincipalID int64
	TokenID     string
	ExpiresAt   time.Time
}

// FailureKind classifies refresh and authenticate failures for root-level
// mapping, metrics and audit reasons.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureMissingToken
	FailureTokenMalformed
	FailureTokenExpired
	FailureTokenSignature
	FailurePrincipalNotFound
	FailurePrincipalInactive
	FailurePrincipalMismatch
	FailureLookup
	FailureIssue
)

var failureReasons = [...]string{
	FailureNone:              "",
	FailureMissingToken:      "missing_token",
	FailureTokenMalformed:    "malformed_token",
	FailureTokenExpired:      "expired_token",
	FailureTokenSignature:    "invalid_signature",
	FailurePrincipalNotFound: "principal_not_found",
	FailurePrincipalInactive: "principal_inactive",
	FailurePrincipalMismatch: "principal_mismatch",
	FailureLookup:            "lookup_failed",
	FailureIssue:             "issue_failed",
}

// Reason is the snake_case audit reason for k.
func (k FailureKind) Reason() string {
	if k < 0 || int(k) >= len(failureReasons) {
		return "unknown"
	}
	return failureReasons[k]
}

// IsToken reports whether k came from token verification.
func (k FailureKind) IsToken() bool {
	return k == FailureTokenMalformed || k == FailureTokenExpired || k == FailureTokenSignature
}

// AuditFunc matches the Engine's audit emitter.
type AuditFunc func(ctx context.Context, event string, success bool, principalID int64, email string, err error, metadata func() map[string]string)

// PrincipalLookup resolves a verified subject to an active principal. It is
// shared by refresh and authenticate.
type PrincipalLookup struct {
	FindByEmail func(context.Context, string) (PrincipalRecord, error)
	IsNotFound  func(error) bool
}

func (l PrincipalLookup) resolve(ctx context.Context, tok VerifiedToken) (PrincipalRecord, FailureKind, error) {
	p, err := l.FindByEmail(ctx, tok.Subject)
	if err != nil {
		if l.IsNotFound != nil && l.IsNotFound(err) {
			return PrincipalRecord{}, FailurePrincipalNotFound, err
		}
		return PrincipalRecord{}, FailureLookup, err
	}
	if tok.PrincipalID != 0 && tok.PrincipalID != p.ID {
		return p, FailurePrincipalMismatch, nil
	}
	if !p.Active {
		return p, FailurePrincipalInactive, nil
	}
	return p, FailureNone, nil
}

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, int64, string, error, func() map[string]string) {}
