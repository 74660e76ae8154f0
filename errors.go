package statelessauth

import (
	"errors"

	"github.com/MrEthical07/statelessauth/jwt"
)

var (
	// ErrInvalidInput reports a request that fails input validation (empty or
	// malformed email, password outside the configured length bounds).
	ErrInvalidInput = errors.New("invalid input")
	// ErrResourceAlreadyExists reports a registration for an email that is taken.
	ErrResourceAlreadyExists = errors.New("resource already exists")
	// ErrAuthentication is the single error for every failed login. It does not
	// say whether the email exists.
	ErrAuthentication = errors.New("invalid email or password")
	// ErrUnauthorized is returned by refresh and bearer authentication for any
	// missing, invalid or expired token and for unknown or inactive principals.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPrincipalNotFound is the store contract for a missing principal. The
	// Engine never returns it to callers.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrEngineNotReady is returned by a nil or zero Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Token verification kinds, re-exported so callers need not import the jwt package.
var (
	ErrMalformedToken   = jwt.ErrMalformedToken
	ErrExpiredToken     = jwt.ErrExpiredToken
	ErrInvalidSignature = jwt.ErrInvalidSignature
)

func isTokenError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrInvalidSignature)
}

// isClientError reports whether err is an expected outcome of bad input
// rather than a backend failure.
func isClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrResourceAlreadyExists) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrUnauthorized) ||
		isTokenError(err)
}
