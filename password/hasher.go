package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidInput is returned by [Hasher.Hash] for an empty password.
var ErrInvalidInput = errors.New("password must not be empty")

// Config holds the argon2id cost parameters for new hashes.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the argon2id parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// legacy bcrypt hashes. It holds no mutable state.
type Hasher struct {
	config Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash with a fresh random salt. The
// password bytes are used as given, with no normalization.
func (h *Hasher) Hash(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidInput
	}
	return h.config.argon2Hash(raw)
}

// Verify reports whether raw matches hashed. Mismatches, empty input and
// unrecognised or malformed hashes all return false.
func (h *Hasher) Verify(raw, hashed string) bool {
	if raw == "" || hashed == "" {
		return false
	}

	switch {
	case strings.HasPrefix(hashed, argon2Prefix):
		return argon2Verify(raw, hashed)
	case isBcrypt(hashed):
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
	default:
		return false
	}
}

// NeedsUpgrade reports whether hashed should be replaced by a fresh [Hasher.Hash]
// result: bcrypt hashes always, argon2id hashes when their parameters are weaker
// than the configured ones.
func (h *Hasher) NeedsUpgrade(hashed string) bool {
	if isBcrypt(hashed) {
		return true
	}
	return h.config.weakerThan(hashed)
}

func isBcrypt(hashed string) bool {
	return strings.HasPrefix(hashed, "$2a$") ||
		strings.HasPrefix(hashed, "$2b$") ||
		strings.HasPrefix(hashed, "$2y$")
}
