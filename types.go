package statelessauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of principal roles. The zero value is not a valid role.
type Role uint8

const (
	// RoleCustomer is the default role for self-registered principals.
	RoleCustomer Role = iota + 1
	// RoleAdmin grants administrative access.
	RoleAdmin
	// RoleShopOwner is assigned to merchants, never by self-registration.
	RoleShopOwner
)

// ErrUnknownRole is returned when a role name does not match any [Role].
var ErrUnknownRole = errors.New("unknown role")

var roleNames = [...]string{
	RoleCustomer:  "CUSTOMER",
	RoleAdmin:     "ADMIN",
	RoleShopOwner: "SHOP_OWNER",
}

// Roles lists every valid role in declaration order.
func Roles() []Role {
	return []Role{RoleCustomer, RoleAdmin, RoleShopOwner}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleCustomer && r <= RoleShopOwner
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Authority returns the granted-authority string for r, e.g. "ROLE_ADMIN".
func (r Role) Authority() string {
	return "ROLE_" + r.String()
}

// ParseRole maps a wire name such as "SHOP_OWNER" to its Role. Matching
// ignores case and surrounding whitespace.
func ParseRole(name string) (Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, r := range Roles() {
		if roleNames[r] == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is an authenticatable account as held by the credential store.
type Principal struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// View returns the principal without its password hash.
func (p Principal) View() PrincipalView {
	return PrincipalView{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
		Active:    p.Active,
	}
}

// PrincipalView is the public shape of a principal in responses and security contexts.
type PrincipalView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
	Active    bool   `json:"active"`
}

// NewPrincipal is the write model handed to [PrincipalWriter.CreatePrincipal].
type NewPrincipal struct {
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	FirstName    string
	LastName     string
}

// RegisterRequest carries the registration input.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginRequest carries the login input.
type LoginRequest struct {
	Email    string
	Password string
}

// AuthResult is returned by [Engine.Register] and [Engine.Login].
type AuthResult struct {
	Principal        PrincipalView
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshResult is returned by [Engine.RefreshAccessToken]. Only a new access
// token is issued; the refresh token is left as is.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
}

// CredentialStore is the read side of principal persistence.
//
// FindByEmail must return an error matching [ErrPrincipalNotFound] when no
// principal has the given email. Any other error is treated as a backend failure.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Principal, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// PrincipalWriter is the write side of principal persistence used by registration.
//
// CreatePrincipal assigns the ID and must return an error matching
// [ErrResourceAlreadyExists] when the email is already taken.
type PrincipalWriter interface {
	CreatePrincipal(ctx context.Context, p NewPrincipal) (Principal, error)
}

// PrincipalStore combines both sides. Every store in this module implements it.
type PrincipalStore interface {
	CredentialStore
	PrincipalWriter
}

// PasswordHashUpdater is optionally implemented by stores that accept
// re-hashed passwords after a successful login.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}
