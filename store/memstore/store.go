// Package memstore is an in-process statelessauth.PrincipalStore for tests,
// examples and single-node development servers. Data is lost on exit.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/statelessauth"
)

// Store keeps principals in maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*statelessauth.Principal
	byID    map[int64]*statelessauth.Principal
	nextID  int64
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byEmail: make(map[string]*statelessauth.Principal),
		byID:    make(map[int64]*statelessauth.Principal),
		now:     time.Now,
	}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail implements statelessauth.CredentialStore.
func (s *Store) FindByEmail(ctx context.Context, email string) (statelessauth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return statelessauth.Principal{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byEmail[key(email)]
	if !ok {
		return statelessauth.Principal{}, statelessauth.ErrPrincipalNotFound
	}
	return *p, nil
}

// ExistsByEmail implements statelessauth.CredentialStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[key(email)]
	return ok, nil
}

// CreatePrincipal implements statelessauth.PrincipalWriter. IDs start at 1.
func (s *Store) CreatePrincipal(ctx context.Context, np statelessauth.NewPrincipal) (statelessauth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return statelessauth.Principal{}, err
	}

	if !np.Role.Valid() {
		return statelessauth.Principal{}, statelessauth.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(np.Email)
	if _, ok := s.byEmail[k]; ok {
		return statelessauth.Principal{}, statelessauth.ErrResourceAlreadyExists
	}

	s.nextID++
	p := &statelessauth.Principal{
		ID:           s.nextID,
		Email:        k,
		PasswordHash: np.PasswordHash,
		Role:         np.Role,
		Active:       np.Active,
		FirstName:    np.FirstName,
		LastName:     np.LastName,
		CreatedAt:    s.now().UTC(),
	}
	s.byEmail[k] = p
	s.byID[p.ID] = p

	return *p, nil
}

// UpdatePasswordHash implements statelessauth.PasswordHashUpdater.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return statelessauth.ErrPrincipalNotFound
	}
	p.PasswordHash = passwordHash
	return nil
}

// SetActive enables or disables the principal with email.
func (s *Store) SetActive(email string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEmail[key(email)]
	if !ok {
		return statelessauth.ErrPrincipalNotFound
	}
	p.Active = active
	return nil
}

// SetRole changes the role of the principal with email.
func (s *Store) SetRole(email string, role statelessauth.Role) error {
	if !role.Valid() {
		return statelessauth.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byEmail[key(email)]
	if !ok {
		return statelessauth.ErrPrincipalNotFound
	}
	p.Role = role
	return nil
}

// Delete removes the principal with email. Missing principals are ignored.
func (s *Store) Delete(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byEmail[key(email)]; ok {
		delete(s.byID, p.ID)
		delete(s.byEmail, key(email))
	}
}

// Len returns the number of stored principals.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}

var (
	_ statelessauth.PrincipalStore      = (*Store)(nil)
	_ statelessauth.PasswordHashUpdater = (*Store)(nil)
)
