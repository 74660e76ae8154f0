// Package pgstore is a statelessauth.PrincipalStore backed by PostgreSQL
// through pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/statelessauth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolationCode = "23505"

// Schema creates the principals table. Emails are stored lowercased.
const Schema = `
CREATE TABLE IF NOT EXISTS principals (
	id            BIGSERIAL PRIMARY KEY,
	email         TEXT        NOT NULL UNIQUE,
	password_hash TEXT        NOT NULL,
	role          TEXT        NOT NULL,
	active        BOOLEAN     NOT NULL DEFAULT TRUE,
	first_name    TEXT        NOT NULL DEFAULT '',
	last_name     TEXT        NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const principalColumns = `id, email, password_hash, role, active, first_name, last_name, created_at`

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements statelessauth.PrincipalStore and
// statelessauth.PasswordHashUpdater.
type Store struct {
	db  querier
	now func() time.Time
}

// New returns a Store over pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return newStore(pool)
}

func newStore(db querier) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create principals table: %w", err)
	}
	return nil
}

// FindByEmail implements statelessauth.CredentialStore.
func (s *Store) FindByEmail(ctx context.Context, email string) (statelessauth.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`

	p, err := scanPrincipal(s.db.QueryRow(ctx, query, normalize(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return statelessauth.Principal{}, statelessauth.ErrPrincipalNotFound
		}
		return statelessauth.Principal{}, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

// ExistsByEmail implements statelessauth.CredentialStore.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM principals WHERE email = $1)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, normalize(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// CreatePrincipal implements statelessauth.PrincipalWriter. A unique
// violation on email is reported as statelessauth.ErrResourceAlreadyExists.
func (s *Store) CreatePrincipal(ctx context.Context, np statelessauth.NewPrincipal) (statelessauth.Principal, error) {
	query := `
		INSERT INTO principals (email, password_hash, role, active, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + principalColumns

	if !np.Role.Valid() {
		return statelessauth.Principal{}, fmt.Errorf("%w: role %s", statelessauth.ErrInvalidInput, np.Role)
	}

	now := s.now().UTC()
	p, err := scanPrincipal(s.db.QueryRow(ctx, query,
		normalize(np.Email),
		np.PasswordHash,
		np.Role.String(),
		np.Active,
		np.FirstName,
		np.LastName,
		now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return statelessauth.Principal{}, statelessauth.ErrResourceAlreadyExists
		}
		return statelessauth.Principal{}, fmt.Errorf("create principal: %w", err)
	}
	return p, nil
}

// UpdatePasswordHash implements statelessauth.PasswordHashUpdater.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE principals SET password_hash = $2, updated_at = $3 WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, id, passwordHash, s.now().UTC())
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statelessauth.ErrPrincipalNotFound
	}
	return nil
}

// SetActive enables or disables the principal with email.
func (s *Store) SetActive(ctx context.Context, email string, active bool) error {
	query := `UPDATE principals SET active = $2, updated_at = $3 WHERE email = $1`

	tag, err := s.db.Exec(ctx, query, normalize(email), active, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return statelessauth.ErrPrincipalNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (statelessauth.Principal, error) {
	var (
		p    statelessauth.Principal
		role string
	)
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&role,
		&p.Active,
		&p.FirstName,
		&p.LastName,
		&p.CreatedAt,
	)
	if err != nil {
		return statelessauth.Principal{}, err
	}

	// An unknown role leaves the zero Role, which never matches RequireRole.
	p.Role, _ = statelessauth.ParseRole(role)
	return p, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	_ statelessauth.PrincipalStore      = (*Store)(nil)
	_ statelessauth.PasswordHashUpdater = (*Store)(nil)
)
