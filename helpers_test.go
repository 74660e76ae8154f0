package statelessauth

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = testSecret
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockPrincipalStore is an in-package PrincipalStore with call counters.
type mockPrincipalStore struct {
	mu      sync.Mutex
	byEmail map[string]Principal
	nextID  int64

	findErr   error
	existsErr error
	createErr error

	findCalls   int
	existsCalls int
	createCalls int
	updateCalls int
}

func newMockPrincipalStore() *mockPrincipalStore {
	return &mockPrincipalStore{byEmail: map[string]Principal{}}
}

func (s *mockPrincipalStore) FindByEmail(_ context.Context, email string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return Principal{}, s.findErr
	}
	p, ok := s.byEmail[email]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (s *mockPrincipalStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *mockPrincipalStore) CreatePrincipal(_ context.Context, np NewPrincipal) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return Principal{}, s.createErr
	}
	if _, ok := s.byEmail[np.Email]; ok {
		return Principal{}, ErrResourceAlreadyExists
	}
	s.nextID++
	p := Principal{
		ID:           s.nextID,
		Email:        np.Email,
		PasswordHash: np.PasswordHash,
		Role:         np.Role,
		Active:       np.Active,
		FirstName:    np.FirstName,
		LastName:     np.LastName,
	}
	s.byEmail[p.Email] = p
	return p, nil
}

func (s *mockPrincipalStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	for email, p := range s.byEmail {
		if p.ID == id {
			p.PasswordHash = hash
			s.byEmail[email] = p
			return nil
		}
	}
	return ErrPrincipalNotFound
}

func (s *mockPrincipalStore) put(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
	}
	s.byEmail[strings.ToLower(p.Email)] = p
}

func (s *mockPrincipalStore) setActive(email string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.byEmail[email]
	p.Active = active
	s.byEmail[email] = p
}

func newTestEngine(t testing.TB, cfg Config, store PrincipalStore, clock *testClock) *Engine {
	t.Helper()

	b := New().WithConfig(cfg).WithPrincipalStore(store)
	if clock != nil {
		b = b.WithClock(clock.Now)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
