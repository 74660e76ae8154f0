package statelessauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func registerAlice(t *testing.T, engine *Engine) (*AuthResult, *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	res, err := engine.Register(context.Background(), rec, RegisterRequest{
		Email:     "Alice@Example.com ",
		Password:  "correct-horse-1",
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	require.NoError(t, err)
	return res, refreshCookie(t, rec)
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func refreshRequest(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/refresh", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func tamperRole(t *testing.T, token, from, to string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.Contains(t, string(payload), from)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), from, to, 1)))
	return strings.Join(parts, ".")
}

func TestRegisterIssuesTokensAndCookie(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)

	res, cookie := registerAlice(t, engine)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice@example.com", res.Principal.Email)
	assert.Equal(t, RoleCustomer, res.Principal.Role)
	assert.True(t, res.Principal.Active)
	assert.Equal(t, "Alice", res.Principal.FirstName)

	assert.Equal(t, res.RefreshToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, "/auth/refresh", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	stored, err := store.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	assert.NotContains(t, stored.PasswordHash, "correct-horse-1")
}

func TestRegisterSecureCookieInProductionMode(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	engine := newTestEngine(t, cfg, newMockPrincipalStore(), nil)

	_, cookie := registerAlice(t, engine)
	assert.True(t, cookie.Secure)
}

func TestRegisterDuplicateIssuesNoTokens(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	registerAlice(t, engine)
	createsBefore := store.createCalls

	rec := httptest.NewRecorder()
	res, err := engine.Register(context.Background(), rec, RegisterRequest{
		Email:    "alice@example.com",
		Password: "another-password",
	})
	require.ErrorIs(t, err, ErrResourceAlreadyExists)
	assert.Nil(t, res)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, createsBefore, store.createCalls, "CreatePrincipal must not run for a taken email")
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricRegisterDuplicate])
}

func TestRegisterStoreRaceMapsToAlreadyExists(t *testing.T) {
	store := newMockPrincipalStore()
	store.createErr = ErrResourceAlreadyExists
	engine := newTestEngine(t, testConfig(), store, nil)

	_, err := engine.Register(context.Background(), nil, RegisterRequest{Email: "bob@example.com", Password: "password-123"})
	require.ErrorIs(t, err, ErrResourceAlreadyExists)
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"empty email", RegisterRequest{Password: "password-123"}},
		{"malformed email", RegisterRequest{Email: "not-an-email", Password: "password-123"}},
		{"empty password", RegisterRequest{Email: "bob@example.com"}},
		{"long password", RegisterRequest{Email: "bob@example.com", Password: strings.Repeat("x", 129)}},
		{"long name", RegisterRequest{Email: "bob@example.com", Password: "password-123", FirstName: strings.Repeat("n", 101)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMockPrincipalStore()
			engine := newTestEngine(t, testConfig(), store, nil)

			_, err := engine.Register(context.Background(), nil, tc.req)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, store.existsCalls)
		})
	}
}

func TestRegisterBackendFailureIsWrapped(t *testing.T) {
	store := newMockPrincipalStore()
	store.existsErr = errors.New("connection refused")
	engine := newTestEngine(t, testConfig(), store, nil)

	_, err := engine.Register(context.Background(), nil, RegisterRequest{Email: "bob@example.com", Password: "password-123"})
	require.Error(t, err)
	assert.False(t, isClientError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoginSuccess(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
	registerAlice(t, engine)

	rec := httptest.NewRecorder()
	res, err := engine.Login(context.Background(), rec, LoginRequest{Email: "ALICE@example.com", Password: "correct-horse-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, res.RefreshToken, refreshCookie(t, rec).Value)
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricLoginSuccess])
}

func TestLoginFailuresDoNotEnumerate(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	registerAlice(t, engine)
	registered, err := engine.Register(context.Background(), nil, RegisterRequest{Email: "carol@example.com", Password: "password-123"})
	require.NoError(t, err)
	store.setActive(registered.Principal.Email, false)

	attempts := []LoginRequest{
		{Email: "nobody@example.com", Password: "correct-horse-1"},
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "carol@example.com", Password: "password-123"},
		{Email: "alice@example.com", Password: ""},
	}

	for _, req := range attempts {
		rec := httptest.NewRecorder()
		res, err := engine.Login(context.Background(), rec, req)
		require.Nil(t, res)
		require.Equal(t, ErrAuthentication, err, "login for %q must return the bare authentication error", req.Email)
		assert.Empty(t, rec.Result().Cookies())
	}
	assert.Equal(t, uint64(len(attempts)), engine.MetricsSnapshot().Counters[MetricLoginFailure])
}

func TestLoginBackendFailureIsNotAuthenticationError(t *testing.T) {
	store := newMockPrincipalStore()
	store.findErr = errors.New("db down")
	engine := newTestEngine(t, testConfig(), store, nil)

	_, err := engine.Login(context.Background(), nil, LoginRequest{Email: "alice@example.com", Password: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	store := newMockPrincipalStore()
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	require.NoError(t, err)
	store.put(Principal{Email: "dave@example.com", PasswordHash: string(legacy), Role: RoleShopOwner, Active: true})

	engine := newTestEngine(t, testConfig(), store, nil)

	res, err := engine.Login(context.Background(), nil, LoginRequest{Email: "dave@example.com", Password: "legacy-password"})
	require.NoError(t, err)
	assert.Equal(t, RoleShopOwner, res.Principal.Role)
	assert.Equal(t, 1, store.updateCalls)

	p, err := store.FindByEmail(context.Background(), "dave@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.PasswordHash, "$argon2id$"))
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricPasswordUpgraded])

	_, err = engine.Login(context.Background(), nil, LoginRequest{Email: "dave@example.com", Password: "legacy-password"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.updateCalls, "an upgraded hash is not rewritten again")
}

func TestRefreshAccessToken(t *testing.T) {
	clock := newTestClock()
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, clock)
	reg, cookie := registerAlice(t, engine)

	clock.Advance(time.Minute)
	res, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, reg.AccessToken, res.AccessToken)
	assert.WithinDuration(t, clock.Now().Add(15*time.Minute), res.AccessExpiresAt, 0)

	sc, err := engine.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.Principal.ID, sc.Principal.ID)

	again, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
	require.NoError(t, err, "the same refresh token is reusable until it expires")
	assert.NotEmpty(t, again.AccessToken)
}

func TestRefreshAccessTokenFailures(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
		_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(nil))
		require.Equal(t, ErrUnauthorized, err)
	})

	t.Run("expired", func(t *testing.T) {
		clock := newTestClock()
		engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), clock)
		_, cookie := registerAlice(t, engine)

		clock.Advance(7*24*time.Hour + time.Second)
		_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
		require.Equal(t, ErrUnauthorized, err)
		assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricTokenExpired])
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
		reg, _ := registerAlice(t, engine)
		_, err := engine.Refresh(context.Background(), reg.AccessToken)
		require.Equal(t, ErrUnauthorized, err)
	})

	t.Run("signed with another key", func(t *testing.T) {
		other := testConfig()
		other.JWT.Secret = base64.StdEncoding.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
		foreign := newTestEngine(t, other, newMockPrincipalStore(), nil)
		_, cookie := registerAlice(t, foreign)

		engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
		registerAlice(t, engine)
		_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
		require.Equal(t, ErrUnauthorized, err)
		assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[MetricTokenTampered])
	})

	t.Run("inactive principal", func(t *testing.T) {
		store := newMockPrincipalStore()
		engine := newTestEngine(t, testConfig(), store, nil)
		_, cookie := registerAlice(t, engine)
		store.setActive("alice@example.com", false)

		_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
		require.Equal(t, ErrUnauthorized, err)
	})

	t.Run("backend failure", func(t *testing.T) {
		store := newMockPrincipalStore()
		engine := newTestEngine(t, testConfig(), store, nil)
		_, cookie := registerAlice(t, engine)
		store.findErr = errors.New("db down")

		_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cookie))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnauthorized)
		assert.ErrorIs(t, err, store.findErr)
		assert.Contains(t, err.Error(), "lookup_failed")
	})
}

func TestLogoutClearsCookieThenRefreshFails(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
	reg, _ := registerAlice(t, engine)

	rec := httptest.NewRecorder()
	engine.Logout(context.Background(), rec)
	cleared := refreshCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")

	_, err := engine.RefreshAccessToken(context.Background(), refreshRequest(cleared))
	require.Equal(t, ErrUnauthorized, err)

	_, err = engine.Authenticate(context.Background(), reg.AccessToken)
	require.NoError(t, err, "logout does not revoke issued access tokens")
}

func TestAuthenticate(t *testing.T) {
	clock := newTestClock()
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, clock)
	reg, _ := registerAlice(t, engine)

	sc, err := engine.Authenticate(context.Background(), reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sc.Principal.Email)
	assert.Equal(t, []string{"ROLE_CUSTOMER"}, sc.Authorities)
	assert.True(t, sc.HasRole(RoleCustomer))
	assert.False(t, sc.HasRole(RoleAdmin))
	assert.NotEmpty(t, sc.TokenID)
	assert.WithinDuration(t, clock.Now().Add(15*time.Minute), sc.ExpiresAt, 0)

	tampered := tamperRole(t, reg.AccessToken, "CUSTOMER", "ADMIN")
	_, err = engine.Authenticate(context.Background(), tampered)
	require.Equal(t, ErrUnauthorized, err)

	_, err = engine.Authenticate(context.Background(), reg.RefreshToken)
	require.Equal(t, ErrUnauthorized, err)

	_, err = engine.Authenticate(context.Background(), "")
	require.Equal(t, ErrUnauthorized, err)

	clock.Advance(16 * time.Minute)
	_, err = engine.Authenticate(context.Background(), reg.AccessToken)
	require.Equal(t, ErrUnauthorized, err)

	counters := engine.MetricsSnapshot().Counters
	assert.Equal(t, uint64(1), counters[MetricAuthenticateSuccess])
	assert.Equal(t, uint64(4), counters[MetricAuthenticateRejected])
	assert.Equal(t, uint64(1), counters[MetricTokenTampered])
	assert.Equal(t, uint64(1), counters[MetricTokenExpired])
	assert.Equal(t, uint64(1), counters[MetricTokenMalformed])
}

func TestAuthenticateRejectsInactiveAndMissingPrincipal(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	reg, _ := registerAlice(t, engine)

	store.setActive("alice@example.com", false)
	_, err := engine.Authenticate(context.Background(), reg.AccessToken)
	require.Equal(t, ErrUnauthorized, err)

	store.mu.Lock()
	delete(store.byEmail, "alice@example.com")
	store.mu.Unlock()
	_, err = engine.Authenticate(context.Background(), reg.AccessToken)
	require.Equal(t, ErrUnauthorized, err)
}

func TestAuthenticateStoreFailureIsNotUnauthorized(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	reg, _ := registerAlice(t, engine)
	store.findErr = errors.New("db down")

	_, err := engine.Authenticate(context.Background(), reg.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, store.findErr)
}

func TestAuthenticateRejectsReissuedEmail(t *testing.T) {
	store := newMockPrincipalStore()
	engine := newTestEngine(t, testConfig(), store, nil)
	reg, _ := registerAlice(t, engine)

	store.mu.Lock()
	delete(store.byEmail, "alice@example.com")
	store.mu.Unlock()
	_, _ = registerAlice(t, engine)

	_, err := engine.Authenticate(context.Background(), reg.AccessToken)
	require.Equal(t, ErrUnauthorized, err, "a token for a deleted principal must not bind its successor")
}

func TestNilEngineIsNotReady(t *testing.T) {
	var engine *Engine

	_, err := engine.Register(context.Background(), nil, RegisterRequest{})
	require.ErrorIs(t, err, ErrEngineNotReady)
	_, err = engine.Login(context.Background(), nil, LoginRequest{})
	require.ErrorIs(t, err, ErrEngineNotReady)
	_, err = engine.Authenticate(context.Background(), "x")
	require.ErrorIs(t, err, ErrEngineNotReady)
	_, err = engine.Refresh(context.Background(), "x")
	require.ErrorIs(t, err, ErrEngineNotReady)
	engine.Logout(context.Background(), httptest.NewRecorder())
	engine.Close()
}

func TestBuilderValidation(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	require.Error(t, err, "store is required")

	cfg := testConfig()
	cfg.JWT.Secret = base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err = New().WithConfig(cfg).WithPrincipalStore(newMockPrincipalStore()).Build()
	require.Error(t, err)

	b := New().WithConfig(testConfig()).WithPrincipalStore(newMockPrincipalStore())
	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()
	_, err = b.Build()
	require.Error(t, err, "builder is single-use")
}

func TestRegisterEnforcesConfiguredMinLength(t *testing.T) {
	cfg := testConfig()
	cfg.Password.MinLength = 8
	store := newMockPrincipalStore()
	engine := newTestEngine(t, cfg, store, nil)

	_, err := engine.Register(context.Background(), nil, RegisterRequest{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, store.existsCalls)

	_, err = engine.Register(context.Background(), nil, RegisterRequest{Email: "bob@example.com", Password: "long-enough"})
	require.NoError(t, err)
}

func TestFullLifecycleScenario(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newMockPrincipalStore(), nil)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	_, err := engine.Register(ctx, rec, RegisterRequest{Email: "a@x.com", Password: "pw1", FirstName: "A", LastName: "B"})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	_, err = engine.Login(ctx, rec, LoginRequest{Email: "a@x.com", Password: "pw1"})
	require.NoError(t, err)
	cookie := refreshCookie(t, rec)

	_, err = engine.Login(ctx, nil, LoginRequest{Email: "a@x.com", Password: "wrong"})
	require.Equal(t, ErrAuthentication, err)

	_, err = engine.RefreshAccessToken(ctx, refreshRequest(cookie))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	engine.Logout(ctx, rec)

	_, err = engine.RefreshAccessToken(ctx, refreshRequest(refreshCookie(t, rec)))
	require.Equal(t, ErrUnauthorized, err)
}

func TestSecurityReport(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ProductionMode = true
	engine := newTestEngine(t, cfg, newMockPrincipalStore(), nil)

	r := engine.SecurityReport()
	assert.True(t, r.ProductionMode)
	assert.True(t, r.CookieSecure)
	assert.Equal(t, "hs256", r.SigningAlgorithm)
	assert.Equal(t, 32, r.SigningKeyBytes)
	assert.Equal(t, "refreshToken", r.CookieName)
	assert.Equal(t, "/auth/refresh", r.CookiePath)
	assert.Equal(t, "Strict", r.CookieSameSite)
	assert.True(t, r.HashUpgradeSupported)
	assert.False(t, r.RefreshRotationEnabled)
	assert.False(t, r.RevocationEnabled)

	var nilEngine *Engine
	assert.Equal(t, SecurityReport{}, nilEngine.SecurityReport())
}
