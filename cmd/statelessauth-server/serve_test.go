package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConfig(t *testing.T) *serverConfig {
	t.Helper()
	t.Setenv("STATELESSAUTH_JWT_SECRET", testSecret())
	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)
	return cfg
}

func TestServeStackMemory(t *testing.T) {
	cfg := newTestConfig(t)
	logger := zap.NewNop()

	be, err := openBackend(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer be.Close()

	engine, err := buildEngine(cfg, be.store, logger)
	require.NoError(t, err)
	defer engine.Close()

	handler, err := buildRouter(cfg, engine, be.redis, logger)
	require.NoError(t, err)

	body := `{"email":"ana@example.com","password":"correct horse battery","firstName":"Ana"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "statelessauth_register_success_total")
}

func TestServeStackRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("STATELESSAUTH_STORE_DRIVER", "redis")
	t.Setenv("STATELESSAUTH_REDIS_ADDR", mr.Addr())
	t.Setenv("STATELESSAUTH_RATE_ENABLED", "true")
	t.Setenv("STATELESSAUTH_RATE_MAX_ATTEMPTS", "1")
	cfg := newTestConfig(t)
	logger := zap.NewNop()

	be, err := openBackend(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer be.Close()
	require.NotNil(t, be.redis)

	engine, err := buildEngine(cfg, be.store, logger)
	require.NoError(t, err)
	defer engine.Close()

	handler, err := buildRouter(cfg, engine, be.redis, logger)
	require.NoError(t, err)

	login := func() int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"nobody@example.com","password":"whatever1"}`))
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())
}

func TestOpenBackendRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	t.Setenv("STATELESSAUTH_STORE_DRIVER", "redis")
	t.Setenv("STATELESSAUTH_REDIS_ADDR", addr)
	cfg := newTestConfig(t)

	_, err := openBackend(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}
