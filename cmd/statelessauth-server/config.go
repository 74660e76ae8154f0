package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/statelessauth"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "STATELESSAUTH"

// serverConfig is the file/env shape of the server configuration.
type serverConfig struct {
	Server   httpConfig     `mapstructure:"server"`
	Log      logConfig      `mapstructure:"log"`
	JWT      jwtConfig      `mapstructure:"jwt"`
	Security securityConfig `mapstructure:"security"`
	Cookie   cookieConfig   `mapstructure:"cookie"`
	Audit    auditConfig    `mapstructure:"audit"`
	Store    storeConfig    `mapstructure:"store"`
	Postgres postgresConfig `mapstructure:"postgres"`
	Redis    redisConfig    `mapstructure:"redis"`
	Rate     rateConfig     `mapstructure:"rate"`
	CORS     corsConfig     `mapstructure:"cors"`
}

type httpConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics"`
}

type logConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type jwtConfig struct {
	Secret        string        `mapstructure:"secret"`
	SigningMethod string        `mapstructure:"signing_method"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer"`
}

type securityConfig struct {
	ProductionMode bool `mapstructure:"production_mode"`
}

type cookieConfig struct {
	Domain   string `mapstructure:"domain"`
	SameSite string `mapstructure:"same_site"`
}

type auditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

type storeConfig struct {
	Driver  string `mapstructure:"driver"`
	Migrate bool   `mapstructure:"migrate"`
}

type postgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type redisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type rateConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type corsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.signing_method", "hs256")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("security.production_mode", false)

	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.same_site", "strict")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", 1024)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.migrate", false)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 25)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "sa:")

	v.SetDefault("rate.enabled", false)
	v.SetDefault("rate.max_attempts", 10)
	v.SetDefault("rate.window", "1m")

	v.SetDefault("cors.allowed_origins", []string{})
}

// newViper returns a viper instance with defaults and env binding applied.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// loadConfig reads the optional file at path and decodes v into a
// serverConfig. Environment variables override the file.
func loadConfig(v *viper.Viper, path string) (*serverConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &serverConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch cfg.Store.Driver {
	case "memory", "postgres", "redis":
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" && cfg.Postgres.DSN == "" {
		return nil, errors.New("postgres.dsn is required for the postgres store")
	}
	if cfg.Store.Driver == "redis" && cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required for the redis store")
	}
	if cfg.Rate.Enabled && cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required when rate limiting is enabled")
	}

	return cfg, nil
}

// engineConfig maps the server configuration onto statelessauth.Config.
func (c *serverConfig) engineConfig() (statelessauth.Config, error) {
	cfg := statelessauth.DefaultConfig()

	cfg.JWT.Secret = c.JWT.Secret
	cfg.JWT.SigningMethod = c.JWT.SigningMethod
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	cfg.JWT.Issuer = c.JWT.Issuer

	cfg.Security.ProductionMode = c.Security.ProductionMode
	cfg.Cookie.Domain = c.Cookie.Domain
	sameSite, err := parseSameSite(c.Cookie.SameSite)
	if err != nil {
		return statelessauth.Config{}, err
	}
	cfg.Cookie.SameSite = sameSite

	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}

	if err := cfg.Validate(); err != nil {
		return statelessauth.Config{}, err
	}
	return cfg, nil
}

func parseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unknown cookie same_site %q", s)
	}
}

func newLogger(c logConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
