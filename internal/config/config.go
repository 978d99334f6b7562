// Package config loads server configuration from the environment, with an
// optional .env file in the working directory.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/oauth/google"
	"github.com/MrEthical07/linkauth/store/postgres"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

var (
	ErrParse   = errors.New("config: parse environment")
	ErrInvalid = errors.New("config: invalid")
)

// Secret is a base64-encoded HMAC key.
type Secret []byte

// UnmarshalText decodes standard base64.
func (s *Secret) UnmarshalText(text []byte) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("jwt secret is not valid base64: %w", err)
	}
	*s = raw
	return nil
}

// Server is the full environment of cmd/linkauth-server.
type Server struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"memory"`
	// ExchangeJanitor purges the in-memory exchange store when Redis is not configured.
	ExchangeJanitor time.Duration `env:"EXCHANGE_JANITOR_INTERVAL" envDefault:"1m"`
	OAuthStateTTL   time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	// TrustProxyHeaders reads the client IP from X-Forwarded-For and friends.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	JWT      JWT
	Password Password
	Redis    Redis
	Postgres Postgres
	Google   Google
	Throttle Throttle
	Metrics  Metrics
	Audit    Audit
}

type JWT struct {
	Secret    Secret        `env:"JWT_SECRET,required"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"linkauth"`
	AccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	Leeway    time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`

	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	SweepInterval time.Duration `env:"REFRESH_SWEEP_INTERVAL" envDefault:"1h"`
}

type Password struct {
	Algorithm  string `env:"PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost int    `env:"PASSWORD_BCRYPT_COST" envDefault:"12"`
	MinLength  int    `env:"PASSWORD_MIN_LENGTH" envDefault:"12"`
	MaxLength  int    `env:"PASSWORD_MAX_LENGTH" envDefault:"72"`
	// UpgradeOnLogin rehashes stored passwords made at a lower cost.
	UpgradeOnLogin bool `env:"PASSWORD_UPGRADE_ON_LOGIN" envDefault:"true"`
}

// Redis is optional for local sign-in. Without an address exchange codes live
// in process memory; Google sign-in needs it for redirect state.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_PREFIX" envDefault:"linkauth"`
}

type Postgres struct {
	DSN             string        `env:"DATABASE_URL"`
	MaxConns        int32         `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DATABASE_MIN_CONNS" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	MaxConnLifetime time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"1h"`
	RetryAttempts   int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"5"`
	RetryInterval   time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"2s"`
	Migrate         bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
}

// Google enables OAuth sign-in when both client fields are set.
type Google struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/login/oauth2/code/google"`
	VerifiedOnly bool   `env:"GOOGLE_VERIFIED_ONLY" envDefault:"true"`
}

func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Throttle limits failed password logins. It needs Redis.
type Throttle struct {
	Enabled     bool          `env:"LOGIN_THROTTLE_ENABLED" envDefault:"false"`
	MaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	Cooldown    time.Duration `env:"LOGIN_COOLDOWN" envDefault:"15m"`
	PerIP       bool          `env:"LOGIN_THROTTLE_PER_IP" envDefault:"false"`
}

type Metrics struct {
	Enabled    bool `env:"METRICS_ENABLED" envDefault:"true"`
	Histograms bool `env:"METRICS_LATENCY_HISTOGRAMS" envDefault:"false"`
}

type Audit struct {
	Enabled    bool `env:"AUDIT_ENABLED" envDefault:"false"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`
}

// Load reads .env when present, then the process environment, which wins.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("%w: .env: %w", ErrParse, err)
	}
	return Parse(env.Options{})
}

// Parse decodes the environment described by opts. Tests pass
// opts.Environment to avoid touching the process environment.
func Parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements, then the engine config.
func (c Server) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalid, c.StoreDriver)
	}
	if c.Google.Enabled() {
		if c.FrontendURL == "" {
			return fmt.Errorf("%w: FRONTEND_URL is required with google oauth", ErrInvalid)
		}
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: REDIS_ADDR is required with google oauth", ErrInvalid)
		}
	}
	if c.Throttle.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: REDIS_ADDR is required with LOGIN_THROTTLE_ENABLED", ErrInvalid)
	}
	engine := c.EngineConfig()
	if err := engine.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// EngineConfig maps the environment onto linkauth.Config.
func (c Server) EngineConfig() linkauth.Config {
	cfg := linkauth.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWT.Secret)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.Leeway = c.JWT.Leeway
	cfg.Refresh.TTL = c.JWT.RefreshTTL
	cfg.Refresh.SweepInterval = c.JWT.SweepInterval
	cfg.Password.Algorithm = c.Password.Algorithm
	cfg.Password.BcryptCost = c.Password.BcryptCost
	cfg.Password.MinLength = c.Password.MinLength
	cfg.Password.MaxLength = c.Password.MaxLength
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin
	cfg.Throttle.Enabled = c.Throttle.Enabled
	cfg.Throttle.MaxAttempts = c.Throttle.MaxAttempts
	cfg.Throttle.Cooldown = c.Throttle.Cooldown
	cfg.Throttle.PerIP = c.Throttle.PerIP
	cfg.Throttle.RedisPrefix = c.Redis.Prefix + ":login"
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Histograms
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	return cfg
}

func (c Server) PostgresConfig() postgres.Config {
	return postgres.Config{
		DSN:             c.Postgres.DSN,
		MaxConns:        c.Postgres.MaxConns,
		MinConns:        c.Postgres.MinConns,
		MaxConnIdleTime: c.Postgres.MaxConnIdleTime,
		MaxConnLifetime: c.Postgres.MaxConnLifetime,
		RetryAttempts:   c.Postgres.RetryAttempts,
		RetryInterval:   c.Postgres.RetryInterval,
	}
}

func (c Server) GoogleConfig() google.Config {
	return google.Config{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURL,
		VerifiedOnly: c.Google.VerifiedOnly,
	}
}
