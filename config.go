package linkauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
)

// Config is the engine configuration. Start from DefaultConfig and set
// JWT.Secret at minimum.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Account  AccountConfig
	Throttle ThrottleConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing. Secret is the raw HMAC key.
type JWTConfig struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Leeway    time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig sets refresh-token lifetime and cleanup.
type RefreshConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration // 0 disables the background sweeper
}

/*
====================================
PASSWORD CONFIG
====================================
*/

const (
	PasswordAlgorithmBcrypt   = "bcrypt"
	PasswordAlgorithmArgon2id = "argon2id"
)

// PasswordConfig selects and tunes the built-in hasher. It is ignored when a
// hasher is supplied through Builder.WithPasswordHasher, except for the
// length bounds, which the engine always enforces.
type PasswordConfig struct {
	Algorithm  string
	MinLength  int
	MaxLength  int
	BcryptCost int
	// UpgradeOnLogin rehashes a password after a successful login when the
	// hasher reports the stored hash as outdated.
	UpgradeOnLogin bool

	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (p PasswordConfig) policy() password.Policy {
	return password.Policy{MinLength: p.MinLength, MaxLength: p.MaxLength}
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig holds defaults for new accounts.
type AccountConfig struct {
	DefaultRole string
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed password logins per email, and per client IP
// when PerIP is set. Enabling it requires Builder.WithRedis.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Cooldown    time.Duration
	PerIP       bool
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every field but JWT.Secret set.
func DefaultConfig() Config {
	argon := password.DefaultArgon2Config()
	bc := password.DefaultBcryptConfig()
	return Config{
		JWT: JWTConfig{
			Issuer:    "linkauth",
			AccessTTL: 15 * time.Minute,
			Leeway:    0,
		},
		Refresh: RefreshConfig{
			TTL:           7 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:   PasswordAlgorithmBcrypt,
			MinLength:   password.DefaultMinLength,
			MaxLength:   password.DefaultMaxLength,
			BcryptCost:  bc.Cost,
			Memory:      argon.Memory,
			Time:        argon.Time,
			Parallelism: argon.Parallelism,
			SaltLength:  argon.SaltLength,
			KeyLength:   argon.KeyLength,

			UpgradeOnLogin: true,
		},
		Account: AccountConfig{
			DefaultRole: DefaultRole,
		},
		Throttle: ThrottleConfig{
			Enabled:     false,
			MaxAttempts: 5,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.JWT.Secret) > 0 {
		out.JWT.Secret = make([]byte, len(cfg.JWT.Secret))
		copy(out.JWT.Secret, cfg.JWT.Secret)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL < c.JWT.AccessTTL {
		return errors.New("Refresh TTL must be >= JWT AccessTTL")
	}
	if c.Refresh.SweepInterval < 0 {
		return errors.New("Refresh SweepInterval must be >= 0")
	}

	// Password
	switch c.Password.Algorithm {
	case PasswordAlgorithmBcrypt, PasswordAlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.Algorithm == PasswordAlgorithmBcrypt && c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72 for bcrypt")
	}

	// Account
	if strings.TrimSpace(c.Account.DefaultRole) == "" {
		return errors.New("Account DefaultRole must not be empty")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0 when enabled")
		}
		if c.Throttle.Cooldown <= 0 {
			return errors.New("Throttle Cooldown must be > 0 when enabled")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
