package linkauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/linkauth/exchange"
	"github.com/MrEthical07/linkauth/internal"
	"github.com/MrEthical07/linkauth/internal/rate"
	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
	"github.com/MrEthical07/linkauth/refresh"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config

	accounts     AccountStore
	refreshStore refresh.Store
	exchange     ExchangeStore
	hasher       PasswordHasher
	redis        redis.UniversalClient

	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets one backend for both accounts and refresh tokens.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.accounts = store
	b.refreshStore = store
	return b
}

// WithAccountStore sets the account backend on its own.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithRefreshStore sets the refresh-token backend on its own.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

// WithExchangeStore overrides the in-process exchange-code store. Use a
// shared store (exchange.RedisStore) when more than one instance serves the
// OAuth callback.
func (b *Builder) WithExchangeStore(store ExchangeStore) *Builder {
	b.exchange = store
	return b
}

// WithPasswordHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithLogger sets the operator logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink receives audit events when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRedis backs the login throttle and, unless WithExchangeStore was
// called, the exchange-code store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock injects the time source used for refresh expiry and audit
// timestamps. Access-token expiry still follows the wall clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// built only once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.refreshStore == nil {
		return nil, errors.New("refresh store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "linkauth"))

	// -------- TOKENS --------
	signer, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.JWT.Secret,
		Issuer:    cfg.JWT.Issuer,
		AccessTTL: cfg.JWT.AccessTTL,
		Leeway:    cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	refreshManager, err := refresh.NewManager(b.refreshStore, cfg.Refresh.TTL, refresh.WithClock(now))
	if err != nil {
		return nil, err
	}

	exchangeStore := b.exchange
	if exchangeStore == nil {
		if b.redis != nil {
			exchangeStore = exchange.NewRedisStore(b.redis, "")
		} else {
			exchangeStore = exchange.NewMemoryStore().WithClock(now)
		}
	}

	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		if b.redis == nil {
			return nil, errors.New("login throttle requires redis")
		}
		throttle = rate.New(b.redis, rate.Config{
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Cooldown:    cfg.Throttle.Cooldown,
			PerIP:       cfg.Throttle.PerIP,
			Prefix:      cfg.Throttle.RedisPrefix,
		})
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = newPasswordHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}

	// Login against an unknown email verifies against this hash so both
	// paths cost one hash comparison.
	filler, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(truncate(filler, cfg.Password.MaxLength))
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}

	e := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		signer:    signer,
		refresh:   refreshManager,
		exchange:  exchangeStore,
		hasher:    hasher,
		throttle:  throttle,
		policy:    cfg.Password.policy(),
		logger:    logger,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		now:       now,
		dummyHash: dummyHash,
	}

	b.built = true
	return e, nil
}

func newPasswordHasher(cfg PasswordConfig) (PasswordHasher, error) {
	switch cfg.Algorithm {
	case PasswordAlgorithmArgon2id:
		h, err := password.NewArgon2(password.Argon2Config{
			Memory:      cfg.Memory,
			Time:        cfg.Time,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
			Policy:      cfg.policy(),
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		h, err := password.NewBcrypt(password.BcryptConfig{
			Cost:   cfg.BcryptCost,
			Policy: cfg.policy(),
		})
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

func truncate(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
