package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/linkauth/internal"
)

var (
	// ErrInvalid covers every refresh value that cannot be rotated.
	ErrInvalid = errors.New("refresh token invalid")
	// ErrExpired is returned for a known token past its expiry. It wraps ErrInvalid.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
	// ErrReplayDetected is returned when another caller consumed the token
	// between lookup and delete. It wraps ErrInvalid.
	ErrReplayDetected = fmt.Errorf("%w: replay detected", ErrInvalid)
	// ErrBackend wraps store failures.
	ErrBackend = errors.New("refresh store unavailable")
)

// Manager issues and rotates opaque refresh tokens against a Store.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager issues tokens valid for ttl and stores their digests in store.
func NewManager(store Store, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("refresh store required")
	}
	if ttl <= 0 {
		return nil, errors.New("invalid refresh TTL")
	}
	m := &Manager{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL reports the configured refresh lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue revokes every token held by accountID and persists a new one.
// The plaintext value is returned once and never stored.
func (m *Manager) Issue(ctx context.Context, accountID string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, errors.New("empty account id")
	}
	if err := m.store.DeleteRefreshTokensByAccount(ctx, accountID); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	value, err := internal.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := m.now().Add(m.ttl)

	err = m.store.SaveRefreshToken(ctx, Token{
		Hash:      internal.HashToken(value),
		AccountID: accountID,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return value, expiresAt, nil
}

// Rotate consumes value and returns the owning account id. The caller is
// expected to Issue a replacement. Unknown values yield ErrInvalid, expired
// ones ErrExpired, and a lost delete race ErrReplayDetected.
func (m *Manager) Rotate(ctx context.Context, value string) (string, error) {
	if _, err := internal.DecodeOpaqueToken(value); err != nil {
		return "", ErrInvalid
	}
	hash := internal.HashToken(value)

	tok, err := m.store.FindRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrInvalid
		}
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}

	if tok.Expired(m.now()) {
		if _, err := m.store.DeleteRefreshTokenByValue(ctx, hash); err != nil {
			return "", fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return tok.AccountID, ErrExpired
	}

	n, err := m.store.DeleteRefreshTokenByValue(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if n == 0 {
		return tok.AccountID, ErrReplayDetected
	}
	return tok.AccountID, nil
}

// RevokeAll removes every refresh token held by accountID.
func (m *Manager) RevokeAll(ctx context.Context, accountID string) error {
	if err := m.store.DeleteRefreshTokensByAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Sweep deletes every token expired at the current time.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteRefreshTokensExpiredBefore(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n, nil
}
