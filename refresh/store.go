package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned by Store.FindRefreshToken for unknown digests.
var ErrTokenNotFound = errors.New("refresh token not found")

// Token is a persisted refresh token. Hash is the hex SHA-256 digest of the
// opaque value; the value itself is never stored.
type Token struct {
	Hash      string
	AccountID string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its absolute expiry at now.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store persists refresh tokens. DeleteRefreshTokenByValue must be atomic with
// respect to concurrent callers: for one digest, exactly one caller may observe
// a non-zero row count.
type Store interface {
	SaveRefreshToken(ctx context.Context, token Token) error
	FindRefreshToken(ctx context.Context, hash string) (Token, error)
	DeleteRefreshTokensByAccount(ctx context.Context, accountID string) error
	DeleteRefreshTokenByValue(ctx context.Context, hash string) (int64, error)
	DeleteRefreshTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
