package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the HS256 key-size floor in bytes.
const MinSecretLength = 32

var (
	// ErrExpired is returned by Verify when the token is past its expiry.
	ErrExpired = errors.New("access token expired")
	// ErrMalformed is returned by Verify for every other rejection: bad
	// signature, unexpected algorithm, wrong issuer, missing subject, garbage.
	ErrMalformed = errors.New("access token malformed")
)

// Config holds the signing parameters. Secret is the raw HMAC key.
type Config struct {
	Secret    []byte
	Issuer    string
	AccessTTL time.Duration
	Leeway    time.Duration
}

// Manager signs and verifies HS256 access tokens. It is safe for concurrent use.
type Manager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// AccessClaims is the wire form of an access token.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Claims is the verified view of an access token handed back to callers.
type Claims struct {
	AccountID string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewManager validates cfg and derives the signing key once.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Manager{
		key:    key,
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTTL,
		parser: jwt.NewParser(options...),
		now:    time.Now,
	}, nil
}

// TTL reports the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for accountID carrying role. Each token gets a fresh
// random identifier.
func (m *Manager) Issue(accountID, role string) (string, error) {
	if accountID == "" {
		return "", errors.New("empty account id")
	}

	now := m.now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify checks signature, algorithm, issuer and expiry and returns the claims.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	out := &Claims{
		AccountID: claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
