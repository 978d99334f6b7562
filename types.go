package linkauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/linkauth/refresh"
)

// ExchangeCodeTTL is the fixed lifetime of an OAuth exchange code.
const ExchangeCodeTTL = 30 * time.Second

// DefaultRole is the role claim given to every new account.
const DefaultRole = "USER"

// AccountState is the linking state of an account. Origin and password status
// are derived from it, so "local account without a password" cannot be expressed.
type AccountState uint8

const (
	// StateLocal: registered with email and password. Terminal.
	StateLocal AccountState = iota + 1
	// StateOAuthUnlinked: created by the OAuth provider, no password yet.
	StateOAuthUnlinked
	// StateOAuthLinked: OAuth-originated with a password set. Terminal.
	StateOAuthLinked
)

// String returns the stored name, e.g. "OAUTH_LINKED".
func (s AccountState) String() string {
	switch s {
	case StateLocal:
		return "LOCAL"
	case StateOAuthUnlinked:
		return "OAUTH_UNLINKED"
	case StateOAuthLinked:
		return "OAUTH_LINKED"
	default:
		return fmt.Sprintf("AccountState(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three known states.
func (s AccountState) Valid() bool {
	return s >= StateLocal && s <= StateOAuthLinked
}

// Origin reports how the account was first created.
func (s AccountState) Origin() Origin {
	if s == StateLocal {
		return OriginLocal
	}
	return OriginGoogle
}

// PasswordSet reports whether a password hash must exist for this state.
func (s AccountState) PasswordSet() bool {
	return s == StateLocal || s == StateOAuthLinked
}

// Origin is the persisted provider column.
type Origin string

const (
	OriginLocal  Origin = "LOCAL"
	OriginGoogle Origin = "GOOGLE"
)

var errIllegalState = errors.New("illegal account state")

// StateFromColumns maps the stored (origin, password_set) pair back to a state.
func StateFromColumns(origin Origin, passwordSet bool) (AccountState, error) {
	switch {
	case origin == OriginLocal && passwordSet:
		return StateLocal, nil
	case origin == OriginGoogle && !passwordSet:
		return StateOAuthUnlinked, nil
	case origin == OriginGoogle && passwordSet:
		return StateOAuthLinked, nil
	default:
		return 0, fmt.Errorf("%w: origin=%s password_set=%t", errIllegalState, origin, passwordSet)
	}
}

// Profile holds optional contact fields captured at registration. They are
// persisted but never returned by token-issuing operations.
type Profile struct {
	PhoneCountryCode string `json:"phoneCountryCode,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	AddressLine1     string `json:"addressLine1,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	ZipCode          string `json:"zipCode,omitempty"`
	Country          string `json:"country,omitempty"`
}

// Account is the persisted identity. PasswordHash is empty exactly when
// State.PasswordSet() is false.
type Account struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	State           AccountState
	ProviderSubject string
	Role            string
	Profile         Profile
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Origin and PasswordSet derive from State.
func (a Account) Origin() Origin    { return a.State.Origin() }
func (a Account) PasswordSet() bool { return a.State.PasswordSet() }

// Summary is the only identity data handed back on issuance.
func (a Account) Summary() UserSummary {
	return UserSummary{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		Provider:    a.Origin(),
		PasswordSet: a.PasswordSet(),
	}
}

// UserSummary is the account view returned with tokens.
type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Provider    Origin `json:"provider"`
	PasswordSet bool   `json:"passwordSet"`
}

// AuthResult is returned by every token-issuing operation. MustLink is set when
// the account has no password yet; a login that stops there carries no tokens.
type AuthResult struct {
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	MustLink     bool        `json:"requiresPasswordSet"`
	User         UserSummary `json:"user"`
}

// HasTokens reports whether the result carries a token pair.
func (r AuthResult) HasTokens() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}

// RegisterRequest carries a local sign-up. Profile fields are stored but
// never returned.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Profile  Profile `json:"profile"`
}

// OAuthIdentity is a provider identity already verified by the OAuth integration.
type OAuthIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// Principal is the authenticated caller derived from an access token.
type Principal struct {
	AccountID string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// AccountStore persists accounts. Lookups return ErrAccountNotFound for
// misses; CreateAccount returns ErrAlreadyExists on an email collision.
type AccountStore interface {
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
	FindAccountByID(ctx context.Context, id string) (Account, error)
	FindAccountByProviderSubject(ctx context.Context, subject string) (Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateAccount(ctx context.Context, account Account) error
	// AttachProviderSubject sets the subject only when none is recorded yet.
	AttachProviderSubject(ctx context.Context, accountID, subject string) error
	// LinkPassword moves an OAUTH_UNLINKED account to OAUTH_LINKED. It
	// reports false, leaving the row untouched, when a password is already set.
	LinkPassword(ctx context.Context, accountID, passwordHash string) (bool, error)
	// UpdatePasswordHash replaces the hash of an account that already has a
	// password. It reports false, changing nothing, for OAUTH_UNLINKED rows.
	UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) (bool, error)
}

// CredentialStore is a single backend holding accounts and refresh tokens.
type CredentialStore interface {
	AccountStore
	refresh.Store
}

// PasswordHasher hashes and verifies passwords. Hash enforces length policy.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// PasswordUpgrader is implemented by hashers that can tell when a stored
// hash was produced with weaker parameters than they now use.
type PasswordUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// ExchangeStore holds single-use codes. Consume reports ok=false for
// unknown, expired and already-consumed codes.
type ExchangeStore interface {
	Put(ctx context.Context, payload []byte, ttl time.Duration) (string, error)
	Consume(ctx context.Context, code string) ([]byte, bool, error)
}
