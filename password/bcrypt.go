package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptConfig tunes the bcrypt work factor.
type BcryptConfig struct {
	Cost   int
	Policy Policy
}

// DefaultBcryptConfig uses bcrypt.DefaultCost and DefaultPolicy.
func DefaultBcryptConfig() BcryptConfig {
	return BcryptConfig{Cost: bcrypt.DefaultCost, Policy: DefaultPolicy()}
}

// Bcrypt hashes passwords with bcrypt ($2a$ modular crypt strings).
type Bcrypt struct {
	config BcryptConfig
}

// NewBcrypt rejects costs bcrypt cannot use and limits over 72 bytes.
func NewBcrypt(cfg BcryptConfig) (*Bcrypt, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	if cfg.Policy.MaxLength > bcryptInputLimit {
		return nil, errors.New("bcrypt max length must be <= 72 bytes")
	}
	if err := cfg.Policy.validate(); err != nil {
		return nil, err
	}
	return &Bcrypt{config: cfg}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if err := b.config.Policy.Check(password); err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.config.Cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports a mismatch as (false, nil); only malformed hashes are errors.
func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// NeedsUpgrade reports whether encoded used a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, err
	}
	return cost < b.config.Cost, nil
}
