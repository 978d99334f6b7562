package password

import (
	"errors"
	"fmt"
)

const (
	// DefaultMinLength and DefaultMaxLength bound accepted passwords in bytes.
	DefaultMinLength = 12
	DefaultMaxLength = 72
	// bcrypt silently ignores input past this many bytes.
	bcryptInputLimit = 72
)

// ErrPolicy is returned by Hash when the password falls outside the length bounds.
var ErrPolicy = errors.New("password policy violation")

// Policy bounds password length in bytes.
type Policy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy allows 12 to 72 bytes.
func DefaultPolicy() Policy {
	return Policy{MinLength: DefaultMinLength, MaxLength: DefaultMaxLength}
}

// Check returns ErrPolicy when len(password) is outside [MinLength, MaxLength].
func (p Policy) Check(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("%w: shorter than %d bytes", ErrPolicy, p.MinLength)
	}
	if len(password) > p.MaxLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrPolicy, p.MaxLength)
	}
	return nil
}

func (p Policy) validate() error {
	if p.MinLength < 8 {
		return errors.New("password min length must be >= 8")
	}
	if p.MaxLength < p.MinLength {
		return errors.New("password max length must be >= min length")
	}
	return nil
}
