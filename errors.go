package linkauth

import "errors"

var (
	// ErrAlreadyExists: registration with an email that is taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrInvalidCredentials covers unknown email, wrong password, unknown
	// account on set-password and every refresh failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordAlreadySet = errors.New("password already set")
	// ErrCodeExpiredOrInvalid: exchange code unknown, expired or already used.
	ErrCodeExpiredOrInvalid = errors.New("exchange code expired or invalid")
	ErrPasswordPolicy       = errors.New("password policy violation")
	// ErrInvalidIdentity: provider identity without email or subject.
	ErrInvalidIdentity = errors.New("invalid oauth identity")
	// ErrUnauthorized wraps ErrTokenExpired or ErrTokenMalformed.
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTokenExpired   = errors.New("access token expired")
	ErrTokenMalformed = errors.New("access token malformed")
	// ErrAccountNotFound is the store-level miss. The engine never surfaces it.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidInput: malformed email or missing name.
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateLimited    = errors.New("too many login attempts")
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the stable classification of an engine error.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindAlreadyExists
	KindInvalidCredentials
	KindPasswordMismatch
	KindPasswordAlreadySet
	KindCodeExpiredOrInvalid
	KindPasswordPolicy
	KindInvalidIdentity
	KindUnauthorized
	KindInvalidInput
	KindRateLimited
)

// String returns the stable kind name used in logs and audit.
func (k ErrorKind) String() string {
	switch k {
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindPasswordMismatch:
		return "password_mismatch"
	case KindPasswordAlreadySet:
		return "password_already_set"
	case KindCodeExpiredOrInvalid:
		return "code_expired_or_invalid"
	case KindPasswordPolicy:
		return "password_policy"
	case KindInvalidIdentity:
		return "invalid_identity"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Classify maps err onto an ErrorKind. Anything unrecognised is KindInternal.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrPasswordMismatch):
		return KindPasswordMismatch
	case errors.Is(err, ErrPasswordAlreadySet):
		return KindPasswordAlreadySet
	case errors.Is(err, ErrCodeExpiredOrInvalid):
		return KindCodeExpiredOrInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return KindPasswordPolicy
	case errors.Is(err, ErrInvalidIdentity):
		return KindInvalidIdentity
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMalformed):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// PublicMessage returns the user-safe message for err. Internal detail never
// appears here.
func PublicMessage(err error) string {
	switch Classify(err) {
	case KindAlreadyExists:
		return "An account with this email already exists"
	case KindInvalidCredentials:
		return "Invalid email or password"
	case KindPasswordMismatch:
		return "Passwords do not match"
	case KindPasswordAlreadySet:
		return "Password has already been set for this account"
	case KindCodeExpiredOrInvalid:
		return "Invalid or expired OAuth code"
	case KindPasswordPolicy:
		return "Password does not meet the length requirements"
	case KindInvalidIdentity:
		return "OAuth provider did not return a usable identity"
	case KindUnauthorized:
		return "Unauthorized"
	case KindInvalidInput:
		return "Validation failed"
	case KindRateLimited:
		return "Too many login attempts, try again later"
	default:
		return "An unexpected error occurred"
	}
}
