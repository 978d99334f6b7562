package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// OpaqueTokenSize is the number of random bytes behind every refresh token and
// exchange code (256 bits).
const OpaqueTokenSize = 32

var errInvalidTokenSize = errors.New("invalid opaque token size")

// NewOpaqueToken returns OpaqueTokenSize random bytes, base64url encoded.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeOpaqueToken checks that token is the encoding of exactly
// OpaqueTokenSize bytes and returns the raw bytes.
func DecodeOpaqueToken(token string) ([]byte, error) {
	if base64.RawURLEncoding.DecodedLen(len(token)) != OpaqueTokenSize {
		return nil, errInvalidTokenSize
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	if len(raw) != OpaqueTokenSize {
		return nil, errInvalidTokenSize
	}
	return raw, nil
}

// HashToken returns the hex SHA-256 digest under which a token is persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
