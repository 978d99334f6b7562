// Package jwt issues and verifies HS256 access tokens carrying the account id
// (sub), role, issuer, a random token id (jti), issued-at and expiry.
//
// Access tokens are never revoked server-side; they simply run out. Verification
// distinguishes only [ErrExpired] from [ErrMalformed], and callers are expected to
// treat both as "not authenticated".
package jwt
