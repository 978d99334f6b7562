// Package refresh implements opaque, rotating refresh tokens with replay
// detection.
//
// # Token format
//
// 32 random bytes, base64url without padding. Tokens are never stored in
// plaintext: the [Store] retains only the hex SHA-256 digest, the owning
// account and an absolute expiry.
//
// # Rotation
//
// [Manager.Rotate] looks the digest up, deletes expired rows, and then performs
// an atomic delete-by-value. A zero row count means a concurrent caller already
// consumed the token and is reported as [ErrReplayDetected]. Issuing revokes every
// earlier token for the account, so each account holds at most one live token.
//
// # Architecture boundaries
//
// This package owns token generation, rotation and sweeping. It does NOT sign
// access tokens or resolve accounts; the linkauth Engine does that with the
// account id Rotate returns.
//
// # What this package must NOT do
//
//   - Import linkauth or jwt.
//   - Persist or log plaintext token values.
package refresh
