// Package password implements password hashing and verification.
//
// Two hashers are provided and both satisfy linkauth.PasswordHasher:
//
//   - [Argon2] encodes argon2id PHC strings: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//   - [Bcrypt] encodes standard $2a$ bcrypt strings.
//
// Each hasher carries a [Policy] (12 to 72 bytes by default) and fails Hash with
// [ErrPolicy] for out-of-bounds input. NeedsUpgrade reports hashes produced with
// weaker parameters than the current configuration; the engine calls it through
// linkauth.PasswordUpgrader to rehash after a successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other linkauth package.
//   - Log plaintext passwords.
package password
