// Package postgres is the PostgreSQL linkauth.CredentialStore.
//
// Queries run through database/sql on top of the pgx driver, so the store
// accepts any DBTX: a *sql.DB from OpenDB, a plain sql.Open("pgx", dsn)
// handle, or a *sql.Tx. The schema lives in embedded goose migrations; run
// Migrate once at startup.
//
// Account invariants are enforced twice. The engine drives the state
// machine, and CHECK constraints reject any row whose (provider,
// password_set, password_hash) triple does not describe a legal state.
// Single-use semantics come from conditional statements:
//
//   - LinkPassword updates only rows with password_set = FALSE.
//   - DeleteRefreshTokenByValue reports the affected row count, so of two
//     concurrent rotations exactly one sees 1.
package postgres
