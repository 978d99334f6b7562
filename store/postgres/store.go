package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/refresh"
)

// DBTX is the subset of database/sql used by the store. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements linkauth.CredentialStore on the users and
// refresh_tokens tables.
type Store struct {
	db DBTX
}

var _ linkauth.CredentialStore = (*Store)(nil)

// New wraps db, typically from OpenDB.
func New(db DBTX) *Store {
	return &Store{db: db}
}

const accountColumns = `id, email, password_hash, name, provider, provider_id, password_set, role,
	phone_country_code, phone_number, address_line1, city, state, zip_code, country,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (linkauth.Account, error) {
	var (
		acc         linkauth.Account
		hash        sql.NullString
		provider    string
		subject     sql.NullString
		passwordSet bool
	)
	err := row.Scan(
		&acc.ID, &acc.Email, &hash, &acc.Name, &provider, &subject, &passwordSet, &acc.Role,
		&acc.Profile.PhoneCountryCode, &acc.Profile.PhoneNumber, &acc.Profile.AddressLine1,
		&acc.Profile.City, &acc.Profile.State, &acc.Profile.ZipCode, &acc.Profile.Country,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return linkauth.Account{}, linkauth.ErrAccountNotFound
		}
		return linkauth.Account{}, fmt.Errorf("db error: %w", err)
	}

	state, err := linkauth.StateFromColumns(linkauth.Origin(provider), passwordSet)
	if err != nil {
		return linkauth.Account{}, fmt.Errorf("account %s: %w", acc.ID, err)
	}
	acc.State = state
	acc.PasswordHash = hash.String
	acc.ProviderSubject = subject.String
	return acc, nil
}

/*
====================================
ACCOUNTS
====================================
*/

// FindAccountByEmail reports linkauth.ErrAccountNotFound for unknown emails.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (linkauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (linkauth.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return linkauth.Account{}, linkauth.ErrAccountNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) FindAccountByProviderSubject(ctx context.Context, subject string) (linkauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE provider_id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, subject))
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := s.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// CreateAccount maps a unique violation to linkauth.ErrAlreadyExists.
func (s *Store) CreateAccount(ctx context.Context, acc linkauth.Account) error {
	query := `
		INSERT INTO users (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.db.ExecContext(ctx, query,
		acc.ID, acc.Email, nullString(acc.PasswordHash), acc.Name,
		string(acc.Origin()), nullString(acc.ProviderSubject), acc.PasswordSet(), acc.Role,
		acc.Profile.PhoneCountryCode, acc.Profile.PhoneNumber, acc.Profile.AddressLine1,
		acc.Profile.City, acc.Profile.State, acc.Profile.ZipCode, acc.Profile.Country,
		acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return linkauth.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AttachProviderSubject is a no-op for accounts that already carry a subject.
func (s *Store) AttachProviderSubject(ctx context.Context, accountID, subject string) error {
	query := `
		UPDATE users
		SET provider_id = $2, updated_at = now()
		WHERE id = $1 AND provider_id IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, accountID, subject); err != nil {
		if isDuplicateKey(err) {
			return linkauth.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// LinkPassword updates only unlinked GOOGLE rows.
func (s *Store) LinkPassword(ctx context.Context, accountID, passwordHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $2, password_set = TRUE, updated_at = now()
		WHERE id = $1 AND provider = 'GOOGLE' AND password_set = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, accountID, passwordHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// UpdatePasswordHash rewrites the hash of an account with a password set.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, passwordHash string) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1 AND password_set = TRUE
	`
	res, err := s.db.ExecContext(ctx, query, accountID, passwordHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

/*
====================================
REFRESH TOKENS
====================================
*/

func (s *Store) SaveRefreshToken(ctx context.Context, t refresh.Token) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, query, t.Hash, t.AccountID, t.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) FindRefreshToken(ctx context.Context, hash string) (refresh.Token, error) {
	query := `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	t := refresh.Token{Hash: hash}
	if err := s.db.QueryRowContext(ctx, query, hash).Scan(&t.AccountID, &t.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return refresh.Token{}, refresh.ErrTokenNotFound
		}
		return refresh.Token{}, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteRefreshTokensByAccount(ctx context.Context, accountID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`
	if _, err := s.db.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteRefreshTokenByValue reports 1 to exactly one concurrent caller.
func (s *Store) DeleteRefreshTokenByValue(ctx context.Context, hash string) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1`
	return s.execCount(ctx, query, hash)
}

func (s *Store) DeleteRefreshTokensExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	return s.execCount(ctx, query, cutoff.UTC())
}

func (s *Store) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// isDuplicateKey reports a unique constraint violation (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
