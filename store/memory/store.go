// Package memory is an in-process linkauth.CredentialStore. It suits tests,
// the load tester and single-instance development servers; nothing survives
// a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/refresh"
)

// Store keeps accounts and refresh tokens in mutex-guarded maps. Each method
// is one critical section, which gives LinkPassword and
// DeleteRefreshTokenByValue the atomicity the engine relies on.
type Store struct {
	mu        sync.RWMutex
	accounts  map[string]linkauth.Account
	byEmail   map[string]string
	bySubject map[string]string
	tokens    map[string]refresh.Token
	now       func() time.Time
}

var _ linkauth.CredentialStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]linkauth.Account),
		byEmail:   make(map[string]string),
		bySubject: make(map[string]string),
		tokens:    make(map[string]refresh.Token),
		now:       time.Now,
	}
}

// WithClock sets the time source for UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

/*
====================================
ACCOUNTS
====================================
*/

func (s *Store) FindAccountByEmail(_ context.Context, email string) (linkauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return linkauth.Account{}, linkauth.ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) FindAccountByID(_ context.Context, id string) (linkauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return linkauth.Account{}, linkauth.ErrAccountNotFound
	}
	return acc, nil
}

func (s *Store) FindAccountByProviderSubject(_ context.Context, subject string) (linkauth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubject[subject]
	if !ok {
		return linkauth.Account{}, linkauth.ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

// CreateAccount returns linkauth.ErrAlreadyExists when the email, id or
// provider subject is already taken.
func (s *Store) CreateAccount(_ context.Context, acc linkauth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[acc.Email]; ok {
		return linkauth.ErrAlreadyExists
	}
	if _, ok := s.accounts[acc.ID]; ok {
		return linkauth.ErrAlreadyExists
	}
	if acc.ProviderSubject != "" {
		if _, ok := s.bySubject[acc.ProviderSubject]; ok {
			return linkauth.ErrAlreadyExists
		}
	}

	s.accounts[acc.ID] = acc
	s.byEmail[acc.Email] = acc.ID
	if acc.ProviderSubject != "" {
		s.bySubject[acc.ProviderSubject] = acc.ID
	}
	return nil
}

func (s *Store) AttachProviderSubject(_ context.Context, accountID, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return linkauth.ErrAccountNotFound
	}
	if acc.ProviderSubject != "" {
		return nil
	}
	if _, taken := s.bySubject[subject]; taken {
		return linkauth.ErrAlreadyExists
	}

	acc.ProviderSubject = subject
	acc.UpdatedAt = s.now().UTC()
	s.accounts[accountID] = acc
	s.bySubject[subject] = accountID
	return nil
}

// LinkPassword and UpdatePasswordHash check state and write under one lock.
func (s *Store) LinkPassword(_ context.Context, accountID, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return false, linkauth.ErrAccountNotFound
	}
	if acc.State != linkauth.StateOAuthUnlinked {
		return false, nil
	}

	acc.PasswordHash = passwordHash
	acc.State = linkauth.StateOAuthLinked
	acc.UpdatedAt = s.now().UTC()
	s.accounts[accountID] = acc
	return true, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, accountID, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return false, linkauth.ErrAccountNotFound
	}
	if !acc.PasswordSet() {
		return false, nil
	}

	acc.PasswordHash = passwordHash
	acc.UpdatedAt = s.now().UTC()
	s.accounts[accountID] = acc
	return true, nil
}

/*
====================================
REFRESH TOKENS
====================================
*/

func (s *Store) SaveRefreshToken(_ context.Context, t refresh.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[t.Hash] = t
	return nil
}

func (s *Store) FindRefreshToken(_ context.Context, hash string) (refresh.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[hash]
	if !ok {
		return refresh.Token{}, refresh.ErrTokenNotFound
	}
	return t, nil
}

func (s *Store) DeleteRefreshTokensByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for h, t := range s.tokens {
		if t.AccountID == accountID {
			delete(s.tokens, h)
		}
	}
	return nil
}

func (s *Store) DeleteRefreshTokenByValue(_ context.Context, hash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[hash]; !ok {
		return 0, nil
	}
	delete(s.tokens, hash)
	return 1, nil
}

func (s *Store) DeleteRefreshTokensExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for h, t := range s.tokens {
		if t.Expired(cutoff) {
			delete(s.tokens, h)
			n++
		}
	}
	return n, nil
}

// RefreshTokenCount reports how many refresh tokens accountID holds.
func (s *Store) RefreshTokenCount(accountID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tokens {
		if t.AccountID == accountID {
			n++
		}
	}
	return n
}
