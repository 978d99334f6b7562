package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/refresh"
)

func unlinkedAccount(id, email, subject string) linkauth.Account {
	return linkauth.Account{
		ID:              id,
		Email:           email,
		Name:            "Ada",
		State:           linkauth.StateOAuthUnlinked,
		ProviderSubject: subject,
		Role:            linkauth.DefaultRole,
	}
}

func TestCreateAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateAccount(ctx, unlinkedAccount("a1", "ada@example.com", "g-1")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	byEmail, err := s.FindAccountByEmail(ctx, "ada@example.com")
	if err != nil || byEmail.ID != "a1" {
		t.Fatalf("FindAccountByEmail = %+v, %v", byEmail, err)
	}
	bySubject, err := s.FindAccountByProviderSubject(ctx, "g-1")
	if err != nil || bySubject.ID != "a1" {
		t.Fatalf("FindAccountByProviderSubject = %+v, %v", bySubject, err)
	}
	exists, err := s.ExistsByEmail(ctx, "ada@example.com")
	if err != nil || !exists {
		t.Fatalf("ExistsByEmail = %v, %v", exists, err)
	}

	if _, err := s.FindAccountByID(ctx, "missing"); !errors.Is(err, linkauth.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateAccount(ctx, unlinkedAccount("a1", "ada@example.com", "")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	err := s.CreateAccount(ctx, unlinkedAccount("a2", "ada@example.com", ""))
	if !errors.Is(err, linkauth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAttachProviderSubjectKeepsExisting(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, unlinkedAccount("a1", "ada@example.com", "g-1"))

	if err := s.AttachProviderSubject(ctx, "a1", "g-2"); err != nil {
		t.Fatalf("AttachProviderSubject: %v", err)
	}
	acc, _ := s.FindAccountByID(ctx, "a1")
	if acc.ProviderSubject != "g-1" {
		t.Fatalf("subject overwritten: %q", acc.ProviderSubject)
	}
}

func TestLinkPasswordSingleWinner(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, unlinkedAccount("a1", "ada@example.com", "g-1"))

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.LinkPassword(ctx, "a1", "hash")
			if err != nil {
				t.Errorf("LinkPassword: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
	acc, _ := s.FindAccountByID(ctx, "a1")
	if acc.State != linkauth.StateOAuthLinked || acc.PasswordHash != "hash" {
		t.Fatalf("unexpected account after link: %+v", acc)
	}
}

func TestLinkPasswordRefusesLocalAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	acc := unlinkedAccount("a1", "ada@example.com", "")
	acc.State = linkauth.StateLocal
	acc.PasswordHash = "original"
	_ = s.CreateAccount(ctx, acc)

	ok, err := s.LinkPassword(ctx, "a1", "other")
	if err != nil || ok {
		t.Fatalf("LinkPassword = %v, %v", ok, err)
	}
	got, _ := s.FindAccountByID(ctx, "a1")
	if got.PasswordHash != "original" {
		t.Fatalf("hash changed: %q", got.PasswordHash)
	}
}

func TestRefreshTokenDeleteByValueOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	tok := refresh.Token{Hash: "h1", AccountID: "a1", ExpiresAt: time.Now().Add(time.Hour)}
	_ = s.SaveRefreshToken(ctx, tok)

	n, err := s.DeleteRefreshTokenByValue(ctx, "h1")
	if err != nil || n != 1 {
		t.Fatalf("first delete = %d, %v", n, err)
	}
	n, err = s.DeleteRefreshTokenByValue(ctx, "h1")
	if err != nil || n != 0 {
		t.Fatalf("second delete = %d, %v", n, err)
	}
	if _, err := s.FindRefreshToken(ctx, "h1"); !errors.Is(err, refresh.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestDeleteExpiredAndByAccount(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	_ = s.SaveRefreshToken(ctx, refresh.Token{Hash: "old", AccountID: "a1", ExpiresAt: now.Add(-time.Minute)})
	_ = s.SaveRefreshToken(ctx, refresh.Token{Hash: "live", AccountID: "a1", ExpiresAt: now.Add(time.Hour)})
	_ = s.SaveRefreshToken(ctx, refresh.Token{Hash: "other", AccountID: "a2", ExpiresAt: now.Add(time.Hour)})

	n, err := s.DeleteRefreshTokensExpiredBefore(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteRefreshTokensExpiredBefore = %d, %v", n, err)
	}
	if err := s.DeleteRefreshTokensByAccount(ctx, "a1"); err != nil {
		t.Fatalf("DeleteRefreshTokensByAccount: %v", err)
	}
	if got := s.RefreshTokenCount("a1"); got != 0 {
		t.Fatalf("a1 still holds %d tokens", got)
	}
	if got := s.RefreshTokenCount("a2"); got != 1 {
		t.Fatalf("a2 holds %d tokens, want 1", got)
	}
}

func TestUpdatePasswordHashRequiresPassword(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateAccount(ctx, unlinkedAccount("a1", "grace@example.com", "g-1"))
	local := unlinkedAccount("a2", "ada@example.com", "")
	local.State = linkauth.StateLocal
	local.PasswordHash = "old"
	_ = s.CreateAccount(ctx, local)

	ok, err := s.UpdatePasswordHash(ctx, "a1", "new")
	if err != nil || ok {
		t.Fatalf("unlinked UpdatePasswordHash = %v, %v", ok, err)
	}
	if got, _ := s.FindAccountByID(ctx, "a1"); got.PasswordHash != "" || got.State != linkauth.StateOAuthUnlinked {
		t.Fatalf("unlinked account changed: %+v", got)
	}

	ok, err = s.UpdatePasswordHash(ctx, "a2", "new")
	if err != nil || !ok {
		t.Fatalf("local UpdatePasswordHash = %v, %v", ok, err)
	}
	if got, _ := s.FindAccountByID(ctx, "a2"); got.PasswordHash != "new" || got.State != linkauth.StateLocal {
		t.Fatalf("local account not updated: %+v", got)
	}

	if _, err := s.UpdatePasswordHash(ctx, "missing", "new"); !errors.Is(err, linkauth.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
