package linkauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/linkauth/password"
)

// CompleteOAuthLogin signs in a provider identity. The account is resolved
// by provider subject, then by email; a miss on both creates an
// OAUTH_UNLINKED account. Matching an existing account by email never
// changes its state, and the subject is attached only when none is
// recorded.
func (e *Engine) CompleteOAuthLogin(ctx context.Context, identity OAuthIdentity) (AuthResult, error) {
	if e == nil || e.accounts == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	subject := strings.TrimSpace(identity.Subject)
	email := normalizeEmail(identity.Email)
	if subject == "" || email == "" {
		return AuthResult{}, e.oauthFailed(ctx, "", ErrInvalidIdentity)
	}

	account, err := e.resolveOAuthAccount(ctx, subject, email, strings.TrimSpace(identity.Name))
	if err != nil {
		return AuthResult{}, err
	}

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricOAuthLoginSuccess)
	e.emitAudit(ctx, auditEventOAuthLoginSuccess, true, account.ID, nil, func() map[string]string {
		return map[string]string{"state": account.State.String()}
	})
	return result, nil
}

func (e *Engine) resolveOAuthAccount(ctx context.Context, subject, email, name string) (Account, error) {
	account, err := e.accounts.FindAccountByProviderSubject(ctx, subject)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, e.internalError(ctx, "find account by subject", "", err)
	}

	account, err = e.accounts.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return e.matchByEmail(ctx, account, subject)
	case !errors.Is(err, ErrAccountNotFound):
		return Account{}, e.internalError(ctx, "find account by email", "", err)
	}

	if name == "" {
		name = email
	}
	now := e.now().UTC()
	account = Account{
		ID:              uuid.NewString(),
		Email:           email,
		Name:            name,
		State:           StateOAuthUnlinked,
		ProviderSubject: subject,
		Role:            e.config.Account.DefaultRole,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return Account{}, e.internalError(ctx, "create account", "", err)
		}
		// A concurrent callback or registration created the email first.
		existing, findErr := e.accounts.FindAccountByEmail(ctx, email)
		if findErr != nil {
			return Account{}, e.internalError(ctx, "find account by email", "", findErr)
		}
		return e.matchByEmail(ctx, existing, subject)
	}

	e.metricInc(MetricOAuthAccountCreated)
	e.logger.InfoContext(ctx, "oauth account created", slog.String("account_id", account.ID))
	return account, nil
}

func (e *Engine) matchByEmail(ctx context.Context, account Account, subject string) (Account, error) {
	e.metricInc(MetricOAuthAccountMatched)
	if account.ProviderSubject != "" {
		return account, nil
	}
	if err := e.accounts.AttachProviderSubject(ctx, account.ID, subject); err != nil {
		return Account{}, e.internalError(ctx, "attach provider subject", account.ID, err)
	}
	account.ProviderSubject = subject
	return account, nil
}

func (e *Engine) oauthFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricOAuthLoginFailure)
	e.emitAudit(ctx, auditEventOAuthLoginFailure, false, accountID, err, nil)
	return err
}

// SetPassword links a password to an OAUTH_UNLINKED account and returns a
// fresh token pair. Of several concurrent calls for the same account exactly
// one succeeds; the others get ErrPasswordAlreadySet.
func (e *Engine) SetPassword(ctx context.Context, accountID, pw, confirm string) (AuthResult, error) {
	if e == nil || e.accounts == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	if pw != confirm {
		return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrPasswordMismatch)
	}

	account, err := e.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrInvalidCredentials)
		}
		return AuthResult{}, e.internalError(ctx, "find account", accountID, err)
	}
	if account.PasswordSet() {
		return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrPasswordAlreadySet)
	}
	if err := e.policy.Check(pw); err != nil {
		return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrPasswordPolicy)
	}

	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrPasswordPolicy)
		}
		return AuthResult{}, e.internalError(ctx, "hash password", accountID, err)
	}

	linked, err := e.accounts.LinkPassword(ctx, accountID, hash)
	if err != nil {
		return AuthResult{}, e.internalError(ctx, "link password", accountID, err)
	}
	if !linked {
		return AuthResult{}, e.setPasswordFailed(ctx, accountID, ErrPasswordAlreadySet)
	}

	account.PasswordHash = hash
	account.State = StateOAuthLinked
	account.UpdatedAt = e.now().UTC()

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricSetPasswordSuccess)
	e.emitAudit(ctx, auditEventSetPasswordSuccess, true, accountID, nil, nil)
	return result, nil
}

func (e *Engine) setPasswordFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricSetPasswordFailure)
	e.emitAudit(ctx, auditEventSetPasswordFailure, false, accountID, err, nil)
	return err
}
