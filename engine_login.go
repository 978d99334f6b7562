package linkauth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/linkauth/internal/rate"
	"github.com/MrEthical07/linkauth/password"
)

// Register creates a LOCAL account and signs the caller in.
//
// It reports ErrInvalidInput for a malformed email or empty name,
// ErrPasswordPolicy for a password outside the length bounds and
// ErrAlreadyExists when the email is taken, whatever the origin of the
// existing account.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	if e == nil || e.accounts == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if err := validateEmail(email); err != nil || name == "" {
		return AuthResult{}, e.registerFailed(ctx, "", ErrInvalidInput)
	}
	if err := e.policy.Check(req.Password); err != nil {
		return AuthResult{}, e.registerFailed(ctx, "", ErrPasswordPolicy)
	}

	exists, err := e.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return AuthResult{}, e.internalError(ctx, "register", "", err)
	}
	if exists {
		e.metricInc(MetricRegisterDuplicate)
		return AuthResult{}, e.registerFailed(ctx, "", ErrAlreadyExists)
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return AuthResult{}, e.registerFailed(ctx, "", ErrPasswordPolicy)
		}
		return AuthResult{}, e.internalError(ctx, "hash password", "", err)
	}

	now := e.now().UTC()
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		State:        StateLocal,
		Role:         e.config.Account.DefaultRole,
		Profile:      req.Profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Lost a race with a concurrent registration of the same email.
			e.metricInc(MetricRegisterDuplicate)
			return AuthResult{}, e.registerFailed(ctx, "", ErrAlreadyExists)
		}
		return AuthResult{}, e.internalError(ctx, "create account", "", err)
	}

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, account.ID, nil, nil)
	return result, nil
}

func (e *Engine) registerFailed(ctx context.Context, accountID string, err error) error {
	e.emitAudit(ctx, auditEventRegisterFailure, false, accountID, err, nil)
	return err
}

// Login authenticates with email and password.
//
// An OAUTH_UNLINKED account has no password to check: Login then returns a
// nil error and a result with MustLink set and no tokens. Every other
// failure, including an unknown email, is ErrInvalidCredentials. With the
// throttle enabled, an email or IP past its failure budget gets
// ErrRateLimited before any password is checked.
func (e *Engine) Login(ctx context.Context, email, pw string) (AuthResult, error) {
	if e == nil || e.accounts == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := e.checkThrottle(ctx, email); err != nil {
		return AuthResult{}, err
	}

	account, err := e.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Same cost as a real comparison.
			_, _ = e.hasher.Verify(pw, e.dummyHash)
			e.recordLoginFailure(ctx, email)
			return AuthResult{}, e.loginFailed(ctx, "", ErrInvalidCredentials)
		}
		return AuthResult{}, e.internalError(ctx, "find account", "", err)
	}

	if !account.PasswordSet() {
		e.metricInc(MetricLoginMustLink)
		e.logger.WarnContext(ctx, "password login on unlinked account",
			slog.String("account_id", account.ID),
		)
		e.emitAudit(ctx, auditEventLoginMustLink, false, account.ID, nil, nil)
		return AuthResult{MustLink: true, User: account.Summary()}, nil
	}

	ok, err := e.hasher.Verify(pw, account.PasswordHash)
	if err != nil {
		return AuthResult{}, e.internalError(ctx, "verify password", account.ID, err)
	}
	if !ok {
		e.recordLoginFailure(ctx, email)
		return AuthResult{}, e.loginFailed(ctx, account.ID, ErrInvalidCredentials)
	}
	e.resetThrottle(ctx, email)
	e.upgradePasswordHash(ctx, account, pw)

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, nil, nil)
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, err, nil)
	return err
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidInput
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidInput
	}
	return nil
}

func (e *Engine) checkThrottle(ctx context.Context, email string) error {
	if e.throttle == nil {
		return nil
	}
	err := e.throttle.CheckLogin(ctx, email, ClientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricLoginRateLimited)
		e.logger.WarnContext(ctx, "login throttled",
			slog.String("ip", ClientIPFromContext(ctx)),
		)
		return e.loginFailed(ctx, "", ErrRateLimited)
	default:
		return e.internalError(ctx, "check login throttle", "", err)
	}
}

// recordLoginFailure and resetThrottle only log backend errors: the login
// outcome is already decided.
func (e *Engine) recordLoginFailure(ctx context.Context, email string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.RecordFailure(ctx, email, ClientIPFromContext(ctx)); err != nil {
		e.logger.WarnContext(ctx, "record login failure", slog.String("error", err.Error()))
	}
}

func (e *Engine) resetThrottle(ctx context.Context, email string) {
	if e.throttle == nil {
		return
	}
	if err := e.throttle.ResetLogin(ctx, email); err != nil {
		e.logger.WarnContext(ctx, "reset login throttle", slog.String("error", err.Error()))
	}
}

// upgradePasswordHash rehashes pw when the stored hash predates the current
// hasher parameters. Failures are logged; the login has already succeeded.
func (e *Engine) upgradePasswordHash(ctx context.Context, account Account, pw string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	upgrader, ok := e.hasher.(PasswordUpgrader)
	if !ok {
		return
	}
	stale, err := upgrader.NeedsUpgrade(account.PasswordHash)
	if err != nil || !stale {
		return
	}

	hash, err := e.hasher.Hash(pw)
	if err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if _, err := e.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade not saved",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.metricInc(MetricPasswordRehash)
}
