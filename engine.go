package linkauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/internal/rate"
	"github.com/MrEthical07/linkauth/jwt"
	"github.com/MrEthical07/linkauth/password"
	"github.com/MrEthical07/linkauth/refresh"
)

// Engine is the identity-credential engine. It is safe for concurrent use
// once returned by Builder.Build.
type Engine struct {
	config   Config
	accounts AccountStore
	signer   *jwt.Manager
	refresh  *refresh.Manager
	exchange ExchangeStore
	hasher   PasswordHasher
	throttle *rate.Limiter
	policy   password.Policy
	logger   *slog.Logger
	audit    *auditDispatcher
	metrics  *Metrics
	now      func() time.Time

	dummyHash string
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// AccessTTL is the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration {
	return e.signer.TTL()
}

// RunRefreshSweeper deletes expired refresh tokens every
// Config.Refresh.SweepInterval until ctx is done. It returns at once when the
// interval is zero.
func (e *Engine) RunRefreshSweeper(ctx context.Context) error {
	if e.config.Refresh.SweepInterval <= 0 {
		return nil
	}
	sweeper, err := refresh.NewSweeper(e.refresh, e.config.Refresh.SweepInterval, e.logger)
	if err != nil {
		return err
	}
	sweeper.Run(ctx)
	return nil
}

// Validate checks an access token and returns its principal. Failures wrap
// ErrUnauthorized together with ErrTokenExpired or ErrTokenMalformed.
func (e *Engine) Validate(ctx context.Context, token string) (Principal, error) {
	if e == nil || e.signer == nil {
		return Principal{}, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.signer.Verify(token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, jwt.ErrExpired) {
			return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenExpired)
		}
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenMalformed)
	}

	e.metricInc(MetricValidateSuccess)
	return Principal{
		AccountID: claims.AccountID,
		Role:      claims.Role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout revokes every refresh token of accountID. Outstanding access tokens
// stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, accountID string) error {
	if err := e.refresh.RevokeAll(ctx, accountID); err != nil {
		return e.internalError(ctx, "logout", accountID, err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, nil, nil)
	return nil
}

// issueTokens revokes outstanding refresh tokens, then signs a fresh pair.
func (e *Engine) issueTokens(ctx context.Context, account Account) (AuthResult, error) {
	role := account.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}

	access, err := e.signer.Issue(account.ID, role)
	if err != nil {
		return AuthResult{}, e.internalError(ctx, "sign access token", account.ID, err)
	}

	refreshValue, _, err := e.refresh.Issue(ctx, account.ID)
	if err != nil {
		return AuthResult{}, e.internalError(ctx, "issue refresh token", account.ID, err)
	}

	e.metricInc(MetricTokensIssued)
	return AuthResult{
		AccessToken:  access,
		RefreshToken: refreshValue,
		MustLink:     !account.PasswordSet(),
		User:         account.Summary(),
	}, nil
}

// internalError logs err and wraps it for the caller. Callers map anything
// that Classify reports as KindInternal to a generic message.
func (e *Engine) internalError(ctx context.Context, op, accountID string, err error) error {
	e.logger.ErrorContext(ctx, "operation failed",
		slog.String("op", op),
		slog.String("account_id", accountID),
		slog.Any("error", err),
	)
	return fmt.Errorf("linkauth: %s: %w", op, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
