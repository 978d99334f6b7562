package linkauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/MrEthical07/linkauth/refresh"
)

// Refresh rotates a refresh token and returns a new pair. Unknown, expired,
// replayed and malformed tokens all report ErrInvalidCredentials; the cause
// is kept in the error chain for logging. Storage failures are internal
// errors.
func (e *Engine) Refresh(ctx context.Context, value string) (AuthResult, error) {
	if e == nil || e.refresh == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	accountID, err := e.refresh.Rotate(ctx, value)
	if err != nil {
		return AuthResult{}, e.refreshFailed(ctx, accountID, err)
	}

	account, err := e.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AuthResult{}, e.refreshFailed(ctx, accountID, refresh.ErrInvalid)
		}
		return AuthResult{}, e.internalError(ctx, "find account", accountID, err)
	}

	result, err := e.issueTokens(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, accountID, nil, nil)
	return result, nil
}

func (e *Engine) refreshFailed(ctx context.Context, accountID string, err error) error {
	if errors.Is(err, refresh.ErrBackend) {
		e.metricInc(MetricRefreshFailure)
		return e.internalError(ctx, "rotate refresh token", accountID, err)
	}

	event := auditEventRefreshInvalid
	switch {
	case errors.Is(err, refresh.ErrReplayDetected):
		e.metricInc(MetricReplayDetected)
		event = auditEventRefreshReplay
		e.logger.WarnContext(ctx, "refresh token replay detected",
			slog.String("account_id", accountID),
		)
	case errors.Is(err, refresh.ErrExpired):
		e.metricInc(MetricRefreshExpired)
		e.logger.InfoContext(ctx, "expired refresh token presented",
			slog.String("account_id", accountID),
		)
	}
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, event, false, accountID, err, nil)
	return errors.Join(ErrInvalidCredentials, err)
}

// IssueExchangeCode stores result under a fresh single-use code valid for
// ExchangeCodeTTL. The OAuth callback redirects the browser with this code
// instead of the tokens themselves.
func (e *Engine) IssueExchangeCode(ctx context.Context, result AuthResult) (string, error) {
	if e == nil || e.exchange == nil {
		return "", ErrEngineNotReady
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", e.internalError(ctx, "encode exchange payload", result.User.ID, err)
	}
	code, err := e.exchange.Put(ctx, payload, ExchangeCodeTTL)
	if err != nil {
		return "", e.internalError(ctx, "store exchange code", result.User.ID, err)
	}

	e.metricInc(MetricExchangeIssued)
	return code, nil
}

// ExchangeOAuthCode redeems a code from IssueExchangeCode. A code works
// once; unknown, expired and reused codes report ErrCodeExpiredOrInvalid.
func (e *Engine) ExchangeOAuthCode(ctx context.Context, code string) (AuthResult, error) {
	if e == nil || e.exchange == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	if code == "" {
		return AuthResult{}, e.exchangeFailed(ctx, ErrCodeExpiredOrInvalid)
	}

	payload, ok, err := e.exchange.Consume(ctx, code)
	if err != nil {
		e.metricInc(MetricExchangeFailure)
		return AuthResult{}, e.internalError(ctx, "consume exchange code", "", err)
	}
	if !ok {
		return AuthResult{}, e.exchangeFailed(ctx, ErrCodeExpiredOrInvalid)
	}

	var result AuthResult
	if err := json.Unmarshal(payload, &result); err != nil {
		e.metricInc(MetricExchangeFailure)
		return AuthResult{}, e.internalError(ctx, "decode exchange payload", "", err)
	}

	e.metricInc(MetricExchangeSuccess)
	e.emitAudit(ctx, auditEventExchangeSuccess, true, result.User.ID, nil, nil)
	return result, nil
}

func (e *Engine) exchangeFailed(ctx context.Context, err error) error {
	e.metricInc(MetricExchangeFailure)
	e.emitAudit(ctx, auditEventExchangeFailure, false, "", err, nil)
	return err
}
