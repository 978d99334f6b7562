package linkauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/linkauth/refresh"
)

const (
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterFailure    = "register_failure"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginMustLink      = "login_must_link"
	auditEventOAuthLoginSuccess  = "oauth_login_success"
	auditEventOAuthLoginFailure  = "oauth_login_failure"
	auditEventSetPasswordSuccess = "set_password_success"
	auditEventSetPasswordFailure = "set_password_failure"
	auditEventExchangeSuccess    = "exchange_code_success"
	auditEventExchangeFailure    = "exchange_code_failure"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshReplay      = "refresh_replay_detected"
	auditEventLogout             = "logout"
)

// AuditErrorCode is the error field of an AuditEvent.
type AuditErrorCode string

const (
	auditErrAlreadyExists      AuditErrorCode = "already_exists"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrPasswordAlreadySet AuditErrorCode = "password_already_set"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrInvalidIdentity    AuditErrorCode = "invalid_identity"
	auditErrRefreshExpired     AuditErrorCode = "refresh_expired"
	auditErrRefreshReplay      AuditErrorCode = "refresh_replay"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// refresh causes first: they are also reported as ErrInvalidCredentials.
	switch {
	case errors.Is(err, refresh.ErrReplayDetected):
		return auditErrRefreshReplay
	case errors.Is(err, refresh.ErrExpired):
		return auditErrRefreshExpired
	case errors.Is(err, refresh.ErrInvalid):
		return auditErrInvalidCredentials
	case errors.Is(err, refresh.ErrBackend):
		return auditErrUnavailable
	}

	switch Classify(err) {
	case KindAlreadyExists:
		return auditErrAlreadyExists
	case KindInvalidCredentials:
		return auditErrInvalidCredentials
	case KindPasswordMismatch:
		return auditErrPasswordMismatch
	case KindPasswordAlreadySet:
		return auditErrPasswordAlreadySet
	case KindPasswordPolicy:
		return auditErrPasswordPolicy
	case KindCodeExpiredOrInvalid:
		return auditErrCodeInvalid
	case KindInvalidIdentity:
		return auditErrInvalidIdentity
	case KindUnauthorized:
		return auditErrUnauthorized
	case KindInvalidInput:
		return auditErrInvalidInput
	case KindRateLimited:
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}
