package internaldefs

import (
	"github.com/MrEthical07/linkauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: linkauth.MetricRegisterSuccess, Name: "linkauth_register_success_total", Help: "Successful local registrations."},
	{ID: linkauth.MetricRegisterDuplicate, Name: "linkauth_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: linkauth.MetricLoginSuccess, Name: "linkauth_login_success_total", Help: "Successful password logins."},
	{ID: linkauth.MetricLoginFailure, Name: "linkauth_login_failure_total", Help: "Failed password logins."},
	{ID: linkauth.MetricLoginRateLimited, Name: "linkauth_login_rate_limited_total", Help: "Password logins refused by the attempt throttle."},
	{ID: linkauth.MetricLoginMustLink, Name: "linkauth_login_must_link_total", Help: "Password logins on accounts without a password."},
	{ID: linkauth.MetricOAuthLoginSuccess, Name: "linkauth_oauth_login_success_total", Help: "Successful OAuth logins."},
	{ID: linkauth.MetricOAuthLoginFailure, Name: "linkauth_oauth_login_failure_total", Help: "Rejected OAuth identities."},
	{ID: linkauth.MetricOAuthAccountCreated, Name: "linkauth_oauth_account_created_total", Help: "Accounts created by OAuth login."},
	{ID: linkauth.MetricOAuthAccountMatched, Name: "linkauth_oauth_account_matched_total", Help: "OAuth logins resolved to an existing account by email."},
	{ID: linkauth.MetricSetPasswordSuccess, Name: "linkauth_set_password_success_total", Help: "Passwords linked to OAuth accounts."},
	{ID: linkauth.MetricSetPasswordFailure, Name: "linkauth_set_password_failure_total", Help: "Rejected password linking attempts."},
	{ID: linkauth.MetricPasswordRehash, Name: "linkauth_password_rehash_total", Help: "Password hashes upgraded after login."},
	{ID: linkauth.MetricExchangeIssued, Name: "linkauth_exchange_issued_total", Help: "OAuth exchange codes issued."},
	{ID: linkauth.MetricExchangeSuccess, Name: "linkauth_exchange_success_total", Help: "OAuth exchange codes redeemed."},
	{ID: linkauth.MetricExchangeFailure, Name: "linkauth_exchange_failure_total", Help: "Unknown, expired or reused exchange codes."},
	{ID: linkauth.MetricRefreshSuccess, Name: "linkauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: linkauth.MetricRefreshFailure, Name: "linkauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: linkauth.MetricRefreshExpired, Name: "linkauth_refresh_expired_total", Help: "Expired refresh tokens presented."},
	{ID: linkauth.MetricReplayDetected, Name: "linkauth_replay_detected_total", Help: "Refresh tokens consumed by a concurrent caller."},
	{ID: linkauth.MetricLogout, Name: "linkauth_logout_total", Help: "Logout operations."},
	{ID: linkauth.MetricTokensIssued, Name: "linkauth_tokens_issued_total", Help: "Token pairs issued."},
	{ID: linkauth.MetricValidateSuccess, Name: "linkauth_validate_success_total", Help: "Accepted access tokens."},
	{ID: linkauth.MetricValidateFailure, Name: "linkauth_validate_failure_total", Help: "Rejected access tokens."},
}

var HistogramDefs = []HistogramDef{
	{ID: linkauth.MetricValidateLatency, Name: "linkauth_validate_latency_seconds", Help: "Access token validation latency."},
}

const AuditDroppedName = "linkauth_audit_dropped_total"
const AuditDroppedHelp = "Audit events dropped on a full dispatcher buffer."

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
