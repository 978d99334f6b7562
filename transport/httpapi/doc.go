// Package httpapi exposes a linkauth engine over HTTP.
//
// Routes:
//
//	POST /api/v1/auth/register        201, token pair
//	POST /api/v1/auth/login           token pair, or requiresPasswordSet with no tokens
//	POST /api/v1/auth/refresh         rotates {"refreshToken"}
//	POST /api/v1/auth/oauth2/token    redeems {"code"} from the OAuth callback
//	POST /api/v1/auth/set-password    Bearer, links a password to an OAuth account
//	POST /api/v1/auth/logout          Bearer, 204
//	GET  /oauth2/authorization/google redirect to Google with a fresh state
//	GET  /login/oauth2/code/google    callback, redirects to {frontend}/oauth/callback?code=
//	GET  /healthz
//	GET  /metrics                     when a metrics handler is configured
//
// Failures are written as
//
//	{"status":401,"message":"Invalid email or password","timestamp":"..."}
//
// with the message taken from linkauth.PublicMessage. Internal errors are
// logged and reported as 500 without detail.
package httpapi
