package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/linkauth"
)

// ClientContext copies the remote address and User-Agent into the request
// context for audit events. Run it after any proxy-header rewriting such as
// chi's RealIP.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		ctx := linkauth.WithClientIP(r.Context(), ip)
		ctx = linkauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
