package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/internal"
	"github.com/MrEthical07/linkauth/internal/stores"
)

// Error codes carried on the frontend callback when the OAuth round trip fails.
const (
	callbackErrState    = "invalid_state"
	callbackErrProvider = "provider_error"
	callbackErrInternal = "server_error"
)

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state, err := internal.NewOpaqueToken()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.states.Save(r.Context(), state, &stores.OAuthState{}, s.stateTTL); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, s.provider.AuthURL(state), http.StatusFound)
}

// handleCallback finishes the provider round trip. The browser never sees
// tokens: it is sent to the frontend with a single-use exchange code.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if _, err := s.states.Consume(ctx, q.Get("state")); err != nil {
		if errors.Is(err, stores.ErrOAuthStateBackend) {
			s.logger.ErrorContext(ctx, "oauth state lookup failed", slog.String("error", err.Error()))
			s.redirectFrontend(w, r, "error", callbackErrInternal)
			return
		}
		s.logger.WarnContext(ctx, "oauth callback with unknown state", slog.String("error", err.Error()))
		s.redirectFrontend(w, r, "error", callbackErrState)
		return
	}

	if providerErr := q.Get("error"); providerErr != "" {
		s.logger.WarnContext(ctx, "oauth provider denied", slog.String("error", providerErr))
		s.redirectFrontend(w, r, "error", callbackErrProvider)
		return
	}

	identity, err := s.provider.Resolve(ctx, q.Get("code"))
	if err != nil {
		s.logger.WarnContext(ctx, "oauth identity resolution failed", slog.String("error", err.Error()))
		s.redirectFrontend(w, r, "error", callbackErrProvider)
		return
	}

	result, err := s.engine.CompleteOAuthLogin(ctx, identity)
	if err != nil {
		code := callbackErrInternal
		if linkauth.Classify(err) == linkauth.KindInvalidIdentity {
			code = callbackErrProvider
		}
		s.redirectFrontend(w, r, "error", code)
		return
	}

	code, err := s.engine.IssueExchangeCode(ctx, result)
	if err != nil {
		s.redirectFrontend(w, r, "error", callbackErrInternal)
		return
	}

	s.logger.InfoContext(ctx, "oauth login complete, redirecting with exchange code",
		slog.String("account_id", result.User.ID),
		slog.Bool("requires_password_set", result.MustLink),
	)
	s.redirectFrontend(w, r, "code", code)
}

func (s *Server) redirectFrontend(w http.ResponseWriter, r *http.Request, key, value string) {
	target := s.frontend + "/oauth/callback?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
