package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/middleware"
)

// DefaultStateTTL bounds the time between the provider redirect and its
// callback.
const DefaultStateTTL = 10 * time.Minute

// Engine is the subset of *linkauth.Engine served over HTTP.
type Engine interface {
	Register(ctx context.Context, req linkauth.RegisterRequest) (linkauth.AuthResult, error)
	Login(ctx context.Context, email, password string) (linkauth.AuthResult, error)
	SetPassword(ctx context.Context, accountID, password, confirm string) (linkauth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (linkauth.AuthResult, error)
	Logout(ctx context.Context, accountID string) error
	CompleteOAuthLogin(ctx context.Context, identity linkauth.OAuthIdentity) (linkauth.AuthResult, error)
	IssueExchangeCode(ctx context.Context, result linkauth.AuthResult) (string, error)
	ExchangeOAuthCode(ctx context.Context, code string) (linkauth.AuthResult, error)
	Validate(ctx context.Context, token string) (linkauth.Principal, error)
}

// OAuthProvider is satisfied by *google.Provider.
type OAuthProvider interface {
	AuthURL(state string) string
	Resolve(ctx context.Context, code string) (linkauth.OAuthIdentity, error)
}

// StateStore is satisfied by *stores.OAuthStateStore.
type StateStore interface {
	Save(ctx context.Context, state string, record *stores.OAuthState, ttl time.Duration) error
	Consume(ctx context.Context, state string) (*stores.OAuthState, error)
}

// Config wires optional parts of the API.
type Config struct {
	// FrontendURL receives the browser after the OAuth callback.
	FrontendURL string
	StateTTL    time.Duration
	// Provider and States are both required to mount the OAuth routes.
	Provider OAuthProvider
	States   StateStore
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable it only behind a proxy that
	// overwrites those headers; otherwise clients choose their own IP.
	TrustProxyHeaders bool
	Logger            *slog.Logger
}

// Server adapts an Engine to HTTP.
type Server struct {
	engine   Engine
	provider OAuthProvider
	states   StateStore
	frontend string
	stateTTL time.Duration
	metrics  http.Handler
	trustXFF bool
	logger   *slog.Logger
	now      func() time.Time
}

var errNilEngine = errors.New("httpapi: nil engine")

// New validates cfg and returns a Server. Call Router to serve it.
func New(engine Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, errNilEngine
	}
	if (cfg.Provider == nil) != (cfg.States == nil) {
		return nil, errors.New("httpapi: oauth provider and state store must be configured together")
	}
	if cfg.Provider != nil && cfg.FrontendURL == "" {
		return nil, errors.New("httpapi: frontend url is required for oauth")
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		engine:   engine,
		provider: cfg.Provider,
		states:   cfg.States,
		frontend: strings.TrimRight(cfg.FrontendURL, "/"),
		stateTTL: cfg.StateTTL,
		metrics:  cfg.Metrics,
		trustXFF: cfg.TrustProxyHeaders,
		logger:   logger.With(slog.String("component", "httpapi")),
		now:      time.Now,
	}, nil
}

// Router builds the chi router for every route in the package doc.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	if s.trustXFF {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1/auth", func(auth chi.Router) {
		auth.Post("/register", s.handleRegister)
		auth.Post("/login", s.handleLogin)
		auth.Post("/refresh", s.handleRefresh)
		auth.Post("/oauth2/token", s.handleExchange)

		auth.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAccess(s.engine, s.writeError))
			protected.Post("/set-password", s.handleSetPassword)
			protected.Post("/logout", s.handleLogout)
		})
	})

	if s.provider != nil {
		r.Get("/oauth2/authorization/google", s.handleAuthorize)
		r.Get("/login/oauth2/code/google", s.handleCallback)
	}

	return r
}
