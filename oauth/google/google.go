// Package google resolves Google sign-ins into linkauth.OAuthIdentity values:
// it builds the consent URL, exchanges the authorization code and reads the
// userinfo endpoint.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/MrEthical07/linkauth"
)

const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var DefaultScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

var (
	ErrInvalidCode     = errors.New("google: invalid authorization code")
	ErrUnverifiedEmail = errors.New("google: account email is not verified")
	ErrNoEmail         = errors.New("google: account has no email")
)

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// VerifiedOnly rejects accounts whose email Google has not verified.
	VerifiedOnly bool
}

// Provider runs the Google authorization-code flow and maps the userinfo
// response onto a linkauth.OAuthIdentity.
type Provider struct {
	conf         *oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
	verifiedOnly bool
}

// Option customises a Provider, mostly for tests.
type Option func(*Provider)

// WithEndpoint replaces the Google authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.conf.Endpoint = endpoint
	}
}

// WithUserInfoURL replaces the OpenID userinfo endpoint.
func WithUserInfoURL(url string) Option {
	return func(p *Provider) {
		p.userInfoURL = url
	}
}

// WithHTTPClient sets the client for both the token exchange and the
// userinfo request.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// New returns a Provider for cfg.
func New(cfg Config, opts ...Option) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	p := &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     googleoauth.Endpoint,
		},
		userInfoURL:  DefaultUserInfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		verifiedOnly: cfg.VerifiedOnly,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL is the consent-screen URL carrying state.
func (p *Provider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// Resolve exchanges code and returns the verified identity behind it.
func (p *Provider) Resolve(ctx context.Context, code string) (linkauth.OAuthIdentity, error) {
	if strings.TrimSpace(code) == "" {
		return linkauth.OAuthIdentity{}, ErrInvalidCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return linkauth.OAuthIdentity{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	u, err := p.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return linkauth.OAuthIdentity{}, fmt.Errorf("fetch google user: %w", err)
	}
	if u.Email == "" {
		return linkauth.OAuthIdentity{}, ErrNoEmail
	}
	if p.verifiedOnly && !u.VerifiedEmail {
		return linkauth.OAuthIdentity{}, ErrUnverifiedEmail
	}

	return linkauth.OAuthIdentity{
		Subject:       u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.VerifiedEmail,
	}, nil
}

func (p *Provider) fetchUser(ctx context.Context, accessToken string) (*gUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google api returned status %d", resp.StatusCode)
	}

	var user gUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type gUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}
