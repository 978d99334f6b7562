package linkauth_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/store/memory"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() linkauth.Config {
	cfg := linkauth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("s"), 32)
	cfg.Password.BcryptCost = bcrypt.MinCost
	return cfg
}

type testEnv struct {
	engine *linkauth.Engine
	store  *memory.Store
	clock  *testClock
}

func newTestEnv(t *testing.T, mutate ...func(*linkauth.Builder)) *testEnv {
	t.Helper()

	clock := newTestClock()
	store := memory.New()
	b := linkauth.New().
		WithConfig(testConfig()).
		WithCredentialStore(store).
		WithClock(clock.Now)
	for _, m := range mutate {
		m(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, clock: clock}
}

func (env *testEnv) register(t *testing.T, email string) linkauth.AuthResult {
	t.Helper()
	res, err := env.engine.Register(context.Background(), linkauth.RegisterRequest{
		Email:    email,
		Password: testPassword,
		Name:     "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return res
}

func (env *testEnv) oauthLogin(t *testing.T, subject, email string) linkauth.AuthResult {
	t.Helper()
	res, err := env.engine.CompleteOAuthLogin(context.Background(), linkauth.OAuthIdentity{
		Subject:       subject,
		Email:         email,
		Name:          "Grace Hopper",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("oauth login failed: %v", err)
	}
	return res
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	env := newTestEnv(t)

	res := env.register(t, "  Ada@Example.com ")
	if !res.HasTokens() {
		t.Fatal("expected access and refresh tokens")
	}
	if res.MustLink {
		t.Fatal("local account must not require linking")
	}
	if res.User.Email != "ada@example.com" || res.User.Provider != linkauth.OriginLocal || !res.User.PasswordSet {
		t.Fatalf("unexpected summary: %+v", res.User)
	}

	principal, err := env.engine.Validate(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if principal.AccountID != res.User.ID || principal.Role != linkauth.DefaultRole {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	_, err := env.engine.Register(context.Background(), linkauth.RegisterRequest{
		Email:    "ADA@example.com",
		Password: testPassword,
		Name:     "Other",
	})
	if !errors.Is(err, linkauth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterRejectsOAuthOwnedEmail(t *testing.T) {
	env := newTestEnv(t)
	env.oauthLogin(t, "g-1", "grace@example.com")

	_, err := env.engine.Register(context.Background(), linkauth.RegisterRequest{
		Email:    "grace@example.com",
		Password: testPassword,
		Name:     "Grace",
	})
	if !errors.Is(err, linkauth.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  linkauth.RegisterRequest
		want error
	}{
		{"bad email", linkauth.RegisterRequest{Email: "not-an-email", Password: testPassword, Name: "A"}, linkauth.ErrInvalidInput},
		{"missing name", linkauth.RegisterRequest{Email: "a@example.com", Password: testPassword, Name: " "}, linkauth.ErrInvalidInput},
		{"short password", linkauth.RegisterRequest{Email: "a@example.com", Password: "short", Name: "A"}, linkauth.ErrPasswordPolicy},
		{"long password", linkauth.RegisterRequest{Email: "a@example.com", Password: strings.Repeat("p", 73), Name: "A"}, linkauth.ErrPasswordPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.engine.Register(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoginFailuresAreUndifferentiated(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")
	ctx := context.Background()

	_, wrongPassword := env.engine.Login(ctx, "ada@example.com", "wrong-password-here")
	_, unknownEmail := env.engine.Login(ctx, "nobody@example.com", testPassword)

	if !errors.Is(wrongPassword, linkauth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, linkauth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
	if linkauth.PublicMessage(wrongPassword) != linkauth.PublicMessage(unknownEmail) {
		t.Fatal("public messages must not distinguish unknown email from wrong password")
	}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	res, err := env.engine.Login(context.Background(), "ADA@example.com", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !res.HasTokens() || res.MustLink {
		t.Fatalf("unexpected login result: %+v", res)
	}
}

func TestLoginOnUnlinkedAccountRequiresLinking(t *testing.T) {
	env := newTestEnv(t)
	created := env.oauthLogin(t, "g-1", "grace@example.com")

	res, err := env.engine.Login(context.Background(), "grace@example.com", "anything-at-all")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !res.MustLink || res.HasTokens() {
		t.Fatalf("expected must-link result without tokens, got %+v", res)
	}
	if res.User.ID != created.User.ID {
		t.Fatalf("summary for wrong account: %+v", res.User)
	}
	if got := env.engine.MetricsSnapshot().Counters[linkauth.MetricLoginMustLink]; got != 1 {
		t.Fatalf("expected must-link counter 1, got %d", got)
	}
}

func TestOAuthLoginCreatesUnlinkedAccount(t *testing.T) {
	env := newTestEnv(t)

	res := env.oauthLogin(t, "g-1", "Grace@Example.com")
	if !res.HasTokens() {
		t.Fatal("oauth login must issue tokens")
	}
	if !res.MustLink || res.User.PasswordSet || res.User.Provider != linkauth.OriginGoogle {
		t.Fatalf("unexpected summary: %+v", res)
	}

	again := env.oauthLogin(t, "g-1", "grace@example.com")
	if again.User.ID != res.User.ID {
		t.Fatal("second login by subject must resolve the same account")
	}
}

func TestOAuthLoginNameFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.CompleteOAuthLogin(context.Background(), linkauth.OAuthIdentity{
		Subject: "g-9",
		Email:   "noname@example.com",
	})
	if err != nil {
		t.Fatalf("oauth login failed: %v", err)
	}
	if res.User.Name != "noname@example.com" {
		t.Fatalf("expected email as name, got %q", res.User.Name)
	}
}

func TestOAuthLoginMatchesLocalAccountByEmail(t *testing.T) {
	env := newTestEnv(t)
	local := env.register(t, "ada@example.com")

	res := env.oauthLogin(t, "g-1", "ada@example.com")
	if res.User.ID != local.User.ID {
		t.Fatal("expected oauth login to resolve the local account")
	}
	if res.User.Provider != linkauth.OriginLocal || !res.User.PasswordSet || res.MustLink {
		t.Fatalf("local account state must be untouched: %+v", res.User)
	}

	acc, err := env.store.FindAccountByProviderSubject(context.Background(), "g-1")
	if err != nil || acc.ID != local.User.ID {
		t.Fatalf("subject not attached: %+v, %v", acc, err)
	}

	if _, err := env.engine.Login(context.Background(), "ada@example.com", testPassword); err != nil {
		t.Fatalf("password login must keep working after oauth match: %v", err)
	}
}

func TestOAuthLoginRejectsIncompleteIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []linkauth.OAuthIdentity{
		{Subject: "", Email: "a@example.com"},
		{Subject: "g-1", Email: " "},
	} {
		if _, err := env.engine.CompleteOAuthLogin(ctx, id); !errors.Is(err, linkauth.ErrInvalidIdentity) {
			t.Fatalf("expected ErrInvalidIdentity for %+v, got %v", id, err)
		}
	}
}

func TestSetPasswordLinksAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.oauthLogin(t, "g-1", "grace@example.com")

	res, err := env.engine.SetPassword(ctx, created.User.ID, testPassword, testPassword)
	if err != nil {
		t.Fatalf("set password failed: %v", err)
	}
	if !res.HasTokens() || res.MustLink || !res.User.PasswordSet || res.User.Provider != linkauth.OriginGoogle {
		t.Fatalf("unexpected result: %+v", res)
	}

	acc, _ := env.store.FindAccountByID(ctx, created.User.ID)
	if acc.State != linkauth.StateOAuthLinked {
		t.Fatalf("expected OAUTH_LINKED, got %v", acc.State)
	}

	if _, err := env.engine.Login(ctx, "grace@example.com", testPassword); err != nil {
		t.Fatalf("password login after linking failed: %v", err)
	}

	_, err = env.engine.SetPassword(ctx, created.User.ID, "another-password-1", "another-password-1")
	if !errors.Is(err, linkauth.ErrPasswordAlreadySet) {
		t.Fatalf("expected ErrPasswordAlreadySet, got %v", err)
	}
}

func TestSetPasswordErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	local := env.register(t, "ada@example.com")
	unlinked := env.oauthLogin(t, "g-1", "grace@example.com")

	tests := []struct {
		name      string
		accountID string
		pw        string
		confirm   string
		want      error
	}{
		{"mismatch", unlinked.User.ID, testPassword, testPassword + "x", linkauth.ErrPasswordMismatch},
		{"unknown account", "missing", testPassword, testPassword, linkauth.ErrInvalidCredentials},
		{"local account", local.User.ID, testPassword, testPassword, linkauth.ErrPasswordAlreadySet},
		{"policy", unlinked.User.ID, "short", "short", linkauth.ErrPasswordPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.engine.SetPassword(ctx, tt.accountID, tt.pw, tt.confirm); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	acc, _ := env.store.FindAccountByID(ctx, unlinked.User.ID)
	if acc.State != linkauth.StateOAuthUnlinked || acc.PasswordHash != "" {
		t.Fatalf("failed attempts must not change the account: %+v", acc)
	}
}

func TestSetPasswordConcurrencySingleWinner(t *testing.T) {
	env := newTestEnv(t)
	created := env.oauthLogin(t, "g-1", "grace@example.com")

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.SetPassword(context.Background(), created.User.ID, testPassword, testPassword)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, linkauth.ErrPasswordAlreadySet) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one success, got %d", success)
	}
}

func TestRefreshRotates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.register(t, "ada@example.com")

	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token must change on rotation")
	}
	if second.User.ID != first.User.ID {
		t.Fatal("rotation resolved the wrong account")
	}

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, linkauth.ErrInvalidCredentials) {
		t.Fatalf("reused token: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, "garbage"); !errors.Is(err, linkauth.ErrInvalidCredentials) {
		t.Fatalf("garbage token: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	env := newTestEnv(t)
	res := env.register(t, "ada@example.com")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := env.engine.Refresh(context.Background(), res.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success, fail := 0, 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, linkauth.ErrInvalidCredentials) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}
	if got := env.store.RefreshTokenCount(res.User.ID); got != 1 {
		t.Fatalf("expected one live refresh token, got %d", got)
	}
}

func TestRefreshExpiredDeletesToken(t *testing.T) {
	env := newTestEnv(t)
	res := env.register(t, "ada@example.com")

	env.clock.Advance(7*24*time.Hour + time.Second)

	if _, err := env.engine.Refresh(context.Background(), res.RefreshToken); !errors.Is(err, linkauth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := env.store.RefreshTokenCount(res.User.ID); got != 0 {
		t.Fatalf("expired token must be deleted, %d left", got)
	}
	if got := env.engine.MetricsSnapshot().Counters[linkauth.MetricRefreshExpired]; got != 1 {
		t.Fatalf("expected expired counter 1, got %d", got)
	}
}

func TestLatestIssuanceWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.register(t, "ada@example.com")

	if _, err := env.engine.Login(ctx, "ada@example.com", testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, linkauth.ErrInvalidCredentials) {
		t.Fatalf("earlier session must be revoked, got %v", err)
	}
	if got := env.store.RefreshTokenCount(first.User.ID); got != 1 {
		t.Fatalf("expected a single live refresh token, got %d", got)
	}
}

func TestExchangeCodeSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.oauthLogin(t, "g-1", "grace@example.com")

	code, err := env.engine.IssueExchangeCode(ctx, res)
	if err != nil {
		t.Fatalf("issue exchange code failed: %v", err)
	}

	got, err := env.engine.ExchangeOAuthCode(ctx, code)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if got != res {
		t.Fatalf("exchanged result differs:\n got %+v\nwant %+v", got, res)
	}

	if _, err := env.engine.ExchangeOAuthCode(ctx, code); !errors.Is(err, linkauth.ErrCodeExpiredOrInvalid) {
		t.Fatalf("second exchange: expected ErrCodeExpiredOrInvalid, got %v", err)
	}
	if _, err := env.engine.ExchangeOAuthCode(ctx, "unknown"); !errors.Is(err, linkauth.ErrCodeExpiredOrInvalid) {
		t.Fatalf("unknown code: expected ErrCodeExpiredOrInvalid, got %v", err)
	}
}

func TestExchangeCodeExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.oauthLogin(t, "g-1", "grace@example.com")

	code, err := env.engine.IssueExchangeCode(ctx, res)
	if err != nil {
		t.Fatalf("issue exchange code failed: %v", err)
	}
	env.clock.Advance(linkauth.ExchangeCodeTTL + time.Second)

	if _, err := env.engine.ExchangeOAuthCode(ctx, code); !errors.Is(err, linkauth.ErrCodeExpiredOrInvalid) {
		t.Fatalf("expected ErrCodeExpiredOrInvalid, got %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "ada@example.com")

	if err := env.engine.Logout(ctx, res.User.ID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); !errors.Is(err, linkauth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after logout, got %v", err)
	}
	if _, err := env.engine.Validate(ctx, res.AccessToken); err != nil {
		t.Fatalf("access token stays valid until expiry: %v", err)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Validate(context.Background(), "not.a.jwt")
	if !errors.Is(err, linkauth.ErrUnauthorized) || !errors.Is(err, linkauth.ErrTokenMalformed) {
		t.Fatalf("expected ErrUnauthorized wrapping ErrTokenMalformed, got %v", err)
	}
	if linkauth.Classify(err) != linkauth.KindUnauthorized {
		t.Fatalf("unexpected kind %v", linkauth.Classify(err))
	}
}

func TestAuditEventsCarryRequestContext(t *testing.T) {
	sink := linkauth.NewChannelSink(16)
	env := newTestEnv(t, func(b *linkauth.Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 16
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	ctx := linkauth.WithUserAgent(linkauth.WithClientIP(context.Background(), "198.51.100.33"), "test-agent")
	_, _ = env.engine.Login(ctx, "nobody@example.com", testPassword)

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_failure" || ev.Success {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.IP != "198.51.100.33" || ev.UserAgent != "test-agent" {
			t.Fatalf("request context missing: %+v", ev)
		}
		if ev.Error != "invalid_credentials" {
			t.Fatalf("unexpected error code %q", ev.Error)
		}
		if strings.Contains(ev.Error, testPassword) {
			t.Fatal("password leaked into audit event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event")
	}
}

func TestMetricsCountOutcomes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.register(t, "ada@example.com")
	_, _ = env.engine.Login(ctx, "ada@example.com", "wrong-password-here")
	_, _ = env.engine.Refresh(ctx, res.RefreshToken)

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[linkauth.MetricRegisterSuccess] != 1 {
		t.Fatalf("register success = %d", snap.Counters[linkauth.MetricRegisterSuccess])
	}
	if snap.Counters[linkauth.MetricLoginFailure] != 1 {
		t.Fatalf("login failure = %d", snap.Counters[linkauth.MetricLoginFailure])
	}
	if snap.Counters[linkauth.MetricRefreshSuccess] != 1 {
		t.Fatalf("refresh success = %d", snap.Counters[linkauth.MetricRefreshSuccess])
	}
	if snap.Counters[linkauth.MetricTokensIssued] != 2 {
		t.Fatalf("tokens issued = %d", snap.Counters[linkauth.MetricTokensIssued])
	}
}
