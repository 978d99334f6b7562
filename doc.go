// Package linkauth issues and manages identity credentials for an application
// with two sign-in origins: local email/password and Google OAuth. Both
// origins can be linked to one account.
//
// The [Engine] owns the token lifecycle: HS256 access tokens, opaque refresh
// tokens rotated exactly once, single-use OAuth exchange codes, and the
// account state machine
//
//	LOCAL            terminal, password set at registration
//	OAUTH_UNLINKED → OAUTH_LINKED   only through Engine.SetPassword
//
// Every account holds at most one live refresh token. Issuing a pair revokes
// the previous one, so the most recent sign-in wins.
//
// # Wiring
//
// Build an engine with [New]:
//
//	engine, err := linkauth.New().
//		WithConfig(cfg).
//		WithCredentialStore(postgres.New(db)).
//		WithExchangeStore(exchange.NewRedisStore(rdb, "")).
//		WithLogger(logger).
//		Build()
//
// Storage, password hashing and the OAuth provider are collaborators behind
// small interfaces ([CredentialStore], [PasswordHasher], [ExchangeStore]).
// Sub-packages provide the implementations: store/memory, store/postgres,
// password, exchange and oauth/google. transport/httpapi exposes the engine
// over HTTP.
//
// # Errors
//
// Operations return sentinel errors matched with errors.Is. [Classify] and
// [PublicMessage] map them onto a stable, user-safe message; anything
// unclassified is reported as "An unexpected error occurred" and logged in
// full at error level.
package linkauth
