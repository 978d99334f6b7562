package linkauth_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/store/memory"
)

// ExampleEngine_SetPassword walks an OAuth-only account through linking.
func ExampleEngine_SetPassword() {
	cfg := linkauth.DefaultConfig()
	cfg.JWT.Secret = bytes.Repeat([]byte("x"), 32)
	cfg.Password.BcryptCost = 4

	engine, err := linkauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	ctx := context.Background()
	oauth, _ := engine.CompleteOAuthLogin(ctx, linkauth.OAuthIdentity{
		Subject:       "google-sub-1",
		Email:         "grace@example.com",
		Name:          "Grace",
		EmailVerified: true,
	})
	fmt.Println("after oauth, must link:", oauth.MustLink)

	login, _ := engine.Login(ctx, "grace@example.com", "a-long-password")
	fmt.Println("password login has tokens:", login.HasTokens())

	linked, _ := engine.SetPassword(ctx, oauth.User.ID, "a-long-password", "a-long-password")
	fmt.Println("after linking, must link:", linked.MustLink)

	login, _ = engine.Login(ctx, "grace@example.com", "a-long-password")
	fmt.Println("password login has tokens:", login.HasTokens())

	// Output:
	// after oauth, must link: true
	// password login has tokens: false
	// after linking, must link: false
	// password login has tokens: true
}

func ExamplePublicMessage() {
	_, err := linkauth.New().Build()
	fmt.Println(linkauth.Classify(err))
	fmt.Println(linkauth.PublicMessage(linkauth.ErrPasswordMismatch))
	// Output:
	// internal
	// Passwords do not match
}
