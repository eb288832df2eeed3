package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const outboundTimeout = 30 * time.Second

// DefaultGoogleScopes are requested on every Google consent flow. The
// OIDC scopes identify the account; the rest unlock the hub's Gmail,
// Calendar and Contacts integrations.
var DefaultGoogleScopes = []string{
	oidc.ScopeOpenID,
	"email",
	"profile",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/contacts.readonly",
}

// GoogleProvider implements the Google OAuth 2.0 / OIDC flow: consent
// URL construction, code exchange, ID-token verification and access
// token refresh. It performs no persistence; callers own the tokens.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
	client   *http.Client
}

// NewGoogleProvider discovers the Google OIDC endpoints and builds a
// provider for the given client credentials.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	oidcProvider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       DefaultGoogleScopes,
	}

	return &GoogleProvider{
		config:   config,
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
		client:   &http.Client{Timeout: outboundTimeout},
	}, nil
}

// Scopes returns the scopes requested on the consent screen.
func (g *GoogleProvider) Scopes() []string {
	scopes := make([]string, len(g.config.Scopes))
	copy(scopes, g.config.Scopes)
	return scopes
}

// AuthURL generates the Google consent URL carrying the given state.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent select_account"),
	)
}

// Exchange swaps the authorization code for tokens and returns them
// together with the verified profile claims from the ID token.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (TokenSet, Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return TokenSet{}, Profile{}, mapGoogleError(err, "token exchange")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return TokenSet{}, Profile{}, &Error{Service: ServiceGoogle, Code: "missing_id_token", Message: "no id_token in token response"}
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return TokenSet{}, Profile{}, &Error{Service: ServiceGoogle, Code: "invalid_id_token", Message: "id_token verification failed"}
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return TokenSet{}, Profile{}, fmt.Errorf("parse claims: %w", err)
	}

	tokens := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	profile := Profile{
		ID:            claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}

	return tokens, profile, nil
}

// Refresh obtains a fresh access token using the set's refresh token.
// The refresh token is preserved when Google omits it from the response.
func (g *GoogleProvider) Refresh(ctx context.Context, tokens TokenSet) (TokenSet, error) {
	if !tokens.HasRefresh() {
		return TokenSet{}, &Error{Service: ServiceGoogle, Code: "no_refresh_token", Message: "no refresh token available"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	source := g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})

	refreshed, err := source.Token()
	if err != nil {
		return TokenSet{}, mapGoogleError(err, "token refresh")
	}

	next := TokenSet{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		Expiry:       refreshed.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tokens.RefreshToken
	}

	return next, nil
}

// mapGoogleError converts an oauth2 retrieval failure into a typed
// provider rejection when Google answered, and leaves transport
// failures (DNS, timeout, connection reset) as plain wrapped errors.
func mapGoogleError(err error, op string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		if code == "" {
			code = fmt.Sprintf("http_%d", retrieveErr.Response.StatusCode)
		}
		return &Error{Service: ServiceGoogle, Code: code, Message: retrieveErr.ErrorDescription}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GenerateStateToken generates a cryptographically secure random state
// token for binding a pending OAuth attempt.
func GenerateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
