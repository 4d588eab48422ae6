// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/taibuivan/warden/internal/users/auth"
)

// DefaultGoogleIssuer is Google's OpenID Connect issuer.
const DefaultGoogleIssuer = "https://accounts.google.com"

// GoogleConfig configures [GoogleProvider].
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// IssuerURL defaults to Google. Discovery runs against it at startup.
	IssuerURL string
}

// GoogleProvider signs users in with Google through OpenID Connect.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Name          string `json:"name"`
}

/*
NewGoogleProvider runs OIDC discovery against the issuer.

It returns (nil, nil) when no client id is configured, so a disabled
provider is not an error.

Parameters:
  - context: context.Context (bounds the discovery request)
  - config: GoogleConfig

Returns:
  - *GoogleProvider: Ready provider, or nil when disabled
  - error: Discovery failures
*/
func NewGoogleProvider(context context.Context, config GoogleConfig) (*GoogleProvider, error) {
	if config.ClientID == "" {
		return nil, nil
	}
	if config.IssuerURL == "" {
		config.IssuerURL = DefaultGoogleIssuer
	}

	issuer, err := oidc.NewProvider(context, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("google_discovery_failed: %w", err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     issuer.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: issuer.Verifier(&oidc.Config{ClientID: config.ClientID}),
	}, nil
}

// Name implements [Provider].
func (provider *GoogleProvider) Name() auth.Provider { return auth.ProviderGoogle }

// AuthCodeURL implements [Provider].
func (provider *GoogleProvider) AuthCodeURL(state string) string {
	return provider.config.AuthCodeURL(state)
}

// Exchange implements [Provider]. The profile comes from the verified ID token.
func (provider *GoogleProvider) Exchange(context context.Context, code string) (*auth.OAuthProfile, *auth.ProviderTokens, error) {
	token, err := provider.config.Exchange(context, code)
	if err != nil {
		return nil, nil, fmt.Errorf("google_exchange_failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, nil, errors.New("google_id_token_missing")
	}

	idToken, err := provider.verifier.Verify(context, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("google_id_token_invalid: %w", err)
	}

	var claims googleClaims
	var raw map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("google_claims_invalid: %w", err)
	}
	_ = idToken.Claims(&raw)

	profile := &auth.OAuthProfile{
		ProviderID:    claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		FirstName:     claims.GivenName,
		LastName:      claims.FamilyName,
		Raw:           raw,
	}
	if profile.FirstName == "" {
		profile.FirstName, profile.LastName = splitName(claims.Name)
	}

	return profile, &auth.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       grantedScopes(token, provider.config.Scopes),
	}, nil
}
