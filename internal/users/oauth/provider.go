// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package oauth signs users in through external identity providers.

# Providers

  - Google: OpenID Connect. The ID token is verified against the issuer's
    published keys, so the profile never comes from an unauthenticated call.
  - GitHub: plain OAuth 2.0. The profile and the verified primary email are
    read from the REST API with the exchanged token.

A provider only turns an authorization code into an [auth.OAuthProfile];
creating or linking the account is [auth.Service.OAuthLogin]'s job.
*/
package oauth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/oauth2"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/users/auth"
)

// Provider is one configured identity provider.
type Provider interface {
	// Name identifies the provider in URLs and on linked accounts.
	Name() auth.Provider

	// AuthCodeURL is where the browser goes to grant consent.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the caller's profile.
	Exchange(context context.Context, code string) (*auth.OAuthProfile, *auth.ProviderTokens, error)
}

// Registry holds the enabled providers by name.
type Registry struct {
	providers map[auth.Provider]Provider
}

// NewRegistry builds a registry from the enabled providers.
func NewRegistry(providers ...Provider) *Registry {
	registry := &Registry{providers: make(map[auth.Provider]Provider, len(providers))}
	for _, provider := range providers {
		registry.providers[provider.Name()] = provider
	}
	return registry
}

// Len reports how many providers are enabled.
func (registry *Registry) Len() int {
	return len(registry.providers)
}

// Get returns the named provider, or NotFound if it is not enabled.
func (registry *Registry) Get(name string) (Provider, error) {
	provider, ok := registry.providers[auth.Provider(strings.ToLower(name))]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("OAuth provider %q", name))
	}
	return provider, nil
}

// Names lists the enabled providers in a stable order.
func (registry *Registry) Names() []auth.Provider {
	names := make([]auth.Provider, 0, len(registry.providers))
	for name := range registry.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// # Helpers

// grantedScopes reads the scopes the provider actually granted, which may
// be narrower than requested. Providers separate them by comma or space.
func grantedScopes(token *oauth2.Token, requested []string) []string {
	raw, _ := token.Extra("scope").(string)
	if raw == "" {
		return slices.Clone(requested)
	}
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}

// splitName turns "Ada King Lovelace" into ("Ada", "King Lovelace").
func splitName(full string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(full), " ")
	return first, strings.TrimSpace(last)
}
