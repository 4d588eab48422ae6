// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/pkg/uuid"
)

// # OAuth Sign-in

/*
OAuthLogin signs in with an external identity, creating or linking the
account by email.

Resolution order:
 1. An active link for (provider, providerID) names the user directly.
 2. Otherwise an account with the same email gets the link added, provided
    the provider verified the email and the account does not already link
    a different identity of the same provider.
 3. Otherwise a password-less account is created with the default role.

Parameters:
  - context: context.Context
  - provider: Provider
  - profile: OAuthProfile
  - tokens: ProviderTokens
  - meta: token.Metadata

Returns:
  - *AuthResult: Same shape as [Service.Login]
  - error: Validation, Conflict, Forbidden
*/
func (service *Service) OAuthLogin(context context.Context, provider Provider, profile OAuthProfile, tokens ProviderTokens, meta token.Metadata) (*AuthResult, error) {
	profile.Email = NormalizeEmail(profile.Email)

	validator := &validate.Validator{}
	validator.Custom(FieldProvider, !provider.IsOAuth(), "Unsupported provider").
		Required("provider_id", profile.ProviderID).
		Required(FieldEmail, profile.Email).
		Email(FieldEmail, profile.Email)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	user, err := service.resolveOAuthUser(context, provider, profile)
	if err != nil {
		return nil, err
	}

	now := service.now()
	if !user.IsActive {
		service.observer.LoginAttempt(loginInactive)
		return nil, apperr.Forbidden("Account is deactivated")
	}
	if user.IsAccountLocked(now) {
		service.observer.LoginAttempt(loginLocked)
		return nil, apperr.AccountLocked(*user.LockUntil)
	}

	// Provider credentials are refreshed on every callback
	link := &OAuthLink{
		ID:           uuid.New(),
		UserID:       user.ID,
		Provider:     provider,
		ProviderID:   profile.ProviderID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Profile:      profile.Raw,
		Scopes:       tokens.Scopes,
		LastSyncAt:   &now,
	}
	if err := service.links.Upsert(context, link); err != nil {
		return nil, err
	}
	if !user.HasLinkedProvider(provider) {
		if err := service.users.AddLinkedProvider(context, user.ID, provider); err != nil {
			return nil, err
		}
		user.LinkedProviders = append(user.LinkedProviders, provider)
	}

	if profile.EmailVerified && !user.IsVerified {
		if err := service.users.MarkVerified(context, user.ID); err != nil {
			return nil, err
		}
		user.IsVerified = true
	}

	if err := service.users.RecordLoginSuccess(context, user.ID, now); err != nil {
		return nil, err
	}
	user.LoginAttempts, user.IsLocked, user.LockUntil, user.LastLoginAt = 0, false, nil, &now

	pair, err := service.tokens.Mint(context, token.Subject{UserID: user.ID, Email: user.Email}, meta)
	if err != nil {
		return nil, err
	}

	service.observer.LoginAttempt(loginSuccess)
	service.logger.InfoContext(context, "oauth_login_succeeded",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)),
	)

	if err := service.hydrateRole(context, user); err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (service *Service) resolveOAuthUser(context context.Context, provider Provider, profile OAuthProfile) (*User, error) {

	// 1. Known external identity
	link, err := service.links.FindByProviderID(context, provider, profile.ProviderID)
	if err == nil {
		return service.users.FindByID(context, link.UserID)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	// 2. Existing account with the same email
	user, err := service.users.FindByEmail(context, profile.Email)
	if err == nil {
		if !profile.EmailVerified {
			service.logger.WarnContext(context, "oauth_link_unverified_email",
				slog.String("user_id", user.ID),
				slog.String("provider", string(provider)),
			)
			return nil, apperr.Conflict("An account with this email exists. Sign in with your password, then link the provider")
		}
		links, err := service.links.ListByUser(context, user.ID)
		if err != nil {
			return nil, err
		}
		for _, existing := range links {
			if existing.Provider == provider && existing.ProviderID != profile.ProviderID {
				return nil, apperr.Conflict(fmt.Sprintf("A different %s account is already linked", provider))
			}
		}
		return user, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	// 3. New password-less account
	return service.createOAuthUser(context, provider, profile)
}

func (service *Service) createOAuthUser(context context.Context, provider Provider, profile OAuthProfile) (*User, error) {
	role, err := service.defaultRole(context)
	if err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(profile.FirstName)
	if firstName == "" {
		firstName, _, _ = strings.Cut(profile.Email, "@")
	}

	user := &User{
		ID:              uuid.New(),
		FirstName:       firstName,
		LastName:        strings.TrimSpace(profile.LastName),
		Email:           profile.Email,
		RoleID:          role.ID,
		Provider:        provider,
		LinkedProviders: []Provider{},
		IsVerified:      profile.EmailVerified,
		IsActive:        true,
		Preferences:     DefaultPreferences(),
	}
	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}
	service.recount(context, role.ID)

	service.logger.InfoContext(context, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("provider", string(provider)),
	)
	service.notifier.Notify(context, user.Email, notify.KindWelcome, map[string]string{
		notify.DataName: user.FirstName,
	})
	return user, nil
}

// # Linked Providers

// ListLinks returns the user's active OAuth links.
func (service *Service) ListLinks(context context.Context, userID string) ([]*OAuthLink, error) {
	return service.links.ListByUser(context, userID)
}

/*
UnlinkProvider removes an OAuth link.

The last way to sign in cannot be removed: a password-less account must keep
at least one active link.

Parameters:
  - context: context.Context
  - userID: string
  - provider: Provider

Returns:
  - error: NotFound if not linked, Constraint for the last method
*/
func (service *Service) UnlinkProvider(context context.Context, userID string, provider Provider) error {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return err
	}

	links, err := service.links.ListByUser(context, userID)
	if err != nil {
		return err
	}

	linked := false
	for _, link := range links {
		if link.Provider == provider {
			linked = true
		}
	}
	if !linked {
		return apperr.NotFound("OAuth link")
	}

	if !user.HasPassword() && len(links) <= 1 {
		return apperr.Constraint("Cannot unlink the last authentication method")
	}

	if err := service.links.Deactivate(context, userID, provider); err != nil {
		return err
	}
	if err := service.users.RemoveLinkedProvider(context, userID, provider); err != nil {
		return err
	}

	service.logger.InfoContext(context, "oauth_unlinked",
		slog.String("user_id", userID),
		slog.String("provider", string(provider)),
	)
	return nil
}
