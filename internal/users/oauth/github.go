// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/taibuivan/warden/internal/users/auth"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubConfig configures [GitHubProvider].
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint and APIBase default to github.com. Tests point them at a fake.
	Endpoint oauth2.Endpoint
	APIBase  string
}

// GitHubProvider signs users in with GitHub.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider returns nil when no client id is configured.
func NewGitHubProvider(config GitHubConfig) *GitHubProvider {
	if config.ClientID == "" {
		return nil
	}
	if config.Endpoint.TokenURL == "" {
		config.Endpoint = github.Endpoint
	}
	if config.APIBase == "" {
		config.APIBase = DefaultGitHubAPI
	}

	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     config.Endpoint,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: config.APIBase,
	}
}

// Name implements [Provider].
func (provider *GitHubProvider) Name() auth.Provider { return auth.ProviderGitHub }

// AuthCodeURL implements [Provider].
func (provider *GitHubProvider) AuthCodeURL(state string) string {
	return provider.config.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

/*
Exchange implements [Provider].

The email on the public profile may be missing or unverified, so the primary
address from /user/emails wins when GitHub reports it as verified.
*/
func (provider *GitHubProvider) Exchange(context context.Context, code string) (*auth.OAuthProfile, *auth.ProviderTokens, error) {
	token, err := provider.config.Exchange(context, code)
	if err != nil {
		return nil, nil, fmt.Errorf("github_exchange_failed: %w", err)
	}
	client := provider.config.Client(context, token)

	var body json.RawMessage
	if err := provider.get(context, client, "/user", &body); err != nil {
		return nil, nil, err
	}
	var user githubUser
	var raw map[string]any
	if err := json.Unmarshal(body, &user); err != nil || user.ID == 0 {
		return nil, nil, fmt.Errorf("github_profile_invalid: %s", body)
	}
	_ = json.Unmarshal(body, &raw)

	profile := &auth.OAuthProfile{
		ProviderID: strconv.FormatInt(user.ID, 10),
		Email:      user.Email,
		Raw:        raw,
	}
	profile.FirstName, profile.LastName = splitName(user.Name)
	if profile.FirstName == "" {
		profile.FirstName = user.Login
	}

	var emails []githubEmail
	if err := provider.get(context, client, "/user/emails", &emails); err != nil {
		return nil, nil, err
	}
	for _, email := range emails {
		if email.Primary && email.Verified {
			profile.Email, profile.EmailVerified = email.Email, true
			break
		}
	}

	return profile, &auth.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       grantedScopes(token, provider.config.Scopes),
	}, nil
}

func (provider *GitHubProvider) get(context context.Context, client *http.Client, path string, target any) error {
	request, err := http.NewRequestWithContext(context, http.MethodGet, provider.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("github_request_failed: %w", err)
	}
	request.Header.Set("Accept", "application/vnd.github+json")

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("github_request_failed: %s: %w", path, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("github_request_failed: %s: status %d: %s", path, response.StatusCode, body)
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("github_decode_failed: %s: %w", path, err)
	}
	return nil
}
