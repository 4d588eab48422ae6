// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/ctxutil"
	"github.com/taibuivan/warden/internal/platform/middleware"
	requestutil "github.com/taibuivan/warden/internal/platform/request"
	"github.com/taibuivan/warden/internal/platform/respond"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/token"
	"github.com/taibuivan/warden/internal/users/auth"
)

// Handler implements the /auth/oauth endpoints.
type Handler struct {
	service   *auth.Service
	providers *Registry
	guard     *middleware.Guard
}

// NewHandler constructs a new [Handler].
func NewHandler(service *auth.Service, providers *Registry, guard *middleware.Guard) *Handler {
	return &Handler{service: service, providers: providers, guard: guard}
}

// Routes returns the OAuth router.
//
// # Endpoints
//   - GET /                      : Enabled providers
//   - GET /{provider}            : Redirect to the consent screen
//   - GET /{provider}/callback   : Sign in with the returned code
//   - GET /links, DELETE /links/{provider} : Authenticated link management
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)

	router.Group(func(r chi.Router) {
		r.Use(handler.guard.RequireAuth)
		r.Get("/links", handler.links)
		r.Delete("/links/{provider}", handler.unlink)
	})

	router.Get("/{provider}", handler.begin)
	router.Get("/{provider}/callback", handler.callback)

	return router
}

func (handler *Handler) list(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, handler.providers.Names())
}

/*
begin starts the authorization code flow.

GET /api/v1/auth/oauth/{provider}

Description: Stores a random state in a short-lived cookie and redirects to
the provider. The callback must echo the same state.

Response:
  - 302: Redirect to the provider
  - 404: NOT_FOUND: Provider not enabled
*/
func (handler *Handler) begin(writer http.ResponseWriter, request *http.Request) {
	provider, err := handler.providers.Get(requestutil.Param(request, "provider"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	state, err := sec.GenerateSecureToken()
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.OAuthStateCookieName,
		Value:    state,
		Path:     constants.OAuthStateCookiePath,
		MaxAge:   int(constants.OAuthStateTTL.Seconds()),
		Secure:   true,
		HttpOnly: true,
		// Lax, since the provider's redirect back is a cross-site navigation
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(writer, request, provider.AuthCodeURL(state), http.StatusFound)
}

/*
callback completes the flow and signs the user in.

GET /api/v1/auth/oauth/{provider}/callback

Request:
  - Query: code, state (or error when consent was refused)

Response:
  - 200: auth.AuthResult (tokens also set as cookies)
  - 401: UNAUTHORIZED: State mismatch, refused consent, or rejected code
  - 409: CONFLICT: A different identity of this provider is already linked
  - 503: SERVICE_UNAVAILABLE: Provider unreachable
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	provider, err := handler.providers.Get(requestutil.Param(request, "provider"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	query := request.URL.Query()
	if reason := query.Get("error"); reason != "" {
		respond.Error(writer, request, apperr.Unauthorized("Authorization was not granted").With("reason", reason))
		return
	}
	if !stateMatches(request, query.Get("state")) {
		respond.Error(writer, request, apperr.Unauthorized("OAuth state mismatch"))
		return
	}
	clearStateCookie(writer)

	code := query.Get("code")
	if code == "" {
		respond.Error(writer, request, validate.RequiredError("code", "Authorization code is required"))
		return
	}

	exchangeContext, cancel := context.WithTimeout(request.Context(), constants.OAuthExchangeTimeout)
	defer cancel()

	profile, tokens, err := provider.Exchange(exchangeContext, code)
	if err != nil {
		respond.Error(writer, request, classifyExchangeError(request, provider.Name(), err))
		return
	}

	meta := token.Metadata{IPAddress: middleware.RealIP(request), UserAgent: request.UserAgent()}
	result, err := handler.service.OAuthLogin(request.Context(), provider.Name(), *profile, *tokens, meta)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	auth.SetSessionCookies(writer, result.Tokens)
	respond.OK(writer, result)
}

// links lists the caller's linked providers.
func (handler *Handler) links(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	links, err := handler.service.ListLinks(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, links)
}

/*
unlink removes a linked provider.

DELETE /api/v1/auth/oauth/links/{provider}

Response:
  - 204: No Content
  - 404: NOT_FOUND: Provider not linked
  - 422: CONSTRAINT_VIOLATION: Last way to sign in
*/
func (handler *Handler) unlink(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	provider := auth.Provider(requestutil.Param(request, "provider"))
	if !provider.IsOAuth() {
		respond.Error(writer, request, apperr.NotFound("OAuth link"))
		return
	}

	if err := handler.service.UnlinkProvider(request.Context(), userID, provider); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Helpers

func stateMatches(request *http.Request, state string) bool {
	cookie, err := request.Cookie(constants.OAuthStateCookieName)
	if err != nil || cookie.Value == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) == 1
}

func clearStateCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.OAuthStateCookieName,
		Value:    "",
		Path:     constants.OAuthStateCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// classifyExchangeError separates a code the provider rejected from a
// provider that could not be reached.
func classifyExchangeError(request *http.Request, provider auth.Provider, err error) error {
	ctxutil.GetLogger(request.Context()).Warn("oauth_exchange_failed",
		slog.String("provider", string(provider)),
		slog.String("error", err.Error()),
	)

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return apperr.Unauthorized("Authorization code was rejected").Wrap(err)
	}
	return apperr.Unavailable(err)
}
