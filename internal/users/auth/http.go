// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/ctxutil"
	"github.com/taibuivan/warden/internal/platform/middleware"
	"github.com/taibuivan/warden/internal/platform/ratelimit"
	requestutil "github.com/taibuivan/warden/internal/platform/request"
	"github.com/taibuivan/warden/internal/platform/respond"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/token"
)

// # Definitions & Constructors

// Handler implements the self-service authentication endpoints.
//
// # Scope
//
// Registration, login, refresh and logout, password recovery, email
// verification, the caller's own profile and sessions.
type Handler struct {
	service *Service
	guard   *middleware.Guard
	limiter ratelimit.Limiter
}

// NewHandler constructs a new [Handler]. limiter throttles login and
// password-recovery attempts per email and client IP.
func NewHandler(service *Service, guard *middleware.Guard, limiter ratelimit.Limiter) *Handler {
	return &Handler{service: service, guard: guard, limiter: limiter}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register, /login, /refresh : Sign-in flows
//   - POST /forgot-password, /reset-password, /verify-email, /resend-verification
//   - /logout, /logout-all, /change-password, /me, /sessions : Authenticated
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/resend-verification", handler.resendVerification)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(handler.guard.RequireAuth)
		r.Post("/logout", handler.logout)
		r.Post("/logout-all", handler.logoutAll)
		r.Post("/change-password", handler.changePassword)
		r.Get("/me", handler.me)
		r.Patch("/me", handler.updateMe)
		r.Delete("/me", handler.deleteMe)
		r.Get("/sessions", handler.sessions)
		r.Delete("/sessions/{id}", handler.revokeSession)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type updateMeRequest struct {
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Language           *string `json:"language"`
	Timezone           *string `json:"timezone"`
	EmailNotifications *bool   `json:"email_notifications"`
	PushNotifications  *bool   `json:"push_notifications"`
	MarketingEmails    *bool   `json:"marketing_emails"`
}

type deleteMeRequest struct {
	Password string `json:"password"`
}

// # Sign-in

/*
Register handles the creation of a new local account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (FirstName, LastName, Email, Password)

Response:
  - 201: AuthResult: Created user and its tokens
  - 400: VALIDATION_ERROR
  - 409: CONFLICT: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Register(request.Context(), RegisterInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  input.Password,
	}, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	SetSessionCookies(writer, result.Tokens)
	respond.Created(writer, result)
}

/*
Login authenticates with email and password.

POST /api/v1/auth/login

Description: Verifies credentials and sets the access and refresh cookies
in addition to returning both tokens.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: AuthResult
  - 401: UNAUTHORIZED: Invalid email or password
  - 403: ACCOUNT_LOCKED (meta.locked_until) or deactivated
  - 429: RATE_LIMITED
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.throttle(request, "login", input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), input.Email, input.Password, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	SetSessionCookies(writer, result.Tokens)
	respond.OK(writer, result)
}

/*
Refresh issues a new access token.

POST /api/v1/auth/refresh

Request:
  - Body: refreshRequest (optional, falls back to the refresh cookie)

Response:
  - 200: token.Pair
  - 401: UNAUTHORIZED: Missing, unknown, revoked or expired refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken := refreshTokenFrom(request)
	if refreshToken == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	pair, err := handler.service.Refresh(request.Context(), refreshToken, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	SetSessionCookies(writer, pair)
	respond.OK(writer, pair)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Revokes the refresh token from the body or cookie. Without one,
every session of the caller is revoked.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Logout(request.Context(), userID, refreshTokenFrom(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearSessionCookies(writer)
	respond.NoContent(writer)
}

// logoutAll revokes every session of the caller.
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.LogoutAll(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearSessionCookies(writer)
	respond.NoContent(writer)
}

// # Recovery & Verification

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 200: Generic message, whether or not the email is registered
  - 429: RATE_LIMITED
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.throttle(request, "forgot", input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success message
  - 400: INVALID_TOKEN or VALIDATION_ERROR
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been reset. Please sign in again.",
	})
}

/*
VerifyEmail confirms a user's email ownership.

POST /api/v1/auth/verify-email

Response:
  - 200: Success message
  - 400: INVALID_TOKEN
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input tokenRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

// resendVerification mails a new verification link.
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	var input emailRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.throttle(request, "verify", input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResendVerification(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a verification link has been sent.",
	})
}

// # Authenticated Account

/*
ChangePassword replaces the caller's password.

POST /api/v1/auth/change-password

Description: Revokes every session and returns a fresh pair for this client.

Response:
  - 200: token.Pair
  - 401: UNAUTHORIZED: Current password is incorrect
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.service.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword, clientMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	SetSessionCookies(writer, pair)
	respond.OK(writer, pair)
}

// me returns the caller's profile.
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Profile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

// updateMe patches names and preferences.
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userID, UpdateProfileInput(input))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

// deleteMe permanently deletes the caller's account.
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Password-less accounts may send no body at all
	var input deleteMeRequest
	if request.ContentLength != 0 {
		if err := requestutil.DecodeJSON(request, &input); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	if err := handler.service.DeleteAccount(request.Context(), userID, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	clearSessionCookies(writer)
	respond.NoContent(writer)
}

// sessions lists the caller's active sessions.
func (handler *Handler) sessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	records, err := handler.service.ListSessions(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, records)
}

// revokeSession revokes one of the caller's sessions.
func (handler *Handler) revokeSession(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID, err := requestutil.ID(request, "id", "Session")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.RevokeSession(request.Context(), userID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Helpers

// throttle applies the per-identity limiter. Limiter outages fail open.
func (handler *Handler) throttle(request *http.Request, scope, email string) error {
	if handler.limiter == nil {
		return nil
	}

	key := scope + ":" + NormalizeEmail(email) + "|" + middleware.RealIP(request)
	decision, err := handler.limiter.Allow(request.Context(), key)
	if err != nil {
		ctxutil.GetLogger(request.Context()).Warn("rate_limit_unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !decision.Allowed {
		return apperr.RateLimited(decision.RetryAfterSeconds())
	}
	return nil
}

func clientMeta(request *http.Request) token.Metadata {
	return token.Metadata{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	}
}

// refreshTokenFrom reads the refresh token from a JSON body, then the cookie.
func refreshTokenFrom(request *http.Request) string {
	if request.ContentLength > 0 {
		var input refreshRequest
		if err := requestutil.DecodeJSON(request, &input); err == nil && input.RefreshToken != "" {
			return input.RefreshToken
		}
	}
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetSessionCookies stores both tokens in HttpOnly cookies. The refresh
// cookie is scoped to the auth routes.
func SetSessionCookies(writer http.ResponseWriter, pair *token.Pair) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  pair.RefreshExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookies(writer http.ResponseWriter) {
	for name, path := range map[string]string{
		constants.AccessTokenCookieName:  "/",
		constants.RefreshTokenCookieName: constants.RefreshTokenCookiePath,
	} {
		http.SetCookie(writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
