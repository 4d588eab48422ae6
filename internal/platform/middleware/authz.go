// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/warden/internal/platform/request"
	"github.com/taibuivan/warden/internal/platform/respond"
)

// Authenticator resolves a bearer token into a [*access.Principal].
//
// It is implemented by the gate package; declaring it here keeps the
// middleware free of any dependency on the user or role stores.
type Authenticator interface {
	Authenticate(context context.Context, bearer string) (*access.Principal, error)
}

// DenialRecorder counts rejected requests by error code.
type DenialRecorder interface {
	AccessDenied(code string)
}

// Guard bundles the authentication and authorization middleware.
type Guard struct {
	authenticator Authenticator
	denials       DenialRecorder
}

// NewGuard builds a Guard. denials may be nil.
func NewGuard(authenticator Authenticator, denials DenialRecorder) *Guard {
	return &Guard{authenticator: authenticator, denials: denials}
}

/*
Authenticate resolves the caller from the Authorization header (or the
access token cookie) and stores the principal in the request context.

Flow:
 1. No token: the request proceeds as anonymous.
 2. Token present: the [Authenticator] verifies it and checks the account.
 3. Any failure aborts the request with the authenticator's error.
*/
func (guard *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

		bearer := requestutil.BearerToken(request, constants.AccessTokenCookieName)
		if bearer == "" {
			next.ServeHTTP(writer, request)
			return
		}

		principal, err := guard.authenticator.Authenticate(request.Context(), bearer)
		if err != nil {
			guard.deny(writer, request, err)
			return
		}

		if holder := principalHolderFrom(request.Context()); holder != nil {
			holder.principal = principal
		}

		ctx := ctxutil.WithPrincipal(request.Context(), principal)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// RequireAuth blocks anonymous requests. Mount after [Guard.Authenticate].
func (guard *Guard) RequireAuth(next http.Handler) http.Handler {
	return guard.Require()(next)
}

// Require admits the request only when every check passes, in order.
// It implies [Guard.RequireAuth].
func (guard *Guard) Require(checks ...access.Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			accessRequest := access.Request{Principal: ctxutil.GetPrincipal(request.Context())}
			if err := access.Evaluate(accessRequest, checks...); err != nil {
				guard.deny(writer, request, err)
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// RequireOwnerOrAdmin admits the user named by the URL parameter param, or
// any principal holding one of adminRoles.
func (guard *Guard) RequireOwnerOrAdmin(param string, adminRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			accessRequest := access.Request{
				Principal: ctxutil.GetPrincipal(request.Context()),
				OwnerID:   requestutil.Param(request, param),
			}
			if err := access.Evaluate(accessRequest, access.RequireOwnerOrAdmin(adminRoles...)); err != nil {
				guard.deny(writer, request, err)
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

func (guard *Guard) deny(writer http.ResponseWriter, request *http.Request, err error) {
	if guard.denials != nil {
		code := apperr.CodeOf(err)
		if code == "" {
			code = "INTERNAL_ERROR"
		}
		guard.denials.AccessDenied(code)
	}
	respond.Error(writer, request, err)
}

// # Principal Propagation

// principalHolder lets the outer access logger see the principal that an
// inner Authenticate resolved, since context values only flow inward.
type principalHolder struct {
	principal *access.Principal
}

type holderKey struct{}

func withPrincipalHolder(ctx context.Context, holder *principalHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, holder)
}

func principalHolderFrom(ctx context.Context) *principalHolder {
	holder, _ := ctx.Value(holderKey{}).(*principalHolder)
	return holder
}
