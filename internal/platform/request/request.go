// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/ctxutil"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/pkg/query"
	"github.com/taibuivan/warden/pkg/uuid"
)

// maxBodyBytes caps JSON request bodies; auth payloads are tiny.
const maxBodyBytes = 1 << 20

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
ID retrieves a named URL parameter that must hold a UUID.

Parameters:
  - request: *http.Request
  - name: string (route parameter name)
  - resource: string (entity name used in the NotFound message)

Returns:
  - string: The identifier
  - error: NotFound when the value is not a well-formed UUID
*/
func ID(request *http.Request, name, resource string) (string, error) {
	id := chi.URLParam(request, name)
	if !uuid.Valid(id) {
		return "", apperr.NotFound(resource)
	}
	return id, nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
QueryBool reads a boolean query parameter. Missing or malformed values are false.
*/
func QueryBool(request *http.Request, name string) bool {
	return query.Bool(request.URL.Query().Get(name))
}

/*
Principal extracts the authenticated principal from the request context.

Returns nil if the request is not authenticated.
*/
func Principal(request *http.Request) *access.Principal {
	return ctxutil.GetPrincipal(request.Context())
}

/*
RequiredPrincipal ensures the request is authenticated and returns the principal.

Returns:
  - *access.Principal: The resolved identity
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredPrincipal(request *http.Request) (*access.Principal, error) {

	// Get principal
	principal := ctxutil.GetPrincipal(request.Context())

	// If the user is not authenticated, return an error
	if principal == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return principal, nil
}

/*
RequiredUserID returns the User ID of the currently logged-in user.

Returns:
  - string: User UUID
  - error: apperr.Unauthorized if not authenticated
*/
func RequiredUserID(request *http.Request) (string, error) {

	// Get principal
	principal, err := RequiredPrincipal(request)

	// If the user is not authenticated, return an error
	if err != nil {
		return "", err
	}

	return principal.UserID, nil
}

/*
BearerToken extracts the token from an "Authorization: Bearer <token>" header,
falling back to the named cookie. Returns "" when neither carries a token.
*/
func BearerToken(request *http.Request, cookieName string) string {
	header := request.Header.Get("Authorization")
	if scheme, token, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	if cookieName != "" {
		if cookie, err := request.Cookie(cookieName); err == nil {
			return cookie.Value
		}
	}
	return ""
}
