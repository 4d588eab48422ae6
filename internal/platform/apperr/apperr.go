// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Warden.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - Kind: A closed set of failure categories every operation may return.
  - AppError: A struct carrying the Kind plus a machine-readable code and a client-safe message.
  - Mapping: Kind is translated to an HTTP status exactly once, in [Kind.HTTPStatus].

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// # Kinds

// Kind categorises a failure independently of any transport.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindConstraint   Kind = "constraint"
	KindRateLimited  Kind = "rate_limited"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// HTTPStatus maps a Kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindConstraint:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the canonical error type for the Warden API.
//
// It carries a [Kind], a machine-readable code, a client-safe message, and
// optional field-level validation errors or structured metadata.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Kind is the transport-independent failure category.
	Kind Kind `json:"-"`
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "TOKEN_EXPIRED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
	// Meta carries structured, client-safe context (e.g. locked_until).
	Meta map[string]any `json:"meta,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the response status for this error.
func (e *AppError) HTTPStatus() int { return e.Kind.HTTPStatus() }

// With returns the error with an additional metadata entry.
func (e *AppError) With(key string, value any) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]any, 1)
	}
	e.Meta[key] = value
	return e
}

// Wrap attaches a server-side cause to the error.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Role") // Returns "Role not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: resource + " not found",
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: msg,
	}
}

// TokenExpired signals an access token that was valid but has passed its expiry.
// Clients react to this code by calling the refresh endpoint.
func TokenExpired() *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "TOKEN_EXPIRED",
		Message: "Access token has expired",
	}
}

// PasswordChanged signals a token issued before the latest password change.
func PasswordChanged() *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "PASSWORD_CHANGED",
		Message: "Password was changed after this token was issued, please sign in again",
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: msg,
	}
}

// AccountLocked creates a 403 [AppError] carrying the unlock time.
func AccountLocked(until time.Time) *AppError {
	return (&AppError{
		Kind:    KindForbidden,
		Code:    "ACCOUNT_LOCKED",
		Message: fmt.Sprintf("Account is locked until %s", until.UTC().Format(time.RFC3339)),
	}).With("locked_until", until.UTC())
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    "CONFLICT",
		Message: msg,
	}
}

// Constraint creates a 422 [AppError] for operations blocked by a domain rule
// (system role protection, referenced rows, last authentication method).
func Constraint(msg string) *AppError {
	return &AppError{
		Kind:    KindConstraint,
		Code:    "CONSTRAINT_VIOLATION",
		Message: msg,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: msg,
		Details: details,
	}
}

// InvalidToken creates a 400 [AppError] for a one-time token that is unknown or expired.
func InvalidToken(msg string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    "INVALID_TOKEN",
		Message: msg,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return (&AppError{
		Kind:    KindRateLimited,
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
	}).With("retry_after", retryAfterSeconds)
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "An unexpected error occurred",
		Cause:   cause,
	}
}

// Unavailable creates a 503 [AppError] for an unreachable or timed-out dependency.
func Unavailable(cause error) *AppError {
	return &AppError{
		Kind:    KindUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: "Service temporarily unavailable",
		Cause:   cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae := As(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// CodeOf returns the machine-readable code of err, or "" for foreign errors.
func CodeOf(err error) string {
	if ae := As(err); ae != nil {
		return ae.Code
	}
	return ""
}
