// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token signing.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, one-time
// token generation) from the domain logic. Services consume it through small
// interfaces declared on their own side.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failures. Callers branch on these to tell "refresh" from "re-authenticate".
var (
	ErrTokenExpired = errors.New("sec: token expired")
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// TokenKind is carried in the "typ" claim so an access token can never be
// replayed as a refresh token and vice versa.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// AccessClaims represents the payload embedded inside a JWT Access Token.
//
// Only identity is embedded. Role and permissions are resolved per request,
// so a role change takes effect without waiting for the token to expire.
type AccessClaims struct {
	jwt.RegisteredClaims

	Email string    `json:"eml"`
	Kind  TokenKind `json:"typ"`

	// IssuedAtMicros repeats "iat" at microsecond precision. "iat" is whole
	// seconds and cannot order a token against a password change made in
	// the same second.
	IssuedAtMicros int64 `json:"iat_us,omitempty"`
}

// IssuedTime returns the most precise issue time the token carries.
func (claims *AccessClaims) IssuedTime() time.Time {
	if claims.IssuedAtMicros > 0 {
		return time.UnixMicro(claims.IssuedAtMicros).UTC()
	}
	if claims.IssuedAt != nil {
		return claims.IssuedAt.Time
	}
	return time.Time{}
}

// RefreshClaims is the payload of a refresh token. SessionID points at the
// persisted token record.
type RefreshClaims struct {
	jwt.RegisteredClaims

	SessionID string    `json:"sid"`
	Kind      TokenKind `json:"typ"`
}

// SignedToken is a compact JWT plus its lifetime boundaries.
type SignedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenConfig configures a [TokenService].
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService handles generation and verification of JWT tokens using HS256
// with separate secrets for access and refresh tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if config.AccessSecret == "" || config.RefreshSecret == "" {
		return nil, errors.New("sec: signing secrets must not be empty")
	}
	if config.AccessSecret == config.RefreshSecret {
		return nil, errors.New("sec: access and refresh secrets must differ")
	}
	if config.AccessTTL <= 0 || config.RefreshTTL <= 0 {
		return nil, errors.New("sec: token lifetimes must be positive")
	}

	return &TokenService{
		accessSecret:  []byte(config.AccessSecret),
		refreshSecret: []byte(config.RefreshSecret),
		issuer:        config.Issuer,
		accessTTL:     config.AccessTTL,
		refreshTTL:    config.RefreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (service *TokenService) WithClock(now func() time.Time) *TokenService {
	service.now = now
	return service
}

// RefreshTTL returns the configured refresh token lifetime.
func (service *TokenService) RefreshTTL() time.Duration { return service.refreshTTL }

// # Signing

// SignAccess creates a short-lived access token for a user.
func (service *TokenService) SignAccess(userID, email string) (*SignedToken, error) {
	issuedAt := service.now()
	expiresAt := issuedAt.Add(service.accessTTL)

	claims := AccessClaims{
		RegisteredClaims: service.registered(userID, issuedAt, expiresAt),
		Email:            email,
		Kind:             KindAccess,
		IssuedAtMicros:   issuedAt.UnixMicro(),
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to sign access token: %w", err)
	}
	return &SignedToken{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// SignRefresh creates a long-lived refresh token bound to a session record.
func (service *TokenService) SignRefresh(userID, sessionID string) (*SignedToken, error) {
	issuedAt := service.now()
	expiresAt := issuedAt.Add(service.refreshTTL)

	claims := RefreshClaims{
		RegisteredClaims: service.registered(userID, issuedAt, expiresAt),
		SessionID:        sessionID,
		Kind:             KindRefresh,
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}
	return &SignedToken{Value: value, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

func (service *TokenService) registered(subject string, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    service.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

// # Verification

// VerifyAccess checks the signature and validity of an access token.
// It returns [ErrTokenExpired] or [ErrTokenInvalid] wrapped with detail.
func (service *TokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.parse(tokenString, claims, service.accessSecret); err != nil {
		return nil, err
	}
	if claims.Kind != KindAccess || claims.Subject == "" {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInvalid)
	}
	return claims, nil
}

// VerifyRefresh checks the signature and validity of a refresh token.
func (service *TokenService) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := service.parse(tokenString, claims, service.refreshSecret); err != nil {
		return nil, err
	}
	if claims.Kind != KindRefresh || claims.Subject == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrTokenInvalid)
	}
	return claims, nil
}

func (service *TokenService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if service.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(service.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrTokenExpired, err)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	case !token.Valid:
		return ErrTokenInvalid
	}
	return nil
}
