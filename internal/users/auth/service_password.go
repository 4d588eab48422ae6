// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/warden/internal/notify"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/sec"
	"github.com/taibuivan/warden/internal/platform/validate"
	"github.com/taibuivan/warden/internal/token"
)

// # Password Change

/*
ChangePassword replaces the password of a signed-in user.

Every session of the user is revoked and access tokens issued before now stop
passing the gate. The caller gets a fresh pair so its own client stays signed in.

Parameters:
  - context: context.Context
  - userID: string
  - current: string
  - next: string
  - meta: token.Metadata

Returns:
  - *token.Pair: Tokens for the calling client
  - error: Validation, Unauthorized on a wrong current password, Constraint for password-less accounts
*/
func (service *Service) ChangePassword(context context.Context, userID, current, next string, meta token.Metadata) (*token.Pair, error) {
	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, current).
		Password(FieldNewPassword, next, MinPasswordLength).
		Custom(FieldNewPassword, current != "" && current == next, "Must differ from the current password")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if !user.HasPassword() {
		return nil, apperr.Constraint("Account has no password, use the password reset flow to set one")
	}
	if !service.hasher.Verify(current, *user.PasswordHash) {
		return nil, apperr.Unauthorized("Current password is incorrect")
	}

	if err := service.replacePassword(context, user, next, token.ReasonPasswordChanged); err != nil {
		return nil, err
	}

	return service.tokens.Mint(context, token.Subject{UserID: user.ID, Email: user.Email}, meta)
}

// # Password Reset

/*
ForgotPassword mails a reset token if the email belongs to an account.

The result is the same whether or not the account exists.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Only infrastructure failures
*/
func (service *Service) ForgotPassword(context context.Context, email string) error {
	user, err := service.users.FindByEmail(context, NormalizeEmail(email))
	if apperr.Is(err, apperr.KindNotFound) {
		service.logger.DebugContext(context, "password_reset_unknown_email")
		return nil
	}
	if err != nil {
		return err
	}

	reset, err := sec.NewOneTimeToken(service.now(), service.options.ResetTTL)
	if err != nil {
		return fmt.Errorf("auth_service_reset_token_failed: %w", err)
	}

	if err := service.users.SetResetToken(context, user.ID, reset.Hash, reset.ExpiresAt); err != nil {
		return err
	}

	service.logger.InfoContext(context, "password_reset_requested", slog.String("user_id", user.ID))
	service.notifier.Notify(context, user.Email, notify.KindPasswordReset, map[string]string{
		notify.DataName:  user.FirstName,
		notify.DataToken: reset.Raw,
		notify.DataTTL:   service.options.ResetTTL.String(),
	})
	return nil
}

/*
ResetPassword consumes a reset token and sets a new password.

The token is single use. A successful reset also lifts any lockout, since the
user has just proven control of the mailbox.

Parameters:
  - context: context.Context
  - rawToken: string
  - password: string

Returns:
  - error: Validation, INVALID_TOKEN for unknown, expired or used tokens
*/
func (service *Service) ResetPassword(context context.Context, rawToken, password string) error {
	validator := &validate.Validator{}
	validator.Required(FieldToken, rawToken).
		Password(FieldPassword, password, MinPasswordLength)
	if err := validator.Err(); err != nil {
		return err
	}

	user, err := service.users.FindByResetHash(context, sec.HashToken(rawToken), service.now())
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.InvalidToken("Reset token is invalid or has expired")
	}
	if err != nil {
		return err
	}

	if err := service.replacePassword(context, user, password, token.ReasonPasswordReset); err != nil {
		return err
	}
	return service.users.ClearLock(context, user.ID)
}

// replacePassword stores the new hash (which also consumes any reset
// token), revokes all sessions and notifies the owner.
func (service *Service) replacePassword(context context.Context, user *User, password string, reason token.Reason) error {
	hash, err := service.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	if err := service.users.UpdatePassword(context, user.ID, hash, service.now()); err != nil {
		return err
	}
	if err := service.revokeAll(context, user.ID, reason); err != nil {
		return err
	}

	service.logger.InfoContext(context, "password_changed",
		slog.String("user_id", user.ID),
		slog.String("reason", string(reason)),
	)
	service.notifier.Notify(context, user.Email, notify.KindPasswordChanged, map[string]string{
		notify.DataName: user.FirstName,
	})
	return nil
}

// # Email Verification

// VerifyEmail consumes a verification token and marks the owner verified.
func (service *Service) VerifyEmail(context context.Context, rawToken string) error {
	if rawToken == "" {
		return validate.RequiredError(FieldToken, "Token is required")
	}

	user, err := service.users.FindByVerificationHash(context, sec.HashToken(rawToken), service.now())
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.InvalidToken("Verification token is invalid or has expired")
	}
	if err != nil {
		return err
	}

	if err := service.users.MarkVerified(context, user.ID); err != nil {
		return err
	}

	service.logger.InfoContext(context, "email_verified", slog.String("user_id", user.ID))
	return nil
}

/*
ResendVerification issues a new verification token, replacing the old one.

An unknown email is silently accepted; an already verified one is reported.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Conflict if the email is already verified
*/
func (service *Service) ResendVerification(context context.Context, email string) error {
	user, err := service.users.FindByEmail(context, NormalizeEmail(email))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if user.IsVerified {
		return apperr.Conflict("Email is already verified")
	}

	verification, err := sec.NewOneTimeToken(service.now(), service.options.VerificationTTL)
	if err != nil {
		return fmt.Errorf("auth_service_verification_token_failed: %w", err)
	}
	if err := service.users.SetVerificationToken(context, user.ID, verification.Hash, verification.ExpiresAt); err != nil {
		return err
	}

	service.notifier.Notify(context, user.Email, notify.KindVerification, map[string]string{
		notify.DataName:  user.FirstName,
		notify.DataToken: verification.Raw,
		notify.DataTTL:   service.options.VerificationTTL.String(),
	})
	return nil
}
