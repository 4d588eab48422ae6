// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/database/schema"
	"github.com/taibuivan/warden/internal/platform/dberr"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/pkg/pagination"
	"github.com/taibuivan/warden/pkg/slice"
)

const (
	resourceUser      = "User"
	resourceOAuthLink = "OAuth link"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] on iam.account.
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

// NewPostgresUserRepository constructs a new [PostgresUserRepository].
func NewPostgresUserRepository(db *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

var accountColumns = strings.Join(schema.IAMAccount.Columns(), ", ")

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var linked []string
	var preferences []byte

	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.RoleID,
		&user.Provider, &linked, &user.IsVerified,
		&user.VerificationTokenHash, &user.VerificationExpiresAt,
		&user.ResetTokenHash, &user.ResetExpiresAt,
		&user.IsActive, &user.IsLocked, &user.LockUntil, &user.LoginAttempts,
		&user.LastLoginAt, &user.PasswordChangedAt, &preferences,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LinkedProviders = slice.Map(linked, func(name string) Provider { return Provider(name) })
	if user.LinkedProviders == nil {
		user.LinkedProviders = []Provider{}
	}

	user.Preferences = DefaultPreferences()
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &user.Preferences); err != nil {
			return nil, fmt.Errorf("auth: decode preferences of user %s: %w", user.ID, err)
		}
	}
	return user, nil
}

func (repository *PostgresUserRepository) findOne(context context.Context, where string, args ...any) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, accountColumns, schema.IAMAccount.Table, where)

	user, err := scanUser(repository.db.QueryRow(context, query, args...))
	if err != nil {
		return nil, dberr.Wrap(err, resourceUser)
	}
	return user, nil
}

// FindByID implements [UserRepository].
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	return repository.findOne(context, schema.IAMAccount.ID+" = $1", id)
}

// FindByEmail implements [UserRepository].
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	return repository.findOne(context, fmt.Sprintf("lower(%s) = lower($1)", schema.IAMAccount.Email), email)
}

// FindByVerificationHash implements [UserRepository].
func (repository *PostgresUserRepository) FindByVerificationHash(context context.Context, tokenHash string, now time.Time) (*User, error) {
	return repository.findOne(context,
		fmt.Sprintf("%s = $1 AND %s > $2", schema.IAMAccount.VerificationTokenHash, schema.IAMAccount.VerificationExpiresAt),
		tokenHash, now,
	)
}

// FindByResetHash implements [UserRepository].
func (repository *PostgresUserRepository) FindByResetHash(context context.Context, tokenHash string, now time.Time) (*User, error) {
	return repository.findOne(context,
		fmt.Sprintf("%s = $1 AND %s > $2", schema.IAMAccount.ResetTokenHash, schema.IAMAccount.ResetExpiresAt),
		tokenHash, now,
	)
}

/*
Create persists a new user record into iam.account.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: Conflict on a duplicate email, connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("auth: encode preferences: %w", err)
	}

	linked := slice.Map(user.LinkedProviders, func(provider Provider) string { return string(provider) })
	if linked == nil {
		linked = []string{}
	}

	account := schema.IAMAccount
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING %s, %s`,
		account.Table,
		account.ID, account.FirstName, account.LastName, account.Email, account.PasswordHash,
		account.RoleID, account.Provider, account.LinkedProviders, account.IsVerified,
		account.VerificationTokenHash, account.VerificationExpiresAt, account.IsActive, account.Preferences,
		account.CreatedAt, account.UpdatedAt,
	)

	err = repository.db.QueryRow(context, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash,
		user.RoleID, user.Provider, linked, user.IsVerified,
		user.VerificationTokenHash, user.VerificationExpiresAt, user.IsActive, preferences,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceUser)
	}
	return nil
}

// UpdateProfile implements [UserRepository].
func (repository *PostgresUserRepository) UpdateProfile(context context.Context, user *User) error {
	preferences, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("auth: encode preferences: %w", err)
	}

	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = now() WHERE %s = $1 RETURNING %s`,
		account.Table, account.FirstName, account.LastName, account.Preferences, account.UpdatedAt,
		account.ID, account.UpdatedAt)

	err = repository.db.QueryRow(context, query, user.ID, user.FirstName, user.LastName, preferences).Scan(&user.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceUser)
	}
	return nil
}

// UpdatePassword implements [UserRepository].
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, id, passwordHash string, changedAt time.Time) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = NULL, %s = NULL, %s = now()
		WHERE %s = $1`,
		account.Table,
		account.PasswordHash, account.PasswordChangedAt, account.ResetTokenHash, account.ResetExpiresAt,
		account.UpdatedAt, account.ID,
	)
	return repository.execOne(context, query, id, passwordHash, changedAt)
}

/*
RecordLoginFailure applies the lockout transition in one statement.

Every SET expression reads the pre-update row, and Postgres re-evaluates the
row after waiting on a concurrent writer, so two simultaneous failures count
twice. The CASE arms mirror [LockoutPolicy.NextFailure]:

  - lock in force: unchanged
  - stale lock: counter restarts at 1
  - otherwise: counter + 1, locking once it reaches the threshold

Parameters:
  - context: context.Context
  - id: string
  - policy: LockoutPolicy
  - now: time.Time

Returns:
  - LockState: State after this failure
  - error: NotFound, persistence failures
*/
func (repository *PostgresUserRepository) RecordLoginFailure(context context.Context, id string, policy LockoutPolicy, now time.Time) (LockState, error) {
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = CASE
				WHEN %[3]s AND %[4]s > $2 THEN %[2]s
				WHEN %[4]s IS NOT NULL AND %[4]s <= $2 THEN 1
				ELSE %[2]s + 1 END,
			%[4]s = CASE
				WHEN %[3]s AND %[4]s > $2 THEN %[4]s
				WHEN (CASE WHEN %[4]s IS NOT NULL AND %[4]s <= $2 THEN 1 ELSE %[2]s + 1 END) >= $3 THEN $4::timestamptz
				ELSE NULL END,
			%[3]s = CASE
				WHEN %[3]s AND %[4]s > $2 THEN TRUE
				ELSE (CASE WHEN %[4]s IS NOT NULL AND %[4]s <= $2 THEN 1 ELSE %[2]s + 1 END) >= $3 END,
			%[5]s = $2
		WHERE %[6]s = $1
		RETURNING %[2]s, %[3]s, %[4]s`,
		schema.IAMAccount.Table,
		schema.IAMAccount.LoginAttempts,
		schema.IAMAccount.IsLocked,
		schema.IAMAccount.LockUntil,
		schema.IAMAccount.UpdatedAt,
		schema.IAMAccount.ID,
	)

	var state LockState
	err := repository.db.QueryRow(context, query, id, now, policy.Threshold, now.Add(policy.Duration)).
		Scan(&state.Attempts, &state.IsLocked, &state.LockUntil)
	if err != nil {
		return LockState{}, dberr.Wrap(err, resourceUser)
	}
	return state, nil
}

// RecordLoginSuccess implements [UserRepository].
func (repository *PostgresUserRepository) RecordLoginSuccess(context context.Context, id string, at time.Time) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = 0, %s = FALSE, %s = NULL, %s = $2, %s = now() WHERE %s = $1`,
		account.Table, account.LoginAttempts, account.IsLocked, account.LockUntil, account.LastLoginAt,
		account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, at)
}

// ClearLock implements [UserRepository].
func (repository *PostgresUserRepository) ClearLock(context context.Context, id string) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = 0, %s = FALSE, %s = NULL, %s = now() WHERE %s = $1`,
		account.Table, account.LoginAttempts, account.IsLocked, account.LockUntil, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id)
}

// SetVerificationToken implements [UserRepository].
func (repository *PostgresUserRepository) SetVerificationToken(context context.Context, id, tokenHash string, expiresAt time.Time) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = now() WHERE %s = $1`,
		account.Table, account.VerificationTokenHash, account.VerificationExpiresAt, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, tokenHash, expiresAt)
}

// MarkVerified implements [UserRepository].
func (repository *PostgresUserRepository) MarkVerified(context context.Context, id string) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = NULL, %s = NULL, %s = now() WHERE %s = $1`,
		account.Table, account.IsVerified, account.VerificationTokenHash, account.VerificationExpiresAt,
		account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id)
}

// SetResetToken implements [UserRepository].
func (repository *PostgresUserRepository) SetResetToken(context context.Context, id, tokenHash string, expiresAt time.Time) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = now() WHERE %s = $1`,
		account.Table, account.ResetTokenHash, account.ResetExpiresAt, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, tokenHash, expiresAt)
}

// SetRole implements [UserRepository].
func (repository *PostgresUserRepository) SetRole(context context.Context, id, roleID string) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		account.Table, account.RoleID, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, roleID)
}

// SetActive implements [UserRepository].
func (repository *PostgresUserRepository) SetActive(context context.Context, id string, active bool) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		account.Table, account.IsActive, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, active)
}

// AddLinkedProvider implements [UserRepository].
func (repository *PostgresUserRepository) AddLinkedProvider(context context.Context, id string, provider Provider) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`
		UPDATE %[1]s SET
			%[2]s = CASE WHEN $2 = ANY(%[2]s) THEN %[2]s ELSE array_append(%[2]s, $2) END,
			%[3]s = now()
		WHERE %[4]s = $1`,
		account.Table, account.LinkedProviders, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, string(provider))
}

// RemoveLinkedProvider implements [UserRepository].
func (repository *PostgresUserRepository) RemoveLinkedProvider(context context.Context, id string, provider Provider) error {
	account := schema.IAMAccount
	query := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = array_remove(%[2]s, $2), %[3]s = now() WHERE %[4]s = $1`,
		account.Table, account.LinkedProviders, account.UpdatedAt, account.ID)
	return repository.execOne(context, query, id, string(provider))
}

// Delete implements [UserRepository].
func (repository *PostgresUserRepository) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.IAMAccount.Table, schema.IAMAccount.ID)
	return repository.execOne(context, query, id)
}

func (repository *PostgresUserRepository) execOne(context context.Context, query string, args ...any) error {
	tag, err := repository.db.Exec(context, query, args...)
	if err != nil {
		return dberr.Wrap(err, resourceUser)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceUser)
	}
	return nil
}

// # Member Directory

// CountByRole implements [rbac.MemberDirectory].
func (repository *PostgresUserRepository) CountByRole(context context.Context, roleID string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`, schema.IAMAccount.Table, schema.IAMAccount.RoleID)

	var count int
	if err := repository.db.QueryRow(context, query, roleID).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, resourceUser)
	}
	return count, nil
}

// CountAllByRole implements [rbac.MemberDirectory].
func (repository *PostgresUserRepository) CountAllByRole(context context.Context) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT %[1]s, count(*) FROM %[2]s GROUP BY %[1]s`, schema.IAMAccount.RoleID, schema.IAMAccount.Table)

	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, resourceUser)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var roleID string
		var count int
		if err := rows.Scan(&roleID, &count); err != nil {
			return nil, dberr.Wrap(err, resourceUser)
		}
		counts[roleID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, resourceUser)
	}
	return counts, nil
}

// ListByRole implements [rbac.MemberDirectory].
func (repository *PostgresUserRepository) ListByRole(context context.Context, roleID string, page pagination.Params) ([]rbac.Member, int, error) {
	account := schema.IAMAccount
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, count(*) OVER ()
		FROM %s WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2 OFFSET $3`,
		account.ID, account.Email, account.FirstName, account.LastName, account.IsActive, account.CreatedAt,
		account.Table, account.RoleID, account.CreatedAt,
	)

	rows, err := repository.db.Query(context, query, roleID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, resourceUser)
	}
	defer rows.Close()

	members := []rbac.Member{}
	total := 0
	for rows.Next() {
		var member rbac.Member
		if err := rows.Scan(&member.ID, &member.Email, &member.FirstName, &member.LastName,
			&member.IsActive, &member.CreatedAt, &total); err != nil {
			return nil, 0, dberr.Wrap(err, resourceUser)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, resourceUser)
	}

	// Past the last page the window count is unavailable
	if len(members) == 0 && page.Offset() > 0 {
		if total, err = repository.CountByRole(context, roleID); err != nil {
			return nil, 0, err
		}
	}
	return members, total, nil
}

// # OAuth Link Repository

// PostgresOAuthLinkRepository implements [OAuthLinkRepository] on iam.oauthlink.
type PostgresOAuthLinkRepository struct {
	db *pgxpool.Pool
}

// NewPostgresOAuthLinkRepository constructs a new [PostgresOAuthLinkRepository].
func NewPostgresOAuthLinkRepository(db *pgxpool.Pool) *PostgresOAuthLinkRepository {
	return &PostgresOAuthLinkRepository{db: db}
}

var linkColumns = strings.Join([]string{
	schema.IAMOAuthLink.ID, schema.IAMOAuthLink.UserID, schema.IAMOAuthLink.Provider,
	schema.IAMOAuthLink.ProviderID, schema.IAMOAuthLink.AccessToken, schema.IAMOAuthLink.RefreshToken,
	schema.IAMOAuthLink.Profile, schema.IAMOAuthLink.Scopes, schema.IAMOAuthLink.IsActive,
	schema.IAMOAuthLink.LastSyncAt, schema.IAMOAuthLink.CreatedAt, schema.IAMOAuthLink.UpdatedAt,
}, ", ")

func scanLink(row pgx.Row) (*OAuthLink, error) {
	link := &OAuthLink{}
	var profile []byte

	err := row.Scan(
		&link.ID, &link.UserID, &link.Provider, &link.ProviderID, &link.AccessToken, &link.RefreshToken,
		&profile, &link.Scopes, &link.IsActive, &link.LastSyncAt, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profile, &link.Profile); err != nil {
		return nil, fmt.Errorf("auth: decode oauth profile of link %s: %w", link.ID, err)
	}
	return link, nil
}

// Upsert implements [OAuthLinkRepository].
func (repository *PostgresOAuthLinkRepository) Upsert(context context.Context, link *OAuthLink) error {
	profile := link.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("auth: encode oauth profile: %w", err)
	}

	scopes := link.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	table := schema.IAMOAuthLink
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s, %[6]s, %[7]s, %[8]s, %[9]s, %[10]s, %[11]s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
		ON CONFLICT (%[3]s, %[4]s) DO UPDATE SET
			%[5]s = EXCLUDED.%[5]s,
			%[6]s = EXCLUDED.%[6]s,
			%[7]s = EXCLUDED.%[7]s,
			%[8]s = EXCLUDED.%[8]s,
			%[9]s = EXCLUDED.%[9]s,
			%[10]s = TRUE,
			%[11]s = EXCLUDED.%[11]s,
			%[12]s = now()
		RETURNING %[2]s, %[13]s, %[12]s`,
		table.Table,
		table.ID, table.UserID, table.Provider, table.ProviderID,
		table.AccessToken, table.RefreshToken, table.Profile, table.Scopes,
		table.IsActive, table.LastSyncAt, table.UpdatedAt, table.CreatedAt,
	)

	err = repository.db.QueryRow(context, query,
		link.ID, link.UserID, link.Provider, link.ProviderID,
		link.AccessToken, link.RefreshToken, encoded, scopes, link.LastSyncAt,
	).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceOAuthLink)
	}
	link.IsActive = true
	return nil
}

// FindByProviderID implements [OAuthLinkRepository].
func (repository *PostgresOAuthLinkRepository) FindByProviderID(context context.Context, provider Provider, providerID string) (*OAuthLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s = TRUE`,
		linkColumns, schema.IAMOAuthLink.Table,
		schema.IAMOAuthLink.Provider, schema.IAMOAuthLink.ProviderID, schema.IAMOAuthLink.IsActive)

	link, err := scanLink(repository.db.QueryRow(context, query, provider, providerID))
	if err != nil {
		return nil, dberr.Wrap(err, resourceOAuthLink)
	}
	return link, nil
}

// ListByUser implements [OAuthLinkRepository].
func (repository *PostgresOAuthLinkRepository) ListByUser(context context.Context, userID string) ([]*OAuthLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = TRUE ORDER BY %s`,
		linkColumns, schema.IAMOAuthLink.Table,
		schema.IAMOAuthLink.UserID, schema.IAMOAuthLink.IsActive, schema.IAMOAuthLink.CreatedAt)

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, resourceOAuthLink)
	}
	defer rows.Close()

	links := []*OAuthLink{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, dberr.Wrap(err, resourceOAuthLink)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, resourceOAuthLink)
	}
	return links, nil
}

// Deactivate implements [OAuthLinkRepository].
func (repository *PostgresOAuthLinkRepository) Deactivate(context context.Context, userID string, provider Provider) error {
	table := schema.IAMOAuthLink
	query := fmt.Sprintf(`
		UPDATE %s SET %s = FALSE, %s = '', %s = '', %s = now()
		WHERE %s = $1 AND %s = $2 AND %s = TRUE`,
		table.Table, table.IsActive, table.AccessToken, table.RefreshToken, table.UpdatedAt,
		table.UserID, table.Provider, table.IsActive)

	tag, err := repository.db.Exec(context, query, userID, provider)
	if err != nil {
		return dberr.Wrap(err, resourceOAuthLink)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceOAuthLink)
	}
	return nil
}
