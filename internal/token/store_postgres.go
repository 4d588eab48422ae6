// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/database/schema"
	"github.com/taibuivan/warden/internal/platform/dberr"
)

const resourceToken = "Token"

// PostgresRepository implements [Repository] on iam.token.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a new [PostgresRepository].
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var tokenColumns = strings.Join(schema.IAMToken.Columns(), ", ")

func scanRecord(row pgx.Row) (*Record, error) {
	record := &Record{}
	var reason *string

	err := row.Scan(
		&record.ID, &record.UserID, &record.TokenHash, &record.Type, &record.ExpiresAt,
		&record.IsRevoked, &record.RevokedAt, &reason,
		&record.IPAddress, &record.UserAgent,
		&record.Device.Browser, &record.Device.OS, &record.Device.Class,
		&record.LastUsedAt, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		record.RevokedReason = Reason(*reason)
	}
	return record, nil
}

// Create implements [Repository].
func (repository *PostgresRepository) Create(context context.Context, record *Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s`,
		schema.IAMToken.Table,
		schema.IAMToken.ID, schema.IAMToken.UserID, schema.IAMToken.TokenHash, schema.IAMToken.Type,
		schema.IAMToken.ExpiresAt, schema.IAMToken.IPAddress, schema.IAMToken.UserAgent,
		schema.IAMToken.Browser, schema.IAMToken.OS, schema.IAMToken.DeviceClass,
		schema.IAMToken.CreatedAt,
	)

	err := repository.db.QueryRow(context, query,
		record.ID, record.UserID, record.TokenHash, record.Type, record.ExpiresAt,
		record.IPAddress, record.UserAgent,
		record.Device.Browser, record.Device.OS, record.Device.Class,
	).Scan(&record.CreatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceToken)
	}
	return nil
}

// FindByHash implements [Repository].
func (repository *PostgresRepository) FindByHash(context context.Context, tokenHash string) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, tokenColumns, schema.IAMToken.Table, schema.IAMToken.TokenHash)

	record, err := scanRecord(repository.db.QueryRow(context, query, tokenHash))
	if err != nil {
		return nil, dberr.Wrap(err, resourceToken)
	}
	return record, nil
}

// FindByID implements [Repository].
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, tokenColumns, schema.IAMToken.Table, schema.IAMToken.ID)

	record, err := scanRecord(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, resourceToken)
	}
	return record, nil
}

// ListActiveByUser implements [Repository].
func (repository *PostgresRepository) ListActiveByUser(context context.Context, userID string, now time.Time) ([]*Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > $2
		ORDER BY %s DESC`,
		tokenColumns, schema.IAMToken.Table,
		schema.IAMToken.UserID, schema.IAMToken.IsRevoked, schema.IAMToken.ExpiresAt,
		schema.IAMToken.CreatedAt,
	)

	rows, err := repository.db.Query(context, query, userID, now)
	if err != nil {
		return nil, dberr.Wrap(err, resourceToken)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, dberr.Wrap(err, resourceToken)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, resourceToken)
	}
	return records, nil
}

// Touch implements [Repository].
func (repository *PostgresRepository) Touch(context context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.IAMToken.Table, schema.IAMToken.LastUsedAt, schema.IAMToken.ID)

	tag, err := repository.db.Exec(context, query, id, at)
	if err != nil {
		return dberr.Wrap(err, resourceToken)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceToken)
	}
	return nil
}

// Revoke implements [Repository].
//
// The conditional update and the existence probe run in one statement so that
// "already revoked" and "missing" are told apart without a race.
func (repository *PostgresRepository) Revoke(context context.Context, id string, reason Reason, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		WITH changed AS (
			UPDATE %[1]s SET %[2]s = TRUE, %[3]s = $2, %[4]s = $3
			WHERE %[5]s = $1 AND %[2]s = FALSE
			RETURNING %[5]s
		)
		SELECT EXISTS (SELECT 1 FROM changed), EXISTS (SELECT 1 FROM %[1]s WHERE %[5]s = $1)`,
		schema.IAMToken.Table, schema.IAMToken.IsRevoked, schema.IAMToken.RevokedAt,
		schema.IAMToken.RevokedReason, schema.IAMToken.ID,
	)

	var changed, exists bool
	if err := repository.db.QueryRow(context, query, id, at, string(reason)).Scan(&changed, &exists); err != nil {
		return false, dberr.Wrap(err, resourceToken)
	}
	if !changed && !exists {
		return false, apperr.NotFound(resourceToken)
	}
	return changed, nil
}

// RevokeAllForUser implements [Repository].
func (repository *PostgresRepository) RevokeAllForUser(context context.Context, userID string, reason Reason, at time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE, %s = $2, %s = $3
		WHERE %s = $1 AND %s = FALSE`,
		schema.IAMToken.Table,
		schema.IAMToken.IsRevoked, schema.IAMToken.RevokedAt, schema.IAMToken.RevokedReason,
		schema.IAMToken.UserID, schema.IAMToken.IsRevoked,
	)

	tag, err := repository.db.Exec(context, query, userID, at, string(reason))
	if err != nil {
		return 0, dberr.Wrap(err, resourceToken)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired implements [Repository].
func (repository *PostgresRepository) DeleteExpired(context context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, schema.IAMToken.Table, schema.IAMToken.ExpiresAt)

	tag, err := repository.db.Exec(context, query, now)
	if err != nil {
		return 0, dberr.Wrap(err, resourceToken)
	}
	return tag.RowsAffected(), nil
}

// DeleteRevokedBefore implements [Repository].
func (repository *PostgresRepository) DeleteRevokedBefore(context context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = TRUE AND %s < $1`,
		schema.IAMToken.Table, schema.IAMToken.IsRevoked, schema.IAMToken.RevokedAt)

	tag, err := repository.db.Exec(context, query, cutoff)
	if err != nil {
		return 0, dberr.Wrap(err, resourceToken)
	}
	return tag.RowsAffected(), nil
}
