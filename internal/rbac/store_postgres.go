// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/warden/internal/access"
	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/database/schema"
	"github.com/taibuivan/warden/internal/platform/dberr"
)

// resourceRole is the human name used in store errors.
const resourceRole = "Role"

// PostgresRepository implements [Repository] on iam.role.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a new [PostgresRepository].
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var roleColumns = strings.Join(schema.IAMRole.Columns(), ", ")

func scanRole(row pgx.Row) (*Role, error) {
	role := &Role{}
	var permissions []byte

	err := row.Scan(
		&role.ID, &role.Name, &role.DisplayName, &role.Description, &permissions, &role.Level,
		&role.IsActive, &role.IsSystem, &role.UserCount, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
		return nil, fmt.Errorf("rbac: decode permissions of role %s: %w", role.ID, err)
	}
	return role, nil
}

func encodePermissions(permissions []access.Permission) ([]byte, error) {
	if permissions == nil {
		permissions = []access.Permission{}
	}
	return json.Marshal(permissions)
}

// Create implements [Repository].
func (repository *PostgresRepository) Create(context context.Context, role *Role) error {
	permissions, err := encodePermissions(role.Permissions)
	if err != nil {
		return fmt.Errorf("rbac: encode permissions: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s, %s`,
		schema.IAMRole.Table,
		schema.IAMRole.ID, schema.IAMRole.Name, schema.IAMRole.DisplayName, schema.IAMRole.Description,
		schema.IAMRole.Permissions, schema.IAMRole.Level, schema.IAMRole.IsActive, schema.IAMRole.IsSystem,
		schema.IAMRole.CreatedAt, schema.IAMRole.UpdatedAt,
	)

	err = repository.db.QueryRow(context, query,
		role.ID, role.Name, role.DisplayName, role.Description,
		permissions, role.Level, role.IsActive, role.IsSystem,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceRole)
	}
	return nil
}

// FindByID implements [Repository].
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, roleColumns, schema.IAMRole.Table, schema.IAMRole.ID)

	role, err := scanRole(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, resourceRole)
	}
	return role, nil
}

// FindByName implements [Repository].
func (repository *PostgresRepository) FindByName(context context.Context, name string) (*Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(%s) = lower($1)`, roleColumns, schema.IAMRole.Table, schema.IAMRole.Name)

	role, err := scanRole(repository.db.QueryRow(context, query, name))
	if err != nil {
		return nil, dberr.Wrap(err, resourceRole)
	}
	return role, nil
}

// List implements [Repository].
func (repository *PostgresRepository) List(context context.Context, activeOnly bool) ([]*Role, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ($1 = FALSE OR %s = TRUE) ORDER BY %s DESC, %s ASC`,
		roleColumns, schema.IAMRole.Table, schema.IAMRole.IsActive, schema.IAMRole.Level, schema.IAMRole.Name)

	rows, err := repository.db.Query(context, query, activeOnly)
	if err != nil {
		return nil, dberr.Wrap(err, resourceRole)
	}
	defer rows.Close()

	roles := make([]*Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, dberr.Wrap(err, resourceRole)
		}
		roles = append(roles, role)
	}
	return roles, dberr.Wrap(rows.Err(), resourceRole)
}

// Update implements [Repository].
func (repository *PostgresRepository) Update(context context.Context, role *Role) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = now()
		WHERE %s = $1
		RETURNING %s`,
		schema.IAMRole.Table,
		schema.IAMRole.Name, schema.IAMRole.DisplayName, schema.IAMRole.Description,
		schema.IAMRole.Level, schema.IAMRole.IsActive, schema.IAMRole.UpdatedAt,
		schema.IAMRole.ID, schema.IAMRole.UpdatedAt,
	)

	err := repository.db.QueryRow(context, query,
		role.ID, role.Name, role.DisplayName, role.Description, role.Level, role.IsActive,
	).Scan(&role.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, resourceRole)
	}
	return nil
}

// UpdatePermissions implements [Repository].
func (repository *PostgresRepository) UpdatePermissions(context context.Context, id string, permissions []access.Permission) error {
	encoded, err := encodePermissions(permissions)
	if err != nil {
		return fmt.Errorf("rbac: encode permissions: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		schema.IAMRole.Table, schema.IAMRole.Permissions, schema.IAMRole.UpdatedAt, schema.IAMRole.ID)

	return repository.execOne(context, query, id, encoded)
}

// SetUserCount implements [Repository].
func (repository *PostgresRepository) SetUserCount(context context.Context, id string, count int) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.IAMRole.Table, schema.IAMRole.UserCount, schema.IAMRole.ID)

	return repository.execOne(context, query, id, count)
}

// Delete implements [Repository].
func (repository *PostgresRepository) Delete(context context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.IAMRole.Table, schema.IAMRole.ID)

	return repository.execOne(context, query, id)
}

// execOne runs a statement that must touch exactly one row.
func (repository *PostgresRepository) execOne(context context.Context, query string, args ...any) error {
	tag, err := repository.db.Exec(context, query, args...)
	if err != nil {
		return dberr.Wrap(err, resourceRole)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resourceRole)
	}
	return nil
}
