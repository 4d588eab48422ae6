// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/warden/internal/platform/apperr"
	"github.com/taibuivan/warden/internal/platform/dberr"
)

/*
TestWrap_Classification verifies the mapping from pgx errors to error kinds.
*/
func TestWrap_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no_rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"wrapped_no_rows", fmt.Errorf("query: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, apperr.KindConflict},
		{"foreign_key", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, apperr.KindConstraint},
		{"canceled_statement", &pgconn.PgError{Code: pgerrcode.QueryCanceled}, apperr.KindUnavailable},
		{"deadline", context.DeadlineExceeded, apperr.KindUnavailable},
		{"unknown", errors.New("boom"), apperr.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperr.KindOf(dberr.Wrap(tt.err, "Role")))
		})
	}

	assert.NoError(t, dberr.Wrap(nil, "Role"))
}

/*
TestWrap_PassThrough keeps already-classified errors untouched.
*/
func TestWrap_PassThrough(t *testing.T) {
	original := apperr.Constraint("blocked")
	assert.Same(t, original, dberr.Wrap(original, "Role"))
}
