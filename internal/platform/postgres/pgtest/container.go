// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

//go:build integration

// Package pgtest starts a throwaway PostgreSQL for repository integration tests.
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/taibuivan/warden/internal/platform/migration"
	pgstore "github.com/taibuivan/warden/internal/platform/postgres"
)

const image = "postgres:16-alpine"

// NewPool starts a container, applies every migration and returns a pool.
// The container is terminated when the test ends. Tests skip when no
// container runtime is available.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("container runtime not available, skipping integration test")
	}
	_ = provider.Close()

	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("warden_test"),
		postgres.WithUsername("warden"),
		postgres.WithPassword("warden_test_password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		// Fresh context: the test context is already cancelled here
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := testcontainers.TerminateContainer(container, testcontainers.StopContext(cleanupCtx)); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, migration.RunUp(dsn, migrationsDir(t), logger))

	pool, err := pgstore.NewPool(ctx, dsn, 5*time.Second, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// migrationsDir resolves data/migrations from this file's location.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir, err := filepath.Abs(filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "data", "migrations"))
	require.NoError(t, err)
	return dir
}
