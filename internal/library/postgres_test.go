/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package library

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openPGForTest connects to GFN_PG_DSN, skipping when unset or unreachable,
// and empties the library tables.
func openPGForTest(t *testing.T, opts Options) *SQLStore {
	t.Helper()
	dsn := os.Getenv("GFN_PG_DSN")
	if dsn == "" {
		t.Skip("GFN_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := OpenPostgres(ctx, dsn, opts)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	_, err = st.DB().ExecContext(ctx, `TRUNCATE script_snapshots, elements, scripts, meta RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgres_MigrationsRecorded(t *testing.T) {
	st := openPGForTest(t, Options{})
	ctx := context.Background()
	files, err := migrationFiles()
	require.NoError(t, err)

	var n int
	require.NoError(t, st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(files), n)

	// applying again is a no-op
	require.NoError(t, applyMigrations(ctx, st.DB()))
	require.NoError(t, st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, len(files), n)
}

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	var last int64
	for _, f := range files {
		v, err := parseVersion(f)
		require.NoError(t, err, f)
		assert.Greater(t, v, last)
		last = v
	}
	_, err = parseVersion("init.sql")
	assert.Error(t, err)
	_, err = parseVersion("abc_init.sql")
	assert.Error(t, err)
}
