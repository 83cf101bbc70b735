package db

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitPostgres_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		dsn        string
		wantSubstr string
	}{
		{"invalid DSN", "some=random", "ping postgres"},
		{"empty DSN", "", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := InitPostgres(context.Background(), tc.dsn)
			if err == nil {
				t.Fatalf("InitPostgres(%q) did not return error", tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("InitPostgres(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestMigrate_WrapsGooseError(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })

	boom := errors.New("boom")
	gooseUp = func(context.Context, *sql.DB) error { return boom }

	err := Migrate(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "migrate schema")
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := fs.ReadFile(migrations, "migrations/00001_init.sql")
	require.NoError(t, err)
	for _, table := range []string{"users", "user_meta", "permissions", "relations", "favorites", "reminders", "activities"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
