// Package dbtest opens in-memory databases with the production schema for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

var counter atomic.Int64 //nolint:gochecknoglobals // -

// OpenDB returns a bun database backed by a private in-memory SQLite database.
func OpenDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:autoban_test_%d?mode=memory&cache=shared", counter.Add(1))

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and serializes transactions
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(t.Context(), "PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	require.NoError(t, migrations.CreateSchema(t.Context(), db))

	return db
}

// Open returns a database client backed by OpenDB.
func Open(t *testing.T) database.Client {
	t.Helper()
	return database.NewFromDB(OpenDB(t), zap.NewNop())
}
