package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/autoban/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// queryRows returns every row of a query as text columns.
func queryRows(t *testing.T, path, query string, columns int) [][]string {
	t.Helper()

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var rows [][]string
	err = sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := make([]string, columns)
			for i := range columns {
				row[i] = stmt.ColumnText(i)
			}
			rows = append(rows, row)
			return nil
		},
	})
	require.NoError(t, err)

	return rows
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	autobans := []*types.AutoBanRecord{
		{GuildID: "1", User: "42", RuleID: 7, Action: "banned", Reason: "No avatar set", CreatedAt: created},
		{GuildID: "1", User: "43", RuleID: 8, Action: "kicked", Reason: "Joined VC within 30s of joining", CreatedAt: created},
	}
	bans := []*types.BanRecord{
		{GuildID: "1", User: "42", Reason: "[Autoban] No avatar set", IsAutoban: true, CreatedAt: created},
	}

	require.NoError(t, New(dir).Export(autobans, bans))

	path := filepath.Join(dir, File)
	assert.Equal(t, [][]string{
		{"42", "7", "banned", "2026-03-04T05:06:07Z"},
		{"43", "8", "kicked", "2026-03-04T05:06:07Z"},
	}, queryRows(t, path, "SELECT user, rule_id, action, created_at FROM autoban_logs ORDER BY rule_id", 4))

	assert.Equal(t, [][]string{
		{"42", "[Autoban] No avatar set", "1"},
	}, queryRows(t, path, "SELECT user, reason, is_autoban FROM ban_logs", 3))
}

func TestExporter_LargeBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	autobans := make([]*types.AutoBanRecord, 0, batchSize*2+5)
	for i := range batchSize*2 + 5 {
		autobans = append(autobans, &types.AutoBanRecord{GuildID: "1", User: "u", RuleID: int64(i), Action: "banned"})
	}

	require.NoError(t, New(dir).Export(autobans, nil))

	rows := queryRows(t, filepath.Join(dir, File), "SELECT COUNT(*) FROM autoban_logs", 1)
	assert.Equal(t, [][]string{{"2005"}}, rows)
}

func TestExporter_ExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, File)

	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))

	records := []*types.AutoBanRecord{{GuildID: "1", User: "42", RuleID: 1, Action: "banned"}}
	require.NoError(t, New(dir).Export(records, nil))
	require.NoError(t, New(dir).Export(records, nil))

	rows := queryRows(t, path, "SELECT COUNT(*) FROM autoban_logs", 1)
	assert.Equal(t, [][]string{{"1"}}, rows)
}

func TestExporter_DatabaseSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, New(dir).Export(nil, nil))

	rows := queryRows(t, filepath.Join(dir, File),
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name", 1)
	assert.Equal(t, [][]string{{"autoban_logs"}, {"ban_logs"}}, rows)
}
