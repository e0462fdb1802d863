package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robalyx/autoban/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// File is the name of the exported database.
const File = "audit.db"

const batchSize = 1000

// Exporter handles exporting audit rows to a SQLite database.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes autoban and ban records to the autoban_logs and ban_logs tables.
func (e *Exporter) Export(autobans []*types.AutoBanRecord, bans []*types.BanRecord) error {
	path := filepath.Join(e.outDir, File)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", File, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	err = sqlitex.ExecuteScript(conn, `
		CREATE TABLE autoban_logs (
			guild_id TEXT NOT NULL,
			user TEXT NOT NULL,
			rule_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE ban_logs (
			guild_id TEXT NOT NULL,
			user TEXT NOT NULL,
			reason TEXT NOT NULL,
			is_autoban INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX idx_autoban_logs_guild ON autoban_logs (guild_id, created_at);
		CREATE INDEX idx_ban_logs_guild ON ban_logs (guild_id, created_at);
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	err = insertBatches(conn, len(autobans),
		"INSERT INTO autoban_logs (guild_id, user, rule_id, action, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		func(i int) []any {
			r := autobans[i]
			return []any{r.GuildID, r.User, r.RuleID, r.Action, r.Reason, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")}
		})
	if err != nil {
		return fmt.Errorf("failed to export autoban logs: %w", err)
	}

	err = insertBatches(conn, len(bans),
		"INSERT INTO ban_logs (guild_id, user, reason, is_autoban, created_at) VALUES (?, ?, ?, ?, ?)",
		func(i int) []any {
			r := bans[i]
			return []any{r.GuildID, r.User, r.Reason, r.IsAutoban, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")}
		})
	if err != nil {
		return fmt.Errorf("failed to export ban logs: %w", err)
	}

	return nil
}

// insertBatches inserts n rows, committing every batchSize rows.
func insertBatches(conn *sqlite.Conn, n int, query string, args func(i int) []any) error {
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)

		if err := insertBatch(conn, start, end, query, args); err != nil {
			return err
		}
	}

	return nil
}

func insertBatch(conn *sqlite.Conn, start, end int, query string, args func(i int) []any) (err error) {
	defer sqlitex.Save(conn)(&err)

	for i := start; i < end; i++ {
		if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args(i)}); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}
