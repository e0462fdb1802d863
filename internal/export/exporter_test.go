package export_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/autoban/internal/database/dbtest"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/robalyx/autoban/internal/export"
	exportCSV "github.com/robalyx/autoban/internal/export/csv"
	"github.com/robalyx/autoban/internal/export/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		config  export.Config
		wantErr error
		check   func(t *testing.T, c *export.Config)
	}{
		{
			name:   "defaults",
			config: export.Config{Since: since},
			check: func(t *testing.T, c *export.Config) {
				t.Helper()
				assert.Equal(t, export.HashTypeNone, c.HashType)
				assert.Equal(t, export.DefaultBatchSize, c.BatchSize)
				assert.False(t, c.Until.IsZero())
			},
		},
		{
			name:   "argon2id defaults",
			config: export.Config{Since: since, HashType: export.HashTypeArgon2id},
			check: func(t *testing.T, c *export.Config) {
				t.Helper()
				assert.Equal(t, uint32(1), c.Iterations)
				assert.Equal(t, uint32(16), c.Memory)
			},
		},
		{
			name:    "unknown hash",
			config:  export.Config{Since: since, HashType: "md5"},
			wantErr: export.ErrInvalidHashType,
		},
		{
			name:    "empty range",
			config:  export.Config{Since: since, Until: since},
			wantErr: export.ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := tt.config
			err := config.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, &config)
		})
	}
}

func TestExportAll(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	db := dbtest.Open(t)
	audit := db.Model().Audit()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	reason := "[Autoban] No avatar set"

	require.NoError(t, audit.CreateAutoBanLog(ctx, &types.AutoBanLog{
		GuildID: "1", UserID: "12345", Username: "a", RuleID: 3,
		ActionTaken: enum.ActionTakenBanned, Reason: "No avatar set", CreatedAt: base,
	}))
	require.NoError(t, audit.CreateAutoBanLog(ctx, &types.AutoBanLog{
		GuildID: "1", UserID: "54321", Username: "b", RuleID: 3,
		ActionTaken: enum.ActionTakenKicked, Reason: "old", CreatedAt: base.Add(-48 * time.Hour),
	}))
	require.NoError(t, audit.CreateBanLog(ctx, &types.BanLog{
		GuildID: "1", UserID: "12345", Username: "a", Reason: &reason, IsAutoban: true, CreatedAt: base,
	}))

	config := &export.Config{
		Since:       base.Add(-time.Hour),
		Until:       base.Add(time.Hour),
		HashType:    export.HashTypeSHA256,
		Salt:        "test_salt",
		Concurrency: 2,
	}
	require.NoError(t, config.Validate())

	dir := t.TempDir()
	stats, err := export.New(db, dir, config, nil, zap.NewNop()).ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, &export.Stats{AutoBanLogs: 1, BanLogs: 1}, stats)

	assert.FileExists(t, filepath.Join(dir, sqlite.File))
	assert.FileExists(t, filepath.Join(dir, exportCSV.BanFile))

	file, err := os.Open(filepath.Join(dir, exportCSV.AutoBanFile))
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ce3807a728757fad6c9eb6f3934c71363857bca5f8f9d7a67452543acf47ac42", rows[1][1])
	assert.Equal(t, "banned", rows[1][3])

	data, err := os.ReadFile(filepath.Join(dir, export.ConfigFile))
	require.NoError(t, err)

	var written map[string]any
	require.NoError(t, sonic.Unmarshal(data, &written))
	assert.Equal(t, export.EngineVersion, written["engineVersion"])
	assert.Equal(t, "sha256", written["hashType"])
	assert.NotContains(t, written, "salt")
}

func TestExportUnsupportedFormat(t *testing.T) {
	t.Parallel()

	config := &export.Config{Since: time.Now().Add(-time.Hour)}
	require.NoError(t, config.Validate())

	_, err := export.New(dbtest.Open(t), t.TempDir(), config, []export.Format{"xml"}, zap.NewNop()).
		ExportAll(t.Context())
	require.ErrorIs(t, err, export.ErrUnsupportedFormat)
}
