package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robalyx/autoban/internal/export/types"
)

const (
	AutoBanFile = "autoban_logs.csv"
	BanFile     = "ban_logs.csv"
)

// Exporter handles exporting audit rows to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes autoban and ban records to separate csv files.
func (e *Exporter) Export(autobans []*types.AutoBanRecord, bans []*types.BanRecord) error {
	// Remove existing files if they exist
	for _, file := range []string{AutoBanFile, BanFile} {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	autobanRows := make([][]string, 0, len(autobans))
	for _, record := range autobans {
		autobanRows = append(autobanRows, []string{
			record.GuildID,
			record.User,
			strconv.FormatInt(record.RuleID, 10),
			record.Action,
			record.Reason,
			record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	err := e.writeFile(AutoBanFile,
		[]string{"guild_id", "user", "rule_id", "action", "reason", "created_at"}, autobanRows)
	if err != nil {
		return fmt.Errorf("failed to export autoban logs: %w", err)
	}

	banRows := make([][]string, 0, len(bans))
	for _, record := range bans {
		banRows = append(banRows, []string{
			record.GuildID,
			record.User,
			record.Reason,
			strconv.FormatBool(record.IsAutoban),
			record.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	err = e.writeFile(BanFile,
		[]string{"guild_id", "user", "reason", "is_autoban", "created_at"}, banRows)
	if err != nil {
		return fmt.Errorf("failed to export ban logs: %w", err)
	}

	return nil
}

// writeFile writes a header and rows to a csv file.
func (e *Exporter) writeFile(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	return nil
}
