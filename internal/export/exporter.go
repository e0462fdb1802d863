package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/autoban/internal/database"
	dbTypes "github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/export/csv"
	"github.com/robalyx/autoban/internal/export/sqlite"
	"github.com/robalyx/autoban/internal/export/types"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidHashType   = errors.New("invalid hash type")
	ErrInvalidRange      = errors.New("invalid time range")
)

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"

	// ConfigFile is written next to the exported files.
	ConfigFile = "export_config.json"

	// DefaultBatchSize is the number of rows streamed per query.
	DefaultBatchSize = 500
)

// Config holds the configuration for exports.
type Config struct {
	Description string    `json:"description"`
	Since       time.Time `json:"since"`
	Until       time.Time `json:"until"`
	HashType    HashType  `json:"hashType"`
	Salt        string    `json:"-"`
	Iterations  uint32    `json:"iterations,omitempty"`
	Memory      uint32    `json:"memory,omitempty"`
	Concurrency int       `json:"-"`
	BatchSize   int       `json:"-"`
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.HashType == "" {
		c.HashType = HashTypeNone
	}
	if !c.HashType.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidHashType, c.HashType)
	}
	if c.HashType != HashTypeNone && c.Iterations == 0 {
		c.Iterations = 1
	}
	if c.HashType == HashTypeArgon2id && c.Memory == 0 {
		c.Memory = 16
	}
	if c.Until.IsZero() {
		c.Until = time.Now().UTC()
	}
	if !c.Since.Before(c.Until) {
		return fmt.Errorf("%w: since %s is not before until %s", ErrInvalidRange, c.Since, c.Until)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return nil
}

// Stats summarizes one export run.
type Stats struct {
	AutoBanLogs int
	BanLogs     int
}

// Exporter handles exporting audit logs.
type Exporter struct {
	db      database.Client
	outDir  string
	config  *Config
	formats []Format
	logger  *zap.Logger
}

// New creates a new exporter instance. The config must be validated.
func New(db database.Client, outDir string, config *Config, formats []Format, logger *zap.Logger) *Exporter {
	if len(formats) == 0 {
		formats = []Format{FormatSQLite, FormatCSV}
	}

	return &Exporter{
		db:      db,
		outDir:  outDir,
		config:  config,
		formats: formats,
		logger:  logger.Named("export"),
	}
}

// ExportAll exports the audit logs of the configured range in every format.
func (e *Exporter) ExportAll(ctx context.Context) (*Stats, error) {
	e.logger.Info("Starting export",
		zap.Time("since", e.config.Since),
		zap.Time("until", e.config.Until),
		zap.String("hash_type", string(e.config.HashType)),
		zap.String("out_dir", e.outDir))

	autobans, bans, err := e.collect(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Fetched audit logs",
		zap.Int("autoban_logs", len(autobans)),
		zap.Int("ban_logs", len(bans)))

	if err := e.writeConfig(); err != nil {
		return nil, err
	}

	for _, format := range e.formats {
		if err := e.export(format, autobans, bans); err != nil {
			return nil, fmt.Errorf("failed to export %s format: %w", format, err)
		}

		e.logger.Info("Wrote export format", zap.String("format", string(format)))
	}

	return &Stats{AutoBanLogs: len(autobans), BanLogs: len(bans)}, nil
}

// collect streams both audit tables and converts them to export records.
func (e *Exporter) collect(ctx context.Context) ([]*types.AutoBanRecord, []*types.BanRecord, error) {
	audit := e.db.Model().Audit()
	hasher := NewHasher(e.config)

	var autobans []*types.AutoBanRecord

	err := audit.StreamAutoBanLogs(ctx, e.config.Since, e.config.Until, e.config.BatchSize,
		func(batch []*dbTypes.AutoBanLog) error {
			userIDs := make([]string, len(batch))
			for i, log := range batch {
				userIDs[i] = log.UserID
			}
			users := hasher.HashAll(userIDs)

			for i, log := range batch {
				autobans = append(autobans, &types.AutoBanRecord{
					GuildID:   log.GuildID,
					User:      users[i],
					RuleID:    log.RuleID,
					Action:    log.ActionTaken.String(),
					Reason:    log.Reason,
					CreatedAt: log.CreatedAt,
				})
			}
			return nil
		})
	if err != nil {
		return nil, nil, err
	}

	var bans []*types.BanRecord

	err = audit.StreamBanLogs(ctx, e.config.Since, e.config.Until, e.config.BatchSize,
		func(batch []*dbTypes.BanLog) error {
			userIDs := make([]string, len(batch))
			for i, log := range batch {
				userIDs[i] = log.UserID
			}
			users := hasher.HashAll(userIDs)

			for i, log := range batch {
				reason := ""
				if log.Reason != nil {
					reason = *log.Reason
				}

				bans = append(bans, &types.BanRecord{
					GuildID:   log.GuildID,
					User:      users[i],
					Reason:    reason,
					IsAutoban: log.IsAutoban,
					CreatedAt: log.CreatedAt,
				})
			}
			return nil
		})
	if err != nil {
		return nil, nil, err
	}

	return autobans, bans, nil
}

// writeConfig saves the export configuration next to the exported files.
func (e *Exporter) writeConfig() error {
	jsonConfig := struct {
		*Config

		EngineVersion string `json:"engineVersion"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
	}

	configData, err := sonic.ConfigStd.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, ConfigFile), configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, autobans []*types.AutoBanRecord, bans []*types.BanRecord) error {
	var exporter interface {
		Export(autobans []*types.AutoBanRecord, bans []*types.BanRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(autobans, bans)
}
