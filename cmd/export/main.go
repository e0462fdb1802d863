package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/robalyx/autoban/internal/export"
	"github.com/robalyx/autoban/internal/setup"
	"github.com/robalyx/autoban/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// ExportLogDir specifies where export log files are stored.
	ExportLogDir = "logs/export_logs"
)

var ErrInvalidTime = errors.New("invalid time")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "export",
		Usage: "Export autoban and ban logs to CSV and SQLite files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "exports",
				Usage:   "Base output directory for export files",
			},
			&cli.DurationFlag{
				Name:  "window",
				Value: 30 * 24 * time.Hour,
				Usage: "Export logs created within this window before --until",
			},
			&cli.StringFlag{
				Name:  "until",
				Usage: "End of the export range as RFC3339 or YYYY-MM-DD (default now)",
			},
			&cli.StringSliceFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Formats to write (sqlite, csv)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Export description",
			},
			&cli.StringFlag{
				Name:    "hash-type",
				Aliases: []string{"t"},
				Value:   string(export.HashTypeNone),
				Usage:   "Pseudonymize user ids (none, sha256, argon2id)",
			},
			&cli.StringFlag{
				Name:    "salt",
				Aliases: []string{"s"},
				Usage:   "Salt for hashing user ids",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "Number of concurrent hash operations",
				Value:   1,
			},
			&cli.UintFlag{
				Name:    "iterations",
				Aliases: []string{"i"},
				Usage:   "Number of hash iterations",
			},
			&cli.UintFlag{
				Name:    "memory",
				Aliases: []string{"m"},
				Usage:   "Memory to use for Argon2id in MB",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			// Validate the configuration before touching the database
			config, err := getExportConfig(c)
			if err != nil {
				return fmt.Errorf("failed to get export configuration: %w", err)
			}

			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			// Create timestamped output directory
			timestamp := time.Now().UTC().Format("2006-01-02_150405")
			outDir := filepath.Join(c.String("output"), timestamp)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			formats := make([]export.Format, 0, len(c.StringSlice("format")))
			for _, format := range c.StringSlice("format") {
				formats = append(formats, export.Format(format))
			}

			exporter := export.New(app.DB, outDir, config, formats, app.Logger)

			stats, err := exporter.ExportAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to export data: %w", err)
			}

			app.Logger.Info("Export completed",
				zap.String("out_dir", outDir),
				zap.Int("autoban_logs", stats.AutoBanLogs),
				zap.Int("ban_logs", stats.BanLogs))

			fmt.Printf("Exported %d autoban logs and %d ban logs to %s\n",
				stats.AutoBanLogs, stats.BanLogs, outDir)

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// getExportConfig builds and validates the export configuration from CLI flags.
func getExportConfig(c *cli.Command) (*export.Config, error) {
	until := time.Now().UTC()
	if value := c.String("until"); value != "" {
		parsed, err := parseTime(value)
		if err != nil {
			return nil, err
		}
		until = parsed
	}

	config := &export.Config{
		Description: c.String("description"),
		Since:       until.Add(-c.Duration("window")),
		Until:       until,
		HashType:    export.HashType(c.String("hash-type")),
		Salt:        c.String("salt"),
		Concurrency: int(c.Int("concurrency")),
		Iterations:  uint32(c.Uint("iterations")), //nolint:gosec // -
		Memory:      uint32(c.Uint("memory")),     //nolint:gosec // -
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// parseTime accepts RFC3339 timestamps and plain dates.
func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
}
