package commands

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// CleanupCommands returns the ledger housekeeping commands.
func CleanupCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "cleanup",
			Usage: "Delete processed event keys older than the retention",
			Description: `Delete rows of the processed event ledger whose age exceeds the retention.
The bot runs the same cleanup after every heartbeat.

Examples:
  db cleanup                  # Use the default 1h retention
  db cleanup --retention 24h  # Keep one day of keys`,
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "retention",
					Usage: "Age after which event keys are deleted",
					Value: time.Hour,
				},
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				retention := c.Duration("retention")

				deleted, err := deps.DB.Model().Event().CleanupExpired(ctx, retention)
				if err != nil {
					return err
				}

				deps.Logger.Info("Cleaned up processed events",
					zap.Duration("retention", retention),
					zap.Int("deleted", deleted))

				return nil
			},
		},
	}
}
