package models

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/autoban/internal/database/dbretry"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// EventModel is the processed event ledger shared by every bot instance.
type EventModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewEvent creates a new event model instance.
func NewEvent(db bun.IDB, logger *zap.Logger) *EventModel {
	return &EventModel{
		db:     db,
		logger: logger.Named("db_event"),
	}
}

// Claim inserts the key in a single constrained statement.
// It returns true only for the caller whose insert created the row.
func (m *EventModel) Claim(ctx context.Context, key string) (bool, error) {
	event := &types.ProcessedEvent{
		EventKey:  key,
		CreatedAt: time.Now().UTC(),
	}

	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewInsert().
			Model(event).
			On("CONFLICT (event_key) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			if dbretry.IsUniqueViolation(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to claim event: %w (key=%s)", err, key)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read claim result: %w (key=%s)", err, key)
		}

		return affected > 0, nil
	})
}

// CleanupExpired deletes claims older than ttl and returns how many were removed.
func (m *EventModel) CleanupExpired(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		result, err := m.db.NewDelete().
			Model((*types.ProcessedEvent)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to clean up processed events: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read cleanup result: %w", err)
		}

		return int(affected), nil
	})
}
