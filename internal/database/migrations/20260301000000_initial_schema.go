package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return CreateSchema(ctx, db)
	}, func(ctx context.Context, db *bun.DB) error {
		return DropSchema(ctx, db)
	})
}

// tables lists every model in creation order. Referenced tables come first.
func tables() []any {
	return []any{
		(*types.AutoBanRule)(nil),
		(*types.AutoBanLog)(nil),
		(*types.AutoBanConfig)(nil),
		(*types.BanLog)(nil),
		(*types.IntroPost)(nil),
		(*types.ProcessedEvent)(nil),
		(*types.HealthConfig)(nil),
	}
}

// CreateSchema creates all tables and indexes using dialect-neutral builders.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables() {
		query := db.NewCreateTable().Model(model).IfNotExists()

		if _, ok := model.(*types.AutoBanLog); ok {
			query = query.ForeignKey(`("rule_id") REFERENCES "autoban_rules" ("id") ON DELETE CASCADE`)
		}

		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*types.AutoBanRule)(nil), "idx_autoban_rules_guild_id", []string{"guild_id"}},
		{(*types.AutoBanLog)(nil), "idx_autoban_logs_guild_created", []string{"guild_id", "created_at"}},
		{(*types.AutoBanLog)(nil), "idx_autoban_logs_rule_id", []string{"rule_id"}},
		{(*types.BanLog)(nil), "idx_ban_logs_guild_created", []string{"guild_id", "created_at"}},
		{(*types.ProcessedEvent)(nil), "idx_processed_events_created_at", []string{"created_at"}},
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// DropSchema drops all tables in reverse creation order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	models := tables()
	for i := len(models) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(models[i]).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", models[i], err)
		}
	}

	return nil
}
