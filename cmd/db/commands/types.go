package commands

import (
	"errors"

	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired   = errors.New("NAME argument required")
	ErrGuildRequired  = errors.New("--guild is required")
	ErrRuleIDRequired = errors.New("RULE_ID argument required")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Admin    *autoban.Admin
	Logger   *zap.Logger
}
