package database

import (
	"github.com/robalyx/autoban/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
// A repository built from a bun.Tx runs every model operation in that transaction.
type Repository struct {
	rule   *models.RuleModel
	audit  *models.AuditModel
	config *models.ConfigModel
	intro  *models.IntroPostModel
	event  *models.EventModel
	health *models.HealthModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db bun.IDB, logger *zap.Logger) *Repository {
	return &Repository{
		rule:   models.NewRule(db, logger),
		audit:  models.NewAudit(db, logger),
		config: models.NewConfig(db, logger),
		intro:  models.NewIntroPost(db, logger),
		event:  models.NewEvent(db, logger),
		health: models.NewHealth(db, logger),
	}
}

// Rule returns the autoban rule model repository.
func (r *Repository) Rule() *models.RuleModel {
	return r.rule
}

// Audit returns the autoban and ban log model repository.
func (r *Repository) Audit() *models.AuditModel {
	return r.audit
}

// Config returns the autoban config model repository.
func (r *Repository) Config() *models.ConfigModel {
	return r.config
}

// IntroPost returns the intro post model repository.
func (r *Repository) IntroPost() *models.IntroPostModel {
	return r.intro
}

// Event returns the processed event ledger repository.
func (r *Repository) Event() *models.EventModel {
	return r.event
}

// Health returns the health config model repository.
func (r *Repository) Health() *models.HealthModel {
	return r.health
}
