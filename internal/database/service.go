package database

import (
	"github.com/robalyx/autoban/internal/database/service"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	event *service.EventService
}

// NewService creates a new service instance with all services.
func NewService(repository *Repository, logger *zap.Logger) *Service {
	eventModel := repository.Event()

	return &Service{
		event: service.NewEvent(eventModel, eventModel, logger),
	}
}

// Event returns the processed event ledger service.
func (s *Service) Event() *service.EventService {
	return s.event
}
