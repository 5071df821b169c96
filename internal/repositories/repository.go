package repositories

import (
	"context"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// Repository aggregates every repository of the service.
type Repository interface {
	// Progression domain
	Unit(unitType models.UnitType) UnitRepository
	Lesson() UnitRepository
	Module() UnitRepository
	Advancement() AdvancementRepository
	Catalog() CatalogRepository

	// Support domain
	Ticket() TicketRepository
	Message() MessageRepository

	// User domain
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
