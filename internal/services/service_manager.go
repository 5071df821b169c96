package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ServiceManagerConfig holds the collaborators shared by every service
type ServiceManagerConfig struct {
	Publisher   events.EventPublisher
	Broadcaster Broadcaster
	// Location renders and buckets timestamps, such as the daily advancement marker
	Location *time.Location
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repoManager repositories.RepositoryManager
	repo        repositories.Repository
	logger      *slog.Logger
	validator   *validator.Validator
	config      ServiceManagerConfig

	// Service instances
	progressionService ProgressionService
	questionService    QuestionService
	catalogService     CatalogService
	supportService     SupportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(repoManager repositories.RepositoryManager, logger *slog.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Broadcaster == nil {
		config.Broadcaster = NoopBroadcaster()
	}
	if config.Publisher == nil {
		config.Publisher = events.NewMockEventPublisher(logger)
	}

	return &serviceManager{
		repoManager: repoManager,
		logger:      logger,
		validator:   validator,
		config:      config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.repo = sm.repoManager.GetRepository()
	if sm.repo == nil {
		return fmt.Errorf("failed to initialize services: repository not initialized")
	}

	cfg := sm.config
	sm.progressionService = NewProgressionService(sm.repo, sm.logger, sm.validator, cfg.Publisher, cfg.Location)
	sm.questionService = NewQuestionService(sm.repo, sm.logger, sm.validator)
	sm.catalogService = NewCatalogService(sm.repo, sm.logger, cfg.Location)
	sm.supportService = NewSupportService(sm.repo, sm.logger, sm.validator, cfg.Publisher, cfg.Broadcaster, cfg.Location)

	sm.initialized = true
	sm.logger.Info("Service manager initialized", "timezone", cfg.Location.String())

	return nil
}

// ready panics when a getter is called before Initialize. Callers hold mu.
func (sm *serviceManager) ready() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) Progression() ProgressionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.progressionService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.questionService
}

func (sm *serviceManager) Catalog() CatalogService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.catalogService
}

func (sm *serviceManager) Support() SupportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.supportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repoManager.HealthCheck(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.config.Publisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	if err := sm.repoManager.Shutdown(ctx); err != nil {
		sm.logger.Error("Failed to shutdown repository manager", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
