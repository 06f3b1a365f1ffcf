package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/repo"
)

// ConfigurationStore — хранилище конфигураций кластеров.
type ConfigurationStore interface {
	List(ctx context.Context, namespace string) ([]domain.Configuration, error)
	Get(ctx context.Context, namespace, name string) (*domain.Configuration, error)
	Put(ctx context.Context, cfg *domain.Configuration) error
	Delete(ctx context.Context, namespace, name string) error
}

// FunctionStore — хранилище launch-функций.
type FunctionStore interface {
	List(ctx context.Context, namespace string) ([]domain.LaunchFunction, error)
	Get(ctx context.Context, namespace, name string) (*domain.LaunchFunction, error)
	Put(ctx context.Context, fn *domain.LaunchFunction) error
	Delete(ctx context.Context, namespace, name string) error
}

// RunStore — хранилище runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetByIdempotencyKey(ctx context.Context, namespace, launchFunction, key string) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	CancelPending(ctx context.Context, run *domain.Run, reason string) error
}

// NodeStore — история узлов runs.
type NodeStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.NodeExecution, error)
	FindByToken(ctx context.Context, token string) (*domain.NodeExecution, error)
}

// Publisher публикует события для координатора.
type Publisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
	PublishRunCancel(ctx context.Context, runID uuid.UUID, reason string) error
	PublishStepCompleted(ctx context.Context, payload mq.StepCompletedPayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	configs   ConfigurationStore
	functions FunctionStore
	runs      RunStore
	nodes     NodeStore
	publisher Publisher
	resolver  param.Resolver
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Configurations ConfigurationStore
	Functions      FunctionStore
	Runs           RunStore
	Nodes          NodeStore
	Publisher      Publisher

	// Resolver — параметры {{ param "..." }} в описаниях конфигураций.
	Resolver param.Resolver

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		configs:   cfg.Configurations,
		functions: cfg.Functions,
		runs:      cfg.Runs,
		nodes:     cfg.Nodes,
		publisher: cfg.Publisher,
		resolver:  cfg.Resolver,
		logger:    logger,
	}
}
