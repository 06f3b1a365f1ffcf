package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/domain"
)

// NodeStore — хранилище истории узлов.
type NodeStore interface {
	Upsert(ctx context.Context, ne *domain.NodeExecution) error
}

// Recorder сохраняет смену статусов узлов в node_executions.
// Ошибки записи только логируются: история не влияет на выполнение.
type Recorder struct {
	nodes  NodeStore
	logger *slog.Logger
}

// NewRecorder создаёт Recorder.
func NewRecorder(nodes NodeStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{nodes: nodes, logger: logger}
}

// NodeChanged сохраняет событие узла.
func (r *Recorder) NodeChanged(ctx context.Context, e coordinator.NodeEvent) {
	ne, ok := nodeExecution(e)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := r.nodes.Upsert(ctx, ne); err != nil {
		r.logger.Warn("failed to record node execution",
			"run_id", e.RunID,
			"node_id", e.NodeID,
			"status", e.Status,
			"error", err,
		)
	}
}

// RunFinished ничего не делает: итог run сохраняет Orchestrator.
func (r *Recorder) RunFinished(context.Context, *coordinator.Result) {}

// nodeExecution преобразует событие в запись истории.
// Runs с ID не в формате UUID (локальные) не записываются.
func nodeExecution(e coordinator.NodeEvent) (*domain.NodeExecution, bool) {
	runID, err := uuid.Parse(e.RunID)
	if err != nil {
		return nil, false
	}

	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	ne := &domain.NodeExecution{
		RunID:  runID,
		NodeID: e.NodeID,
		Kind:   string(e.Kind),
		Status: domain.NodeStatus(e.Status),
		Token:  e.Token,
		Input:  e.Input,
		Output: e.Output,
	}
	if e.Branch >= 0 {
		branch := e.Branch
		ne.Branch = &branch
	}
	if e.Failure != nil {
		ne.Error = e.Failure.Payload()
	}

	switch {
	case e.Status == coordinator.NodeRunning:
		ne.StartedAt = &at
	case e.Status.IsFinal():
		ne.FinishedAt = &at
	}
	return ne, true
}
