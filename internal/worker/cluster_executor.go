package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/invoke"
)

// ClusterStore сохраняет записи о запущенных кластерах.
type ClusterStore interface {
	Put(ctx context.Context, c *domain.Cluster) error
}

// StartClusterExecutor — executor "start-cluster".
//
// Регистрирует запуск кластера по итоговой конфигурации: запись в
// статусе RUNNING блокирует повторный запуск кластера с тем же именем.
//
// Payload:
//   - ClusterConfig (object): итоговая конфигурация, нужен Name
//
// Output: {"ClusterId", "ClusterName", "Status"}.
type StartClusterExecutor struct {
	Store ClusterStore

	// NewID генерирует идентификатор кластера (по умолчанию "j-" + 13 символов).
	NewID func() string
	Now   func() time.Time
}

// Execute регистрирует кластер.
func (e *StartClusterExecutor) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	cfg, _ := step.Payload["ClusterConfig"].(map[string]any)
	name, _ := cfg["Name"].(string)
	if name == "" {
		return &ExecutionResult{Error: ErrMissingClusterName.Error(), ErrorKind: invoke.ErrorTaskFailed}, nil
	}

	newID := e.NewID
	if newID == nil {
		newID = newClusterID
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	cluster := &domain.Cluster{
		Name:      name,
		ClusterID: newID(),
		Status:    domain.ClusterStatusRunning,
		StartedAt: now().UTC(),
	}
	if id, err := uuid.Parse(step.RunID); err == nil {
		cluster.RunID = &id
	}

	if e.Store == nil {
		return nil, errors.New("cluster store is not configured")
	}
	if err := e.Store.Put(ctx, cluster); err != nil {
		return nil, fmt.Errorf("register cluster %s: %w", name, err)
	}

	return &ExecutionResult{Output: map[string]any{
		"ClusterId":   cluster.ClusterID,
		"ClusterName": cluster.Name,
		"Status":      string(cluster.Status),
	}}, nil
}

func newClusterID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "j-" + id[:13]
}

// HandlerExecutor выполняет локальный обработчик шага в воркере
// ("queue:override-cluster-configs" и т.п.).
type HandlerExecutor struct {
	Handler invoke.Handler
}

// Execute вызывает обработчик. *invoke.TaskError становится логической
// ошибкой своего вида, остальные ошибки повторяются.
func (e *HandlerExecutor) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	out, err := e.Handler(ctx, step.Raw)
	var terr *invoke.TaskError
	switch {
	case errors.As(err, &terr):
		return &ExecutionResult{Error: terr.Cause, ErrorKind: terr.Kind}, nil
	case err != nil:
		return nil, err
	}
	return &ExecutionResult{Output: out}, nil
}
