package domain

import (
	"time"

	"github.com/google/uuid"
)

// NodeExecution — история выполнения одного узла графа внутри run.
//
// Создаётся координатором при первом переходе узла в RUNNING и
// обновляется при каждой смене статуса.
type NodeExecution struct {
	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// NodeID — имя узла в графе ("Override Cluster Configs", "Phase1").
	NodeID string `json:"node_id"`

	// Kind — тип узла: task, async_task, parallel, chain, success, fail.
	Kind string `json:"kind"`

	// Status — текущий статус узла.
	Status NodeStatus `json:"status"`

	// Branch — индекс ветки parallel, nil вне parallel.
	Branch *int `json:"branch,omitempty"`

	// Token — токен корреляции асинхронного узла.
	Token string `json:"token,omitempty"`

	// Input — вход узла после InputPath.
	Input any `json:"input,omitempty"`

	// Output — результат вызова (до ResultPath).
	Output any `json:"output,omitempty"`

	// Error — полезная нагрузка ошибки узла.
	Error map[string]any `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения узла.
func (n *NodeExecution) Duration() time.Duration {
	if n.StartedAt == nil || n.FinishedAt == nil {
		return 0
	}
	return n.FinishedAt.Sub(*n.StartedAt)
}

// IsFinished возвращает true, если узел завершён.
func (n *NodeExecution) IsFinished() bool {
	return n.Status.IsTerminal()
}
