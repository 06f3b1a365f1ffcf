package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — экземпляр выполнения launch-функции.
//
// Run создаётся когда:
// - Пользователь запускает launch-функцию вручную (через API/CLI)
// - Scheduler создаёт run по расписанию
//
// Каждый run выполняет граф, построенный из launch-функции и хранимой
// конфигурации кластера на момент запуска.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Namespace — пространство имён launch-функции.
	Namespace string `json:"namespace"`

	// LaunchFunction — имя выполняемой launch-функции.
	LaunchFunction string `json:"launch_function"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Input — входные данные выполнения ($$.Execution.Input).
	// Например: {"ClusterConfigurationOverrides": {"CoreInstanceCount": 5}}
	Input map[string]any `json:"input,omitempty"`

	// Output — данные выполнения на терминальном узле.
	Output any `json:"output,omitempty"`

	// Terminal — ID достигнутого терминального узла.
	Terminal string `json:"terminal,omitempty"`

	// Error — полезная нагрузка ошибки {"Error", "Cause", "Node"[, "Branch"]},
	// если run завершился с FAILED.
	Error map[string]any `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Например, для scheduled runs: "{schedule_name}_{due_unix}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(namespace, launchFunction string, input map[string]any) *Run {
	if input == nil {
		input = map[string]any{}
	}
	return &Run{
		ID:             uuid.New(),
		Namespace:      namespace,
		LaunchFunction: launchFunction,
		Status:         RunStatusPending,
		Input:          input,
		CreatedAt:      time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded(terminal string, output any) {
	now := time.Now().UTC()
	r.Status = RunStatusSucceeded
	r.Terminal = terminal
	r.Output = output
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с полезной нагрузкой ошибки.
func (r *Run) MarkFailed(terminal string, output any, errPayload map[string]any) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.Terminal = terminal
	r.Output = output
	r.Error = errPayload
	r.FinishedAt = &now
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled(reason string) {
	now := time.Now().UTC()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
	if reason != "" {
		r.Error = map[string]any{"Error": "Cancelled", "Cause": reason}
	}
}
