package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/configtree"
	"github.com/shaiso/Launchpad/internal/domain"
)

// Configuration DTOs

// PutConfigurationRequest — запрос на сохранение конфигурации.
// Задаётся ровно одно из полей Definition (декларативное описание)
// или Record (готовый документ).
type PutConfigurationRequest struct {
	Description string                    `json:"description,omitempty"`
	Definition  *clusterconfig.Definition `json:"definition,omitempty"`
	Record      *clusterconfig.Record     `json:"record,omitempty"`
}

// ConfigurationResponse — ответ с конфигурацией.
type ConfigurationResponse struct {
	Namespace   string          `json:"namespace"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ConfigurationFromDomain конвертирует domain.Configuration в ConfigurationResponse.
func ConfigurationFromDomain(c domain.Configuration) ConfigurationResponse {
	return ConfigurationResponse{
		Namespace:   c.Namespace,
		Name:        c.Name,
		Description: c.Description,
		Document:    c.Document,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ConfigurationSummary — элемент списка конфигураций (без документа).
type ConfigurationSummary struct {
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ResolveRequest — запрос на применение переопределений.
type ResolveRequest struct {
	Overrides map[string]any `json:"overrides,omitempty"`
}

// ResolveResponse — итоговая конфигурация кластера.
type ResolveResponse struct {
	Configuration *configtree.Tree `json:"configuration"`
}

// LaunchFunction DTOs

// PutLaunchFunctionRequest — запрос на сохранение launch-функции.
type PutLaunchFunctionRequest struct {
	Description string            `json:"description,omitempty"`
	Spec        domain.LaunchSpec `json:"spec"`
}

// LaunchFunctionResponse — ответ с launch-функцией.
type LaunchFunctionResponse struct {
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Spec        domain.LaunchSpec `json:"spec"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// LaunchFunctionFromDomain конвертирует domain.LaunchFunction в LaunchFunctionResponse.
func LaunchFunctionFromDomain(f domain.LaunchFunction) LaunchFunctionResponse {
	return LaunchFunctionResponse{
		Namespace:   f.Namespace,
		Name:        f.Name,
		Description: f.Description,
		Spec:        f.Spec,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Run DTOs

// StartRunRequest — запрос на запуск launch-функции.
type StartRunRequest struct {
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CancelRunRequest — запрос на отмену run.
type CancelRunRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID      `json:"id"`
	Namespace      string         `json:"namespace"`
	LaunchFunction string         `json:"launch_function"`
	Status         string         `json:"status"`
	Input          map[string]any `json:"input,omitempty"`
	Output         any            `json:"output,omitempty"`
	Terminal       string         `json:"terminal,omitempty"`
	Error          map[string]any `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		Namespace:      r.Namespace,
		LaunchFunction: r.LaunchFunction,
		Status:         string(r.Status),
		Input:          r.Input,
		Output:         r.Output,
		Terminal:       r.Terminal,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		CreatedAt:      r.CreatedAt,
	}
}

// NodeExecution DTOs

// NodeResponse — ответ с историей узла.
type NodeResponse struct {
	NodeID     string         `json:"node_id"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Branch     *int           `json:"branch,omitempty"`
	Token      string         `json:"token,omitempty"`
	Output     any            `json:"output,omitempty"`
	Error      map[string]any `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}

// NodeFromDomain конвертирует domain.NodeExecution в NodeResponse.
func NodeFromDomain(n domain.NodeExecution) NodeResponse {
	return NodeResponse{
		NodeID:     n.NodeID,
		Kind:       n.Kind,
		Status:     string(n.Status),
		Branch:     n.Branch,
		Token:      n.Token,
		Output:     n.Output,
		Error:      n.Error,
		StartedAt:  n.StartedAt,
		FinishedAt: n.FinishedAt,
		DurationMs: n.Duration().Milliseconds(),
	}
}

// Token DTOs

// TokenSuccessRequest — успешное завершение асинхронного шага.
type TokenSuccessRequest struct {
	Output any `json:"output,omitempty"`
}

// TokenFailureRequest — ошибка асинхронного шага.
type TokenFailureRequest struct {
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
}
