package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/telemetry"
)

// Имена локальных обработчиков.
const (
	HandlerOverrideClusterConfigs = "override-cluster-configs"
	HandlerFailIfClusterRunning   = "fail-if-cluster-running"
	HandlerEcho                   = "echo"
)

// Ключи execution input, которые читают обработчики.
const (
	InputOverrides            = "ClusterConfigurationOverrides"
	InputFailIfClusterRunning = "FailIfClusterRunning"
)

// ClusterChecker сообщает, работает ли кластер с данным именем.
type ClusterChecker interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

// CheckerFunc — адаптер функции к ClusterChecker.
type CheckerFunc func(ctx context.Context, name string) (bool, error)

// IsRunning вызывает f.
func (f CheckerFunc) IsRunning(ctx context.Context, name string) (bool, error) {
	return f(ctx, name)
}

// Register регистрирует локальные обработчики launch-функций.
func Register(reg *invoke.Registry, checker ClusterChecker, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	reg.Register(HandlerOverrideClusterConfigs, OverrideClusterConfigs)
	reg.Register(HandlerFailIfClusterRunning, FailIfClusterRunning(checker, logger))
	reg.Register(HandlerEcho, Echo)
}

// overridePayload — полезная нагрузка "Override Cluster Configs".
type overridePayload struct {
	ExecutionInput   map[string]any        `json:"ExecutionInput"`
	ClusterConfig    *clusterconfig.Record `json:"ClusterConfig"`
	DefaultOverrides map[string]any        `json:"DefaultOverrides"`
	ClusterTags      map[string]string     `json:"ClusterTags"`
}

// OverrideClusterConfigs применяет переопределения execution input
// (ClusterConfigurationOverrides) к встроенному документу конфигурации и
// возвращает итоговую конфигурацию кластера.
//
// DefaultOverrides launch-функции применяются первыми, значения execution
// input их перекрывают. Неизвестное имя переопределения — ошибка OverrideError.
func OverrideClusterConfigs(_ context.Context, payload any) (any, error) {
	var p overridePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.ClusterConfig == nil {
		return nil, fmt.Errorf("%w: ClusterConfig is required", ErrInvalidPayload)
	}

	b, err := clusterconfig.FromRecord(p.ClusterConfig)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]any, len(p.DefaultOverrides))
	for k, v := range p.DefaultOverrides {
		overrides[k] = v
	}
	if raw, ok := p.ExecutionInput[InputOverrides]; ok && raw != nil {
		user, ok := raw.(map[string]any)
		if !ok {
			return nil, &invoke.TaskError{
				Kind:  ErrorOverride,
				Cause: fmt.Sprintf("%s must be a mapping, got %T", InputOverrides, raw),
			}
		}
		for k, v := range user {
			overrides[k] = v
		}
	}

	tree, err := b.Resolve(overrides)
	if err != nil {
		return nil, &invoke.TaskError{Kind: ErrorOverride, Cause: err.Error()}
	}

	out := tree.ToPlain()
	if len(p.ClusterTags) > 0 {
		out["Tags"] = mergeTags(out["Tags"], p.ClusterTags)
	}
	return out, nil
}

// mergeTags добавляет теги к списку {"Key","Value"}; существующие ключи
// перезаписываются на месте, новые добавляются по алфавиту.
func mergeTags(existing any, tags map[string]string) []any {
	list, _ := existing.([]any)
	out := make([]any, 0, len(list)+len(tags))
	seen := make(map[string]bool, len(tags))

	for _, item := range list {
		tag, ok := item.(map[string]any)
		if !ok {
			out = append(out, item)
			continue
		}
		key, _ := tag["Key"].(string)
		if v, ok := tags[key]; ok {
			tag = map[string]any{"Key": key, "Value": v}
			seen[key] = true
		}
		out = append(out, tag)
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, map[string]any{"Key": k, "Value": tags[k]})
	}
	return out
}

// checkPayload — полезная нагрузка "Fail If Cluster Running".
type checkPayload struct {
	ExecutionInput              map[string]any `json:"ExecutionInput"`
	DefaultFailIfClusterRunning bool           `json:"DefaultFailIfClusterRunning"`
	ClusterConfig               map[string]any `json:"ClusterConfig"`
}

// FailIfClusterRunning возвращает обработчик, который падает с
// ClusterRunningError, если кластер с тем же именем уже работает.
//
// Флаг FailIfClusterRunning execution input перекрывает значение
// launch-функции. Результат — {"ClusterConfig": ...}.
func FailIfClusterRunning(checker ClusterChecker, logger *slog.Logger) invoke.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		var p checkPayload
		if err := decode(payload, &p); err != nil {
			return nil, err
		}

		fail := p.DefaultFailIfClusterRunning
		if v, ok := p.ExecutionInput[InputFailIfClusterRunning].(bool); ok {
			fail = v
		}

		name, _ := p.ClusterConfig["Name"].(string)
		if fail && checker != nil && name != "" {
			running, err := checker.IsRunning(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("check cluster %s: %w", name, err)
			}
			if running {
				telemetry.FromContextOr(ctx, logger).Info("cluster already running", "cluster_name", name)
				return nil, &invoke.TaskError{
					Kind:  ErrorClusterRunning,
					Cause: fmt.Sprintf("cluster %s is already running", name),
				}
			}
		}
		return map[string]any{"ClusterConfig": p.ClusterConfig}, nil
	}
}

// Echo возвращает полезную нагрузку без изменений.
func Echo(_ context.Context, payload any) (any, error) {
	return payload, nil
}

// decode переносит полезную нагрузку в типизированную структуру через JSON.
func decode(payload any, dst any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
