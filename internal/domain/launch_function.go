package domain

import (
	"errors"
	"fmt"
	"time"
)

// Виды launch-функций.
const (
	// KindLaunchCluster — запуск кластера по хранимой конфигурации:
	// Override Cluster Configs → Fail If Cluster Running → Start Cluster.
	KindLaunchCluster = "launch-cluster"

	// KindPipeline — многофазный конвейер шагов на работающем кластере.
	KindPipeline = "pipeline"
)

// ErrInvalidLaunchFunction — описание launch-функции некорректно.
var ErrInvalidLaunchFunction = errors.New("invalid launch function")

// LaunchFunction — именованный сценарий запуска.
//
// LaunchFunction — это "рецепт": из него и хранимой конфигурации
// координатор строит граф при каждом запуске run.
type LaunchFunction struct {
	// Namespace — пространство имён функции.
	Namespace string `json:"namespace" yaml:"namespace"`

	// Name — имя функции, уникальное в пространстве имён.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения функции.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Spec — спецификация сценария.
	Spec LaunchSpec `json:"spec" yaml:"spec"`

	// CreatedAt — время первого сохранения.
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// LaunchSpec — спецификация launch-функции (содержимое JSONB поля spec).
type LaunchSpec struct {
	// Kind — вид сценария: "launch-cluster" или "pipeline".
	Kind string `json:"kind" yaml:"kind"`

	// Configuration — имя хранимой конфигурации (для launch-cluster).
	Configuration string `json:"configuration,omitempty" yaml:"configuration,omitempty"`

	// ConfigurationNamespace — пространство имён конфигурации.
	// По умолчанию совпадает с пространством имён функции.
	ConfigurationNamespace string `json:"configuration_namespace,omitempty" yaml:"configuration_namespace,omitempty"`

	// DefaultFailIfClusterRunning — отказ от запуска, если кластер с тем же
	// именем уже работает. Execution input может переопределить значение.
	DefaultFailIfClusterRunning bool `json:"default_fail_if_cluster_running,omitempty" yaml:"default_fail_if_cluster_running,omitempty"`

	// ClusterName — имя кластера, записываемое через override ClusterName.
	ClusterName string `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty"`

	// ClusterTags — теги, добавляемые к тегам конфигурации.
	ClusterTags map[string]string `json:"cluster_tags,omitempty" yaml:"cluster_tags,omitempty"`

	// Endpoints — ресурсы вызова шагов; пустые значения берутся из
	// параметров /launchpad/control_plane/endpoints/*.
	Endpoints Endpoints `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`

	// StartTimeoutSec — таймаут ожидания запуска кластера (0 — без таймаута).
	StartTimeoutSec int `json:"start_timeout_sec,omitempty" yaml:"start_timeout_sec,omitempty"`

	// Phases — фазы конвейера (для pipeline).
	Phases []Phase `json:"phases,omitempty" yaml:"phases,omitempty"`

	// SuccessSubject — тема уведомления об успехе.
	SuccessSubject string `json:"success_subject,omitempty" yaml:"success_subject,omitempty"`

	// FailureSubject — тема уведомления об ошибке.
	FailureSubject string `json:"failure_subject,omitempty" yaml:"failure_subject,omitempty"`
}

// Endpoints — ресурсы вызова шагов launch-cluster.
type Endpoints struct {
	OverrideClusterConfigs string `json:"override_cluster_configs,omitempty" yaml:"override_cluster_configs,omitempty"`
	FailIfClusterRunning   string `json:"fail_if_cluster_running,omitempty" yaml:"fail_if_cluster_running,omitempty"`
	StartCluster           string `json:"start_cluster,omitempty" yaml:"start_cluster,omitempty"`
}

// Phase — фаза конвейера: шаги выполняются параллельно,
// следующая фаза начинается после завершения всех шагов.
type Phase struct {
	Name  string `json:"name" yaml:"name"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step — шаг фазы.
type Step struct {
	// Name — имя шага, уникальное в функции.
	Name string `json:"name" yaml:"name"`

	// Resource — ресурс вызова: "local:echo", "queue:delay", "https://...".
	Resource string `json:"resource" yaml:"resource"`

	// Parameters — параметры вызова; ключи с суффиксом ".$" — пути в данных.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Async — шаг завершается внешним вызовом с токеном.
	Async bool `json:"async,omitempty" yaml:"async,omitempty"`

	// TimeoutSec — таймаут шага в секундах (0 — без таймаута).
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// Validate проверяет структуру функции (без разрешения конфигурации).
func (f *LaunchFunction) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLaunchFunction)
	}

	switch f.Spec.Kind {
	case KindLaunchCluster:
		if f.Spec.Configuration == "" {
			return fmt.Errorf("%w: %s: configuration is required", ErrInvalidLaunchFunction, f.Name)
		}
	case KindPipeline:
		if len(f.Spec.Phases) == 0 {
			return fmt.Errorf("%w: %s: at least one phase is required", ErrInvalidLaunchFunction, f.Name)
		}
		// Имена фаз и шагов становятся ID узлов графа и не должны совпадать.
		seen := make(map[string]bool)
		for _, phase := range f.Spec.Phases {
			if phase.Name == "" || len(phase.Steps) == 0 {
				return fmt.Errorf("%w: %s: phase needs a name and steps", ErrInvalidLaunchFunction, f.Name)
			}
			if seen[phase.Name] {
				return fmt.Errorf("%w: %s: duplicate name %s", ErrInvalidLaunchFunction, f.Name, phase.Name)
			}
			seen[phase.Name] = true
			for _, step := range phase.Steps {
				if step.Name == "" || step.Resource == "" {
					return fmt.Errorf("%w: %s: step in phase %s needs a name and resource", ErrInvalidLaunchFunction, f.Name, phase.Name)
				}
				if seen[step.Name] {
					return fmt.Errorf("%w: %s: duplicate name %s", ErrInvalidLaunchFunction, f.Name, step.Name)
				}
				seen[step.Name] = true
			}
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidLaunchFunction, f.Name, f.Spec.Kind)
	}

	if f.Spec.StartTimeoutSec < 0 {
		return fmt.Errorf("%w: %s: start_timeout_sec must not be negative", ErrInvalidLaunchFunction, f.Name)
	}
	return nil
}

// ConfigurationRef возвращает пространство имён и имя конфигурации.
func (f *LaunchFunction) ConfigurationRef() (namespace, name string) {
	namespace = f.Spec.ConfigurationNamespace
	if namespace == "" {
		namespace = f.Namespace
	}
	return namespace, f.Spec.Configuration
}
