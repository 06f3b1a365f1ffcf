package pipeline

import "errors"

// Ошибки построения и выполнения launch-функций.
var (
	// ErrUnsupportedKind — вид launch-функции не поддерживается.
	ErrUnsupportedKind = errors.New("unsupported launch function kind")

	// ErrInvalidPayload — полезная нагрузка шага имеет неверную структуру.
	ErrInvalidPayload = errors.New("invalid step payload")
)

// Виды ошибок шагов, записываемые в $.Error.
const (
	// ErrorClusterRunning — кластер с тем же именем уже работает.
	ErrorClusterRunning = "ClusterRunningError"

	// ErrorOverride — переопределения не применимы к конфигурации.
	ErrorOverride = "OverrideError"
)
