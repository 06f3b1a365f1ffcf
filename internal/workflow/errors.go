package workflow

import (
	"errors"
	"fmt"
)

// Ошибки построения графа.
var (
	// ErrCycleDetected — связь создаёт цикл.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDanglingNode — узел недостижим или не ведёт к терминалу.
	ErrDanglingNode = errors.New("dangling node")

	// ErrUnknownNode — ссылка на несуществующий узел.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidCatchTarget — недопустимая цель перехвата ошибки.
	ErrInvalidCatchTarget = errors.New("invalid catch target")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrNextAlreadySet — у узла уже есть следующий узел.
	ErrNextAlreadySet = errors.New("node already has next")

	// ErrTerminalNext — терминальный узел не может иметь следующий.
	ErrTerminalNext = errors.New("terminal node cannot have next")

	// ErrEmptyBranches — parallel узел без веток.
	ErrEmptyBranches = errors.New("parallel node has no branches")

	// ErrEmptyBody — chain узел без тела.
	ErrEmptyBody = errors.New("chain node has no body")

	// ErrMissingResource — task узел без ресурса.
	ErrMissingResource = errors.New("task node has no resource")

	// ErrCrossBlock — связь пересекает границу ветки или тела chain.
	ErrCrossBlock = errors.New("edge crosses block boundary")

	// ErrInvalidTimeout — отрицательный таймаут узла.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidDataPath — путь данных не удалось разобрать.
	ErrInvalidDataPath = errors.New("invalid data path")
)

// Ошибки путей данных во время выполнения.
var (
	// ErrDataPathNotFound — путь данных не найден во входе узла.
	ErrDataPathNotFound = errors.New("data path not found")
)

// ValidationError — ошибка валидации графа с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Виды ошибок выполнения узла (поле Error полезной нагрузки ошибки).
const (
	ErrorTaskFailed = "TaskFailed"
	ErrorTimeout    = "Timeout"
	ErrorCancelled  = "Cancelled"
	ErrorRuntime    = "Runtime"
	ErrorFail       = "Fail"
)

// NodeExecutionFailure — ошибка выполнения узла.
//
// Оборачивает ошибку внешнего вызова, хранит ID узла, в котором она
// возникла, и индекс ветки, если узел выполнялся внутри parallel.
type NodeExecutionFailure struct {
	NodeID string
	Branch int // -1 вне parallel
	Kind   string
	Cause  string
	Err    error
}

// NewFailure создаёт ошибку выполнения узла.
func NewFailure(nodeID, kind string, err error) *NodeExecutionFailure {
	f := &NodeExecutionFailure{NodeID: nodeID, Branch: -1, Kind: kind, Err: err}
	if err != nil {
		f.Cause = err.Error()
	}
	return f
}

// Error реализует интерфейс error.
func (f *NodeExecutionFailure) Error() string {
	msg := fmt.Sprintf("node %s failed: %s", f.NodeID, f.Kind)
	if f.Branch >= 0 {
		msg = fmt.Sprintf("node %s (branch %d) failed: %s", f.NodeID, f.Branch, f.Kind)
	}
	if f.Cause != "" {
		msg += ": " + f.Cause
	}
	return msg
}

// Unwrap возвращает исходную ошибку.
func (f *NodeExecutionFailure) Unwrap() error {
	return f.Err
}

// Payload возвращает полезную нагрузку ошибки, записываемую по пути ошибки:
// {"Error": kind, "Cause": message, "Node": id[, "Branch": i]}.
func (f *NodeExecutionFailure) Payload() map[string]any {
	p := map[string]any{
		"Error": f.Kind,
		"Cause": f.Cause,
		"Node":  f.NodeID,
	}
	if f.Branch >= 0 {
		p["Branch"] = f.Branch
	}
	return p
}

// AsFailure приводит ошибку к NodeExecutionFailure, оборачивая прочие
// ошибки с видом TaskFailed.
func AsFailure(nodeID string, err error) *NodeExecutionFailure {
	var f *NodeExecutionFailure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(nodeID, ErrorTaskFailed, err)
}
