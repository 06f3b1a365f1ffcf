package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING (уже забран или отменён).
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrLaunchFunctionNotFound — launch-функция run не найдена.
	ErrLaunchFunctionNotFound = errors.New("launch function not found")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)

// ErrorRuntime — вид ошибки run, не дошедшего до выполнения графа.
const ErrorRuntime = "Runtime"
