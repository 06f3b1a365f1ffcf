package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — run достиг терминального узла Success.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run достиг терминального узла Fail.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён до начала выполнения.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// NodeStatus — статус выполнения узла графа.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ AWAITING_CALLBACK → SUCCEEDED
//	                  ↘ FAILED
type NodeStatus string

const (
	NodeStatusPending          NodeStatus = "PENDING"
	NodeStatusRunning          NodeStatus = "RUNNING"
	NodeStatusAwaitingCallback NodeStatus = "AWAITING_CALLBACK"
	NodeStatusSucceeded        NodeStatus = "SUCCEEDED"
	NodeStatusFailed           NodeStatus = "FAILED"
)

// IsTerminal возвращает true, если узел завершён.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusSucceeded || s == NodeStatusFailed
}

// ClusterStatus — статус кластера, запущенного launch-функцией.
type ClusterStatus string

const (
	// ClusterStatusStarting — запрос на запуск принят.
	ClusterStatusStarting ClusterStatus = "STARTING"

	// ClusterStatusRunning — кластер работает.
	ClusterStatusRunning ClusterStatus = "RUNNING"

	// ClusterStatusTerminated — кластер остановлен.
	ClusterStatusTerminated ClusterStatus = "TERMINATED"
)

// IsActive возвращает true для кластеров, которые ещё не остановлены.
func (s ClusterStatus) IsActive() bool {
	return s == ClusterStatusStarting || s == ClusterStatusRunning
}
