package coordinator

import "errors"

// Ошибки координатора.
var (
	// ErrRunAlreadyActive — run с таким ID уже выполняется.
	ErrRunAlreadyActive = errors.New("run already active")

	// ErrRunCancelled — run отменён внешним сигналом.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrNodeReentered — узел запущен повторно в одном run.
	ErrNodeReentered = errors.New("node re-entered")

	// ErrUnroutedFailure — ошибка узла не перехвачена ни одним catch.
	ErrUnroutedFailure = errors.New("failure escaped catch routing")

	// ErrNilGraph — граф не задан.
	ErrNilGraph = errors.New("graph is nil")
)
