package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Step — асинхронный шаг, полученный из очереди steps.invoke.
type Step struct {
	RunID    string
	NodeID   string
	Resource string

	// Token — токен корреляции; завершение публикуется с ним.
	Token string

	// Payload — полезная нагрузка шага, если это объект.
	Payload map[string]any

	// Raw — полезная нагрузка как есть.
	Raw any

	// Timeout — таймаут шага (0 — без таймаута).
	Timeout time.Duration

	// Attempt — номер попытки, начиная с 1.
	Attempt int
}

// Executor — выполнение шага определённого вида.
//
// Реализации: HTTPExecutor, ForwardExecutor, DelayExecutor, EchoExecutor,
// StartClusterExecutor, HandlerExecutor.
type Executor interface {
	Execute(ctx context.Context, step *Step) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения шага.
type ExecutionResult struct {
	// Output — выходные данные шага.
	Output any

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string

	// ErrorKind — вид ошибки для $.Error; пусто — TaskFailed.
	ErrorKind string

	// Deferred — шаг завершит внешняя система по токену,
	// воркер не публикует step.completed.
	Deferred bool
}

// Failed сообщает о логической ошибке.
func (r *ExecutionResult) Failed() bool {
	return r != nil && r.Error != ""
}

// Registry — реестр executor'ов по имени ресурса ("queue:delay" → "delay").
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию:
// http, forward, delay, echo.
//
// start-cluster и обработчики конфигураций требуют зависимостей
// и регистрируются отдельно.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("http", &HTTPExecutor{})
	r.Register("forward", &ForwardExecutor{})
	r.Register("delay", &DelayExecutor{})
	r.Register("echo", &EchoExecutor{})
	return r
}

// Register добавляет executor.
func (r *Registry) Register(name string, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = executor
}

// Get возвращает executor по имени.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, name)
	}
	return executor, nil
}

// Names возвращает имена executor'ов по алфавиту.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
