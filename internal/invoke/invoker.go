package invoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Ошибки вызова.
var (
	// ErrUnknownResource — схема ресурса не поддерживается.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrHandlerNotFound — локальный обработчик не зарегистрирован.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrAsyncOnly — ресурс поддерживает только асинхронный вызов.
	ErrAsyncOnly = errors.New("resource supports async invocation only")

	// ErrNoCompleter — асинхронный локальный вызов без Completer.
	ErrNoCompleter = errors.New("completer is not configured")
)

// Виды ошибок шага.
const (
	ErrorTaskFailed = "TaskFailed"
	ErrorTimeout    = "Timeout"
)

// Request — внешний вызов узла.
type Request struct {
	RunID    string
	NodeID   string
	Resource string
	Payload  any

	// Token — токен корреляции; непуст для AsyncTask.
	Token string

	Timeout time.Duration
}

// Async сообщает, что вызов асинхронный.
func (r *Request) Async() bool {
	return r.Token != ""
}

// Invoker выполняет внешний вызов.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (any, error)
}

// Func — функция-адаптер Invoker.
type Func func(ctx context.Context, req *Request) (any, error)

// Invoke вызывает f.
func (f Func) Invoke(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// TaskError — ошибка, возвращённая внешней системой.
type TaskError struct {
	Kind       string
	Cause      string
	StatusCode int
}

// Error реализует интерфейс error.
func (e *TaskError) Error() string {
	if e.Cause == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Cause
}

// Completion — результат асинхронного шага. Пустой Error — успех.
type Completion struct {
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// Success создаёт успешное завершение.
func Success(output any) Completion {
	return Completion{Output: output}
}

// Failure создаёт завершение с ошибкой.
func Failure(kind, cause string) Completion {
	if kind == "" {
		kind = ErrorTaskFailed
	}
	return Completion{Error: kind, Cause: cause}
}

// Failed сообщает, что шаг завершился ошибкой.
func (c Completion) Failed() bool {
	return c.Error != ""
}

// Err возвращает ошибку завершения или nil.
func (c Completion) Err() error {
	if !c.Failed() {
		return nil
	}
	return &TaskError{Kind: c.Error, Cause: c.Cause}
}

// Completer принимает завершения асинхронных шагов.
type Completer interface {
	// Complete возвращает false, если токен неизвестен или уже использован.
	Complete(ctx context.Context, token string, c Completion) (bool, error)
}

// Router выбирает Invoker по схеме ресурса.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Invoker
}

// NewRouter создаёт пустой Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Invoker)}
}

// Handle регистрирует Invoker для схемы ("local", "http", "queue").
func (r *Router) Handle(scheme string, inv Invoker) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[scheme] = inv
	return r
}

// Invoke вызывает Invoker схемы ресурса.
func (r *Router) Invoke(ctx context.Context, req *Request) (any, error) {
	scheme, _, ok := strings.Cut(req.Resource, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, req.Resource)
	}

	r.mu.RLock()
	inv, exists := r.routes[scheme]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, req.Resource)
	}
	return inv.Invoke(ctx, req)
}

// Name возвращает часть ресурса после схемы ("local:echo" → "echo").
func Name(resource string) string {
	_, name, _ := strings.Cut(resource, ":")
	return name
}
