package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Handler — локальный обработчик шага.
type Handler func(ctx context.Context, payload any) (any, error)

// Registry — реестр локальных обработчиков (ресурсы "local:<name>").
// Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	completer Completer
	logger    *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register регистрирует обработчик. Существующий перезаписывается.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// SetCompleter задаёт получателя асинхронных завершений.
func (r *Registry) SetCompleter(c Completer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completer = c
}

// Get возвращает обработчик по имени.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	return h, nil
}

// Names возвращает имена обработчиков по алфавиту.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke вызывает обработчик ресурса.
//
// Асинхронный вызов запускает обработчик в отдельной горутине и
// передаёт результат в Completer по токену запроса.
func (r *Registry) Invoke(ctx context.Context, req *Request) (any, error) {
	h, err := r.Get(Name(req.Resource))
	if err != nil {
		return nil, err
	}

	if !req.Async() {
		return h(ctx, req.Payload)
	}

	r.mu.RLock()
	completer := r.completer
	r.mu.RUnlock()
	if completer == nil {
		return nil, ErrNoCompleter
	}

	go func() {
		hctx := context.WithoutCancel(ctx)
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(hctx, req.Timeout)
			defer cancel()
		}

		var c Completion
		out, err := h(hctx, req.Payload)
		var terr *TaskError
		switch {
		case errors.As(err, &terr):
			c = Failure(terr.Kind, terr.Cause)
		case err != nil:
			c = Failure(ErrorTaskFailed, err.Error())
		default:
			c = Success(out)
		}

		if _, err := completer.Complete(hctx, req.Token, c); err != nil {
			r.logger.Error("failed to complete local step",
				"run_id", req.RunID,
				"node_id", req.NodeID,
				"error", err,
			)
		}
	}()
	return nil, nil
}
