package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/notify"
	"github.com/shaiso/Launchpad/internal/telemetry"
	"github.com/shaiso/Launchpad/internal/tokens"
	"github.com/shaiso/Launchpad/internal/workflow"
)

const defaultNotifyTimeout = 10 * time.Second

// RunStatus — итог run.
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// Result — итог выполнения run.
type Result struct {
	RunID    string
	Status   RunStatus
	Terminal string // ID достигнутого терминального узла
	Output   any    // данные выполнения на терминальном узле
	Error    map[string]any
	Stats    RunStats
	Duration time.Duration
}

// Config — конфигурация Coordinator.
type Config struct {
	Invoker  invoke.Invoker
	Notifier notify.Notifier // nil — уведомления отбрасываются
	Tokens   tokens.Table    // nil — таблица в памяти

	// TokenFunc генерирует токены корреляции (по умолчанию UUID).
	TokenFunc func() string

	Observer Observer
	Logger   *slog.Logger

	NotifyTimeout time.Duration // по умолчанию 10s
}

// Coordinator выполняет графы workflow. Безопасен для конкурентного
// использования: несколько run выполняются одновременно.
type Coordinator struct {
	invoker       invoke.Invoker
	notifier      notify.Notifier
	tokens        tokens.Table
	newToken      func() string
	observer      Observer
	logger        *slog.Logger
	notifyTimeout time.Duration

	mu      sync.RWMutex
	runs    map[string]*RunState
	waiters map[string]chan invoke.Completion
}

// New создаёт Coordinator.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		invoker:       cfg.Invoker,
		notifier:      cfg.Notifier,
		tokens:        cfg.Tokens,
		newToken:      cfg.TokenFunc,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		notifyTimeout: cfg.NotifyTimeout,
		runs:          make(map[string]*RunState),
		waiters:       make(map[string]chan invoke.Completion),
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.tokens == nil {
		c.tokens = tokens.NewMemory()
	}
	if c.newToken == nil {
		c.newToken = uuid.NewString
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.notifyTimeout <= 0 {
		c.notifyTimeout = defaultNotifyTimeout
	}
	return c
}

// Run выполняет граф от начального узла до терминального.
//
// Ошибки узлов не возвращаются: они маршрутизируются через catch, итог
// отражён в Result. Ошибка возвращается, если run уже активен или
// ошибка узла не перехвачена (граф построен не через workflow.Builder).
func (c *Coordinator) Run(ctx context.Context, runID string, graph *workflow.Graph, input any) (*Result, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	if input == nil {
		input = map[string]any{}
	}

	st := newRunState(runID, graph, workflow.Copy(input))
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	st.cancel = cancel

	if err := c.addRun(st); err != nil {
		return nil, err
	}
	defer c.removeRun(runID)

	logger := telemetry.WithRunID(c.logger, runID)
	logger.Info("run started", "entry", graph.Entry(), "nodes", graph.Len())

	data, terminal, err := c.runBlock(runCtx, st, graph.Entry(), st.input, -1)

	res := &Result{
		RunID:    runID,
		Output:   data,
		Stats:    st.Stats(),
		Duration: time.Since(st.startedAt),
	}

	var runErr error
	switch {
	case err != nil:
		f := workflow.AsFailure("", err)
		res.Status = RunFailed
		res.Error = f.Payload()
		runErr = fmt.Errorf("%w: %v", ErrUnroutedFailure, err)
		logger.Error("run failed without reaching a terminal node", "error", err)
	case terminal == nil:
		res.Status = RunFailed
		runErr = fmt.Errorf("%w: run ended without a terminal node", ErrUnroutedFailure)
		logger.Error("run ended without reaching a terminal node")
	case terminal.Kind == workflow.KindSuccess:
		res.Status = RunSucceeded
		res.Terminal = terminal.ID
	default:
		res.Status = RunFailed
		res.Terminal = terminal.ID
		if f := st.LastFailure(); f != nil {
			res.Error = f.Payload()
		}
	}

	if terminal != nil {
		c.notifyTerminal(ctx, runID, terminal, data)
	}

	telemetry.ObserveRun(string(res.Status), res.Duration)
	c.observer.RunFinished(ctx, res)

	logger.Info("run finished",
		"status", res.Status,
		"terminal", res.Terminal,
		"duration", res.Duration,
	)
	return res, runErr
}

// Complete доставляет завершение асинхронного шага по токену.
//
// Возвращает false без ошибки, если узел с этим токеном не ждёт
// в этом экземпляре: повторная доставка — аномалия, а не ошибка.
// Запись в общей таблице токенов трогает только владелец, поэтому
// доставка в чужой экземпляр не теряет токен.
func (c *Coordinator) Complete(ctx context.Context, token string, comp invoke.Completion) (bool, error) {
	ch, ok := c.claimWaiter(token)
	if !ok {
		telemetry.TokenAnomaliesTotal.WithLabelValues("not_waiting").Inc()
		c.logger.Warn("completion for token without a waiting node", "token", token)
		return false, nil
	}

	entry, err := c.tokens.Take(ctx, token)
	if err != nil && !errors.Is(err, tokens.ErrUnknownToken) {
		c.logger.Warn("failed to remove completed token", "token", token, "error", err)
	}

	ch <- comp
	c.logger.Debug("completion delivered",
		"token", token,
		"run_id", entry.RunID,
		"node_id", entry.NodeID,
		"failed", comp.Failed(),
	)
	return true, nil
}

// Cancel отменяет активный run: выполняющиеся узлы падают с ошибкой
// Cancelled, дальше работает обычная маршрутизация catch.
func (c *Coordinator) Cancel(runID string) bool {
	c.mu.RLock()
	st, ok := c.runs[runID]
	c.mu.RUnlock()
	if !ok {
		return false
	}

	st.cancel(ErrRunCancelled)
	c.logger.Info("run cancellation requested", "run_id", runID)
	return true
}

// Owns сообщает, ждёт ли узел этого процесса завершения по токену.
func (c *Coordinator) Owns(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.waiters[token]
	return ok
}

// RunState возвращает состояние активного run.
func (c *Coordinator) RunState(runID string) (*RunState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.runs[runID]
	return st, ok
}

// ActiveRuns возвращает ID активных runs по алфавиту.
func (c *Coordinator) ActiveRuns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.runs))
	for id := range c.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) addRun(st *RunState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.runs[st.runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunAlreadyActive, st.runID)
	}
	c.runs[st.runID] = st
	return nil
}

func (c *Coordinator) removeRun(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runs, runID)
}

func (c *Coordinator) addWaiter(token string) chan invoke.Completion {
	ch := make(chan invoke.Completion, 1)
	c.mu.Lock()
	c.waiters[token] = ch
	c.mu.Unlock()
	telemetry.PendingTokens.Inc()
	return ch
}

// claimWaiter снимает ожидание токена. Только один из Complete,
// таймаута и отмены получает true и решает исход узла.
func (c *Coordinator) claimWaiter(token string) (chan invoke.Completion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.waiters[token]
	delete(c.waiters, token)
	return ch, ok
}

func (c *Coordinator) removeWaiter(token string) {
	c.mu.Lock()
	delete(c.waiters, token)
	c.mu.Unlock()
	telemetry.PendingTokens.Dec()
}

// notifyTerminal отправляет уведомление терминального узла.
// Ошибка доставки только логируется.
func (c *Coordinator) notifyTerminal(ctx context.Context, runID string, node *workflow.Node, data any) {
	if node.Subject == "" {
		return
	}

	body, err := workflow.Select(data, node.MessagePath)
	if err != nil {
		body = nil
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.notifyTimeout)
	defer cancel()

	err = c.notifier.Notify(nctx, notify.Notification{
		RunID:   runID,
		Subject: node.Subject,
		Body:    body,
	})
	if err != nil {
		telemetry.NotificationsFailedTotal.Inc()
		c.logger.Warn("notification failed",
			"run_id", runID,
			"node_id", node.ID,
			"subject", node.Subject,
			"error", err,
		)
	}
}
