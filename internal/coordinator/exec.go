package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/telemetry"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// runBlock выполняет узлы от start по next до терминального узла или
// до узла без next (конец ветки или тела chain).
//
// Возвращает данные выполнения и достигнутый терминал (nil — конец
// блока). Ошибка возвращается, только если узел упал без catch.
func (c *Coordinator) runBlock(ctx context.Context, st *RunState, start string, data any, branch int) (any, *workflow.Node, error) {
	id := start
	for {
		node, ok := st.graph.Node(id)
		if !ok {
			return data, nil, workflow.NewFailure(id, workflow.ErrorRuntime, workflow.ErrUnknownNode)
		}

		if node.Kind.IsTerminal() {
			if err := st.start(id, branch); err != nil {
				return data, nil, workflow.NewFailure(id, workflow.ErrorRuntime, err)
			}
			st.succeed(id, data)
			c.emit(ctx, st, node, NodeSucceeded, branch, data, data, nil)
			return data, node, nil
		}

		out, err := c.execNode(ctx, st, node, data, branch)
		if err == nil {
			data = out
			if node.Next == "" {
				return data, nil, nil
			}
			id = node.Next
			continue
		}

		failure := workflow.AsFailure(node.ID, err)
		if node.Catch == nil {
			return data, nil, failure
		}

		st.caught(failure)
		caught := catchData(data, node.ErrorPath(), failure.Payload())
		c.logger.Info("node failure caught",
			"run_id", st.runID,
			"node_id", node.ID,
			"catch", node.Catch.Target,
			"error_kind", failure.Kind,
		)
		data = caught
		id = node.Catch.Target
	}
}

// catchData записывает описание ошибки по пути errorPath. Если данные
// не допускают записи (например, скаляр после ResultPath "$"), ошибка
// записывается в новый объект: переход в catch не отменяется.
func catchData(data any, errorPath string, payload map[string]any) any {
	if caught, err := workflow.Merge(data, errorPath, payload); err == nil {
		return caught
	}
	if caught, err := workflow.Merge(map[string]any{}, errorPath, payload); err == nil {
		return caught
	}
	return map[string]any{"Error": payload}
}

// execNode выполняет нетерминальный узел: выбор входа, вызов, запись
// результата по ResultPath, выбор выхода по OutputPath.
func (c *Coordinator) execNode(ctx context.Context, st *RunState, node *workflow.Node, data any, branch int) (any, error) {
	if err := st.start(node.ID, branch); err != nil {
		return nil, c.failNode(ctx, st, node, branch, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err))
	}
	c.emit(ctx, st, node, NodeRunning, branch, data, nil, nil)

	if cause := context.Cause(ctx); cause != nil {
		return nil, c.failNode(ctx, st, node, branch, cancelled(node.ID, cause))
	}

	input, err := workflow.Select(data, node.InputPath)
	if err != nil {
		return nil, c.failNode(ctx, st, node, branch, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err))
	}

	var result any
	switch node.Kind {
	case workflow.KindTask:
		result, err = c.callTask(ctx, st, node, input)
	case workflow.KindAsyncTask:
		result, err = c.callAsync(ctx, st, node, input, branch)
	case workflow.KindParallel:
		result, err = c.runParallel(ctx, st, node, input)
	case workflow.KindChain:
		result, err = c.runChain(ctx, st, node, input, branch)
	default:
		err = fmt.Errorf("unsupported node kind %q", node.Kind)
	}
	if err != nil {
		return nil, c.failNode(ctx, st, node, branch, classify(ctx, node.ID, err))
	}

	out, err := workflow.Merge(data, node.ResultPath, result)
	if err == nil {
		out, err = workflow.Select(out, node.OutputPath)
	}
	if err != nil {
		return nil, c.failNode(ctx, st, node, branch, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err))
	}

	st.succeed(node.ID, result)
	c.emit(ctx, st, node, NodeSucceeded, branch, input, result, nil)
	return out, nil
}

// payload строит полезную нагрузку вызова из входа и Parameters.
func (c *Coordinator) payload(st *RunState, node *workflow.Node, input any, token string) (any, error) {
	if node.Parameters == nil {
		return workflow.Copy(input), nil
	}
	return workflow.RenderParameters(node.Parameters, input, workflow.ContextObject{
		ExecutionID:    st.runID,
		ExecutionInput: st.input,
		NodeID:         node.ID,
		TaskToken:      token,
	})
}

// callTask выполняет синхронный вызов.
func (c *Coordinator) callTask(ctx context.Context, st *RunState, node *workflow.Node, input any) (any, error) {
	payload, err := c.payload(st, node, input, "")
	if err != nil {
		return nil, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err)
	}

	if timeout := node.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx = telemetry.WithLogger(ctx, telemetry.NodeLogger(c.logger, st.runID, node.ID))
	return c.invoker.Invoke(ctx, &invoke.Request{
		RunID:    st.runID,
		NodeID:   node.ID,
		Resource: node.Resource,
		Payload:  payload,
		Timeout:  node.Timeout(),
	})
}

// callAsync регистрирует токен, выполняет вызов и ждёт Complete.
func (c *Coordinator) callAsync(ctx context.Context, st *RunState, node *workflow.Node, input any, branch int) (any, error) {
	token := c.newToken()

	payload, err := c.payload(st, node, input, token)
	if err != nil {
		return nil, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err)
	}

	ch := c.addWaiter(token)
	defer c.removeWaiter(token)

	if err := c.tokens.Put(ctx, token, tokensEntry(st.runID, node)); err != nil {
		return nil, workflow.NewFailure(node.ID, workflow.ErrorRuntime, err)
	}
	st.await(node.ID, token)
	c.emit(ctx, st, node, NodeAwaitingCallback, branch, input, nil, nil)

	invokeCtx := telemetry.WithLogger(ctx, telemetry.NodeLogger(c.logger, st.runID, node.ID).With("token", token))
	_, err = c.invoker.Invoke(invokeCtx, &invoke.Request{
		RunID:    st.runID,
		NodeID:   node.ID,
		Resource: node.Resource,
		Payload:  payload,
		Token:    token,
		Timeout:  node.Timeout(),
	})
	if err != nil {
		if comp, done := c.abandon(token, ch); done {
			return completionResult(node.ID, comp)
		}
		return nil, err
	}

	var timeout <-chan time.Time
	if d := node.Timeout(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case comp := <-ch:
		return completionResult(node.ID, comp)
	case <-ctx.Done():
		if comp, done := c.abandon(token, ch); done {
			return completionResult(node.ID, comp)
		}
		return nil, cancelled(node.ID, context.Cause(ctx))
	case <-timeout:
		if comp, done := c.abandon(token, ch); done {
			return completionResult(node.ID, comp)
		}
		return nil, workflow.NewFailure(node.ID, workflow.ErrorTimeout,
			fmt.Errorf("no completion within %s", node.Timeout()))
	}
}

// abandon снимает ожидание токена и удаляет его из таблицы.
// Если Complete успел забрать ожидание раньше, возвращает его
// завершение: узел считается завершённым, а не упавшим.
func (c *Coordinator) abandon(token string, ch chan invoke.Completion) (invoke.Completion, bool) {
	if _, ok := c.claimWaiter(token); !ok {
		return <-ch, true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = c.tokens.Take(ctx, token)
	return invoke.Completion{}, false
}

func completionResult(nodeID string, comp invoke.Completion) (any, error) {
	if comp.Failed() {
		f := workflow.NewFailure(nodeID, comp.Error, nil)
		f.Cause = comp.Cause
		return nil, f
	}
	return comp.Output, nil
}

// runChain выполняет тело chain как один шаг.
func (c *Coordinator) runChain(ctx context.Context, st *RunState, node *workflow.Node, input any, branch int) (any, error) {
	out, terminal, err := c.runBlock(ctx, st, node.Body, input, branch)
	if err != nil {
		return nil, err
	}
	if terminal != nil && terminal.Kind == workflow.KindFail {
		return nil, failTerminal(terminal)
	}
	return out, nil
}

func (c *Coordinator) failNode(ctx context.Context, st *RunState, node *workflow.Node, branch int, f *workflow.NodeExecutionFailure) error {
	st.fail(node.ID, f)
	c.emit(ctx, st, node, NodeFailed, branch, nil, nil, f)
	c.logger.Warn("node failed",
		"run_id", st.runID,
		"node_id", node.ID,
		"error_kind", f.Kind,
		"error", f.Cause,
	)
	return f
}

func (c *Coordinator) emit(ctx context.Context, st *RunState, node *workflow.Node, status NodeStatus, branch int, input, output any, f *workflow.NodeExecutionFailure) {
	if status.IsFinal() {
		telemetry.NodeExecutionsTotal.WithLabelValues(string(node.Kind), string(status)).Inc()
	}
	ns, _ := st.Node(node.ID)
	c.observer.NodeChanged(ctx, NodeEvent{
		RunID:   st.runID,
		NodeID:  node.ID,
		Kind:    node.Kind,
		Status:  status,
		Branch:  branch,
		Token:   ns.Token,
		Input:   input,
		Output:  output,
		Failure: f,
		Time:    time.Now().UTC(),
	})
}

// classify приводит ошибку вызова к NodeExecutionFailure.
func classify(ctx context.Context, nodeID string, err error) *workflow.NodeExecutionFailure {
	var f *workflow.NodeExecutionFailure
	if errors.As(err, &f) {
		return f
	}
	if cause := context.Cause(ctx); cause != nil {
		return cancelled(nodeID, cause)
	}
	var terr *invoke.TaskError
	if errors.As(err, &terr) {
		f := workflow.NewFailure(nodeID, terr.Kind, err)
		f.Cause = terr.Cause
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return workflow.NewFailure(nodeID, workflow.ErrorTimeout, err)
	}
	return workflow.NewFailure(nodeID, workflow.ErrorTaskFailed, err)
}

func cancelled(nodeID string, cause error) *workflow.NodeExecutionFailure {
	if cause == nil {
		cause = ErrRunCancelled
	}
	return workflow.NewFailure(nodeID, workflow.ErrorCancelled, cause)
}

// failTerminal — ошибка Fail-узла внутри ветки или тела chain.
func failTerminal(node *workflow.Node) *workflow.NodeExecutionFailure {
	f := workflow.NewFailure(node.ID, workflow.ErrorFail, nil)
	f.Cause = node.Subject
	return f
}
