package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Launchpad/internal/coordinator"
	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/pipeline"
	"github.com/shaiso/Launchpad/internal/repo"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// handleRunPending обрабатывает событие о новом pending run.
func (o *Orchestrator) handleRunPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.pending payload", "error", err)
		return mq.Permanent(err)
	}

	o.logger.Debug("received run.pending event", "run_id", payload.RunID)

	if o.isRunActive(payload.RunID) {
		o.logger.Debug("run already active, skipping", "run_id", payload.RunID)
		return nil
	}

	if err := o.processRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunNotFound) {
			o.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}
	return nil
}

// handleStepCompleted доставляет завершение асинхронного шага.
func (o *Orchestrator) handleStepCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.StepCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse step.completed payload", "error", err)
		return mq.Permanent(err)
	}
	return o.processStepCompleted(ctx, payload)
}

// processStepCompleted доставляет завершение координатору. Если узел,
// ожидающий токен, выполняется другим экземпляром, завершение
// переотправляется не более maxHops раз.
func (o *Orchestrator) processStepCompleted(ctx context.Context, payload mq.StepCompletedPayload) error {
	if !o.coord.Owns(payload.Token) && o.publisher != nil && payload.Hops < o.maxHops {
		payload.Hops++
		o.logger.Debug("completion for another coordinator, republishing",
			"token", payload.Token,
			"hops", payload.Hops,
		)
		return o.publisher.PublishStepCompleted(ctx, payload)
	}

	completion := invoke.Success(payload.Output)
	if payload.Error != "" {
		completion = invoke.Failure(payload.Error, payload.Cause)
	}
	if _, err := o.coord.Complete(ctx, payload.Token, completion); err != nil {
		return fmt.Errorf("complete token: %w", err)
	}
	return nil
}

// handleRunCancel обрабатывает запрос отмены run.
func (o *Orchestrator) handleRunCancel(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCancelPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.cancel payload", "error", err)
		return mq.Permanent(err)
	}
	return o.CancelRun(ctx, payload.RunID, payload.Reason)
}

// CancelRun отменяет run: активный run прерывается координатором,
// PENDING run отменяется в БД. Завершённые runs не меняются.
func (o *Orchestrator) CancelRun(ctx context.Context, runID uuid.UUID, reason string) error {
	o.mu.Lock()
	o.cancelReasons[runID.String()] = reason
	o.mu.Unlock()

	if o.coord.Cancel(runID.String()) {
		return nil
	}

	o.mu.Lock()
	delete(o.cancelReasons, runID.String())
	o.mu.Unlock()

	run, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		// RUNNING на другом экземпляре: запрос получит он, здесь игнорируем.
		o.logger.Debug("run cancel ignored", "run_id", runID, "status", run.Status)
		return nil
	}
	if err := o.runs.CancelPending(ctx, run, reason); err != nil && !errors.Is(err, repo.ErrInvalidState) {
		return err
	}
	o.logger.Info("pending run cancelled", "run_id", runID, "reason", reason)
	return nil
}

// processRun забирает pending run и запускает выполнение его графа.
func (o *Orchestrator) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	if err := o.runs.Start(ctx, run); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("start run: %w", err)
	}

	graph, err := o.buildGraph(ctx, run)
	if err != nil {
		return o.failRun(ctx, run, err)
	}

	o.runsWG.Add(1)
	go func() {
		defer o.runsWG.Done()
		o.executeRun(o.baseCtx, run, graph)
	}()
	return nil
}

// buildGraph строит граф launch-функции run.
func (o *Orchestrator) buildGraph(ctx context.Context, run *domain.Run) (*workflow.Graph, error) {
	fn, err := o.functions.Get(ctx, run.Namespace, run.LaunchFunction)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrLaunchFunctionNotFound, run.Namespace, run.LaunchFunction)
		}
		return nil, fmt.Errorf("get launch function: %w", err)
	}
	return pipeline.Build(ctx, fn, o.configs, o.resolver)
}

// executeRun выполняет граф и сохраняет итог run.
func (o *Orchestrator) executeRun(ctx context.Context, run *domain.Run, graph *workflow.Graph) {
	o.logger.Info("run started",
		"run_id", run.ID,
		"launch_function", run.LaunchFunction,
		"nodes", graph.Len(),
	)

	res, err := o.coord.Run(ctx, run.ID.String(), graph, run.Input)
	if res == nil {
		if err == nil {
			err = errors.New("coordinator returned no result")
		}
		_ = o.failRun(context.WithoutCancel(ctx), run, err)
		return
	}

	o.mu.Lock()
	reason, cancelled := o.cancelReasons[run.ID.String()]
	delete(o.cancelReasons, run.ID.String())
	o.mu.Unlock()

	switch {
	case cancelled:
		run.MarkCancelled(reason)
		run.Terminal = res.Terminal
		run.Output = res.Output
	case res.Status == coordinator.RunSucceeded:
		run.MarkSucceeded(res.Terminal, res.Output)
	default:
		run.MarkFailed(res.Terminal, res.Output, res.Error)
	}

	o.saveRun(ctx, run)

	o.logger.Info("run finished",
		"run_id", run.ID,
		"status", run.Status,
		"terminal", run.Terminal,
		"duration", run.Duration(),
	)
}

// failRun переводит run в статус FAILED, не выполняя граф.
func (o *Orchestrator) failRun(ctx context.Context, run *domain.Run, cause error) error {
	run.MarkFailed("", nil, map[string]any{
		"Error": ErrorRuntime,
		"Cause": cause.Error(),
	})
	o.saveRun(ctx, run)

	o.logger.Warn("run failed early",
		"run_id", run.ID,
		"error", cause,
	)
	return nil
}

// saveRun сохраняет итог run. Контекст run может быть уже отменён.
func (o *Orchestrator) saveRun(ctx context.Context, run *domain.Run) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := o.runs.Update(ctx, run); err != nil {
		o.logger.Error("failed to save run", "run_id", run.ID, "status", run.Status, "error", err)
	}
}
