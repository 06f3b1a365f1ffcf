package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Launchpad/internal/invoke"
	"github.com/shaiso/Launchpad/internal/mq"
	"github.com/shaiso/Launchpad/internal/telemetry"
)

// RetryPolicy — политика повторов шага.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток, включая первую.
	MaxAttempts int

	// Backoff — "exponential" или "fixed".
	Backoff string

	InitialDelay time.Duration // default: 1s
	MaxDelay     time.Duration // default: 30s

	// OnStatus — HTTP-коды, при которых логическая ошибка повторяется.
	// Пусто — повторяется любая логическая ошибка.
	OnStatus []int
}

// handleStepInvoke обрабатывает сообщение из очереди steps.invoke.
func (w *Worker) handleStepInvoke(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.StepInvokePayload](&delivery.Message)
	if err != nil {
		telemetry.FromContextOr(ctx, w.logger).Error("failed to parse step.invoke payload", "error", err)
		return mq.Permanent(err)
	}

	if err := w.processStep(ctx, payload); err != nil {
		if errors.Is(err, ErrInvalidStep) {
			return mq.Permanent(err)
		}
		telemetry.FromContextOr(ctx, w.logger).Error("failed to process step",
			"run_id", payload.RunID,
			"node_id", payload.NodeID,
			"error", err,
		)
		return err
	}
	return nil
}

// processStep выполняет шаг и публикует его завершение.
//
// Ошибка возвращается только если завершение не удалось опубликовать:
// тогда сообщение возвращается в очередь.
func (w *Worker) processStep(ctx context.Context, p mq.StepInvokePayload) error {
	if p.Token == "" || p.Resource == "" {
		return fmt.Errorf("%w: token and resource are required", ErrInvalidStep)
	}

	step := &Step{
		RunID:    p.RunID,
		NodeID:   p.NodeID,
		Resource: p.Resource,
		Token:    p.Token,
		Raw:      p.Payload,
		Timeout:  time.Duration(p.TimeoutSec) * time.Second,
	}
	if m, ok := p.Payload.(map[string]any); ok {
		step.Payload = m
	} else {
		step.Payload = map[string]any{}
	}

	name := invoke.Name(p.Resource)
	logger := telemetry.NodeLogger(telemetry.FromContextOr(ctx, w.logger), p.RunID, p.NodeID)
	logger.Info("step started", "executor", name)

	stepCtx := telemetry.WithLogger(ctx, logger)
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, step.Timeout)
		defer cancel()
	}

	result, execErr := w.executeWithRetry(stepCtx, name, step)

	completion := mq.StepCompletedPayload{Token: p.Token}
	switch {
	case execErr != nil && ctx.Err() != nil:
		// Воркер останавливается: шаг вернётся в очередь.
		return ctx.Err()
	case execErr != nil:
		completion.Error = invoke.ErrorTaskFailed
		if errors.Is(execErr, context.DeadlineExceeded) {
			completion.Error = invoke.ErrorTimeout
		}
		completion.Cause = execErr.Error()
	case result.Failed():
		completion.Error = result.ErrorKind
		if completion.Error == "" {
			completion.Error = invoke.ErrorTaskFailed
		}
		completion.Cause = result.Error
	case result.Deferred:
		telemetry.WorkerStepsTotal.WithLabelValues(name, "deferred").Inc()
		logger.Info("step forwarded", "executor", name, "attempt", step.Attempt)
		return nil
	default:
		completion.Output = result.Output
	}

	if completion.Error != "" {
		telemetry.WorkerStepsTotal.WithLabelValues(name, "failed").Inc()
		logger.Warn("step failed",
			"executor", name,
			"attempt", step.Attempt,
			"error", completion.Error,
			"cause", completion.Cause,
		)
	} else {
		telemetry.WorkerStepsTotal.WithLabelValues(name, "succeeded").Inc()
		logger.Info("step succeeded", "executor", name, "attempt", step.Attempt)
	}

	return w.publishCompletion(ctx, completion)
}

// publishCompletion публикует событие step.completed.
func (w *Worker) publishCompletion(ctx context.Context, payload mq.StepCompletedPayload) error {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping step.completed publish")
		return nil
	}
	if err := w.publisher.PublishStepCompleted(ctx, payload); err != nil {
		return fmt.Errorf("publish step.completed: %w", err)
	}
	return nil
}

// executeWithRetry выполняет шаг с retry согласно RetryPolicy.
func (w *Worker) executeWithRetry(ctx context.Context, name string, step *Step) (*ExecutionResult, error) {
	executor, err := w.registry.Get(name)
	if err != nil {
		return nil, err
	}

	maxAttempts := 1
	if w.retry != nil && w.retry.MaxAttempts > 0 {
		maxAttempts = w.retry.MaxAttempts
	}

	var lastResult *ExecutionResult
	var lastErr error

	for step.Attempt = 1; ; step.Attempt++ {
		lastResult, lastErr = executor.Execute(ctx, step)
		if lastErr == nil && lastResult == nil {
			lastResult = &ExecutionResult{}
		}

		if lastErr == nil && !lastResult.Failed() {
			return lastResult, nil
		}
		if step.Attempt >= maxAttempts || errors.Is(lastErr, ErrUnknownExecutor) {
			break
		}
		if !shouldRetry(lastResult, lastErr, w.retry) {
			break
		}

		delay := calculateBackoff(step.Attempt, w.retry)
		w.logger.Debug("retrying step",
			"run_id", step.RunID,
			"node_id", step.NodeID,
			"attempt", step.Attempt,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return lastResult, lastErr
}

// shouldRetry определяет, нужно ли делать retry.
func shouldRetry(result *ExecutionResult, execErr error, policy *RetryPolicy) bool {
	// Инфраструктурная ошибка — всегда retry, кроме истёкшего таймаута шага.
	if execErr != nil {
		return !errors.Is(execErr, context.DeadlineExceeded) && !errors.Is(execErr, context.Canceled)
	}
	if policy == nil {
		return false
	}

	if len(policy.OnStatus) > 0 {
		if outputs, ok := result.Output.(map[string]any); ok {
			if code, ok := outputs["status_code"].(int); ok {
				return shouldRetryHTTPStatus(code, policy.OnStatus)
			}
		}
		// OnStatus задан, но кода нет — не retry
		return false
	}

	// Логическая ошибка без OnStatus — retry
	return true
}

// shouldRetryHTTPStatus проверяет, входит ли HTTP-код в список для retry.
func shouldRetryHTTPStatus(statusCode int, onStatus []int) bool {
	for _, code := range onStatus {
		if statusCode == code {
			return true
		}
	}
	return false
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	default:
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
