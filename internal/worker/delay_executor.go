package worker

import (
	"context"
	"fmt"
	"time"
)

// DelayExecutor — executor "delay": пауза между проверками состояния
// кластера. Выход повторяет вход, поэтому узел можно вставить в цепочку
// без изменения данных.
//
// Payload:
//   - seconds (number): пауза в секундах
//   - until (string, RFC 3339): ждать до указанного момента
//
// Без обоих полей пауза — одна секунда. Момент в прошлом не ждёт.
type DelayExecutor struct {
	// Now — источник времени; nil — time.Now.
	Now func() time.Time
}

// Execute ждёт и возвращает step.Raw.
func (e *DelayExecutor) Execute(ctx context.Context, step *Step) (*ExecutionResult, error) {
	wait, err := e.waitFor(step.Payload)
	if err != nil {
		return &ExecutionResult{Error: err.Error()}, nil
	}
	if wait <= 0 {
		return &ExecutionResult{Output: step.Raw}, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return &ExecutionResult{Output: step.Raw}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *DelayExecutor) waitFor(payload map[string]any) (time.Duration, error) {
	if raw, ok := payload["until"]; ok {
		s, _ := raw.(string)
		at, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, fmt.Errorf("delay until %v: expected RFC 3339 timestamp", raw)
		}
		now := time.Now
		if e.Now != nil {
			now = e.Now
		}
		return at.Sub(now()), nil
	}

	switch v := payload["seconds"].(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case nil:
		return time.Second, nil
	default:
		return 0, fmt.Errorf("delay seconds %v: expected number", v)
	}
}

// EchoExecutor — executor "echo": возвращает полезную нагрузку без изменений.
type EchoExecutor struct{}

// Execute возвращает step.Raw.
func (e *EchoExecutor) Execute(_ context.Context, step *Step) (*ExecutionResult, error) {
	return &ExecutionResult{Output: step.Raw}, nil
}
