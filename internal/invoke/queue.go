package invoke

import (
	"context"
	"fmt"

	"github.com/shaiso/Launchpad/internal/mq"
)

// StepPublisher публикует асинхронные шаги.
type StepPublisher interface {
	PublishStepInvoke(ctx context.Context, payload mq.StepInvokePayload) error
}

// Queue отправляет асинхронный шаг исполнителю через RabbitMQ
// (ресурс "queue:<executor>"). Синхронный вызов не поддерживается.
type Queue struct {
	publisher StepPublisher
}

// NewQueue создаёт Queue Invoker.
func NewQueue(publisher StepPublisher) *Queue {
	return &Queue{publisher: publisher}
}

// Invoke публикует step.invoke.
func (q *Queue) Invoke(ctx context.Context, req *Request) (any, error) {
	if !req.Async() {
		return nil, fmt.Errorf("%w: %s", ErrAsyncOnly, req.Resource)
	}

	err := q.publisher.PublishStepInvoke(ctx, mq.StepInvokePayload{
		RunID:      req.RunID,
		NodeID:     req.NodeID,
		Resource:   Name(req.Resource),
		Token:      req.Token,
		Payload:    req.Payload,
		TimeoutSec: int(req.Timeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("publish step %s: %w", req.NodeID, err)
	}
	return nil, nil
}
