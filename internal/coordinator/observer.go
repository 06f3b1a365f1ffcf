package coordinator

import (
	"context"
	"time"

	"github.com/shaiso/Launchpad/internal/workflow"
)

// NodeEvent — изменение статуса узла.
type NodeEvent struct {
	RunID   string
	NodeID  string
	Kind    workflow.Kind
	Status  NodeStatus
	Branch  int
	Token   string
	Input   any
	Output  any
	Failure *workflow.NodeExecutionFailure
	Time    time.Time
}

// Observer получает события выполнения. Вызовы синхронны и не должны
// блокироваться надолго; узлы параллельных веток вызывают Observer
// конкурентно.
type Observer interface {
	NodeChanged(ctx context.Context, e NodeEvent)
	RunFinished(ctx context.Context, r *Result)
}

// Observers рассылает события нескольким наблюдателям.
type Observers []Observer

// NodeChanged вызывает каждого наблюдателя.
func (o Observers) NodeChanged(ctx context.Context, e NodeEvent) {
	for _, obs := range o {
		obs.NodeChanged(ctx, e)
	}
}

// RunFinished вызывает каждого наблюдателя.
func (o Observers) RunFinished(ctx context.Context, r *Result) {
	for _, obs := range o {
		obs.RunFinished(ctx, r)
	}
}

type nopObserver struct{}

func (nopObserver) NodeChanged(context.Context, NodeEvent) {}
func (nopObserver) RunFinished(context.Context, *Result)   {}
