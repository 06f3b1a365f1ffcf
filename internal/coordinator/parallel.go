package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Launchpad/internal/workflow"
)

// runParallel выполняет ветки конкурентно на копиях входа.
//
// Результат — выходы веток в порядке объявления. Ошибка ветки отменяет
// остальные; ошибка атрибутируется ветке с наименьшим индексом среди
// упавших сами по себе (не из-за отмены соседней ветки).
func (c *Coordinator) runParallel(ctx context.Context, st *RunState, node *workflow.Node, input any) (any, error) {
	results := make([]any, len(node.Branches))
	failures := make([]*workflow.NodeExecutionFailure, len(node.Branches))

	g, gctx := errgroup.WithContext(ctx)
	for i, start := range node.Branches {
		g.Go(func() error {
			out, terminal, err := c.runBlock(gctx, st, start, workflow.Copy(input), i)
			if err == nil && terminal != nil && terminal.Kind == workflow.KindFail {
				err = failTerminal(terminal)
			}
			if err != nil {
				f := workflow.AsFailure(start, err)
				f.Branch = i
				failures[i] = f
				return f
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, primaryFailure(failures)
	}
	return results, nil
}

// primaryFailure выбирает ошибку с наименьшим индексом ветки, предпочитая
// ошибки, не вызванные отменой.
func primaryFailure(failures []*workflow.NodeExecutionFailure) *workflow.NodeExecutionFailure {
	var fallback *workflow.NodeExecutionFailure
	for _, f := range failures {
		if f == nil {
			continue
		}
		if f.Kind != workflow.ErrorCancelled {
			return f
		}
		if fallback == nil {
			fallback = f
		}
	}
	return fallback
}
