package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// Терминальные узлы конвейера.
const (
	NodePipelineSucceeded = "Pipeline Succeeded"
	NodePipelineFailure   = "Pipeline Failure"
)

// PhaseOptions — параметры конвейера.
type PhaseOptions struct {
	SuccessSubject string
	FailureSubject string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PhaseResultPath возвращает путь результата фазы: $.Result.<Phase>,
// для имён с пробелами и знаками — $.Result['<Phase>'].
func PhaseResultPath(phase string) string {
	if identRe.MatchString(phase) {
		return "$.Result." + phase
	}
	return "$.Result['" + strings.ReplaceAll(phase, "'", `\'`) + "']"
}

// Phases строит граф конвейера: фазы выполняются последовательно,
// шаги фазы — параллельно. Результат фазы — список результатов шагов
// в порядке объявления.
//
// Ошибка любого шага прерывает конвейер и передаётся в общий Fail
// по пути $.Error.
func Phases(phases []domain.Phase, opts PhaseOptions) (*workflow.Graph, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("%w: no phases", domain.ErrInvalidLaunchFunction)
	}
	if opts.SuccessSubject == "" {
		opts.SuccessSubject = NodePipelineSucceeded
	}
	if opts.FailureSubject == "" {
		opts.FailureSubject = NodePipelineFailure
	}

	b := workflow.NewBuilder()
	chain := make([]string, 0, len(phases)+1)
	for _, phase := range phases {
		branches := make([]string, 0, len(phase.Steps))
		for _, step := range phase.Steps {
			branches = append(branches, addStep(b, step))
		}
		chain = append(chain, b.Parallel(phase.Name, branches,
			workflow.WithResultPath(PhaseResultPath(phase.Name)),
		))
	}
	chain = append(chain, b.Succeed(NodePipelineSucceeded,
		workflow.WithNotification(opts.SuccessSubject, "$.Result"),
	))
	b.Fail(NodePipelineFailure, workflow.WithNotification(opts.FailureSubject, workflow.DefaultErrorPath))
	b.SetSharedFail(NodePipelineFailure)
	b.Chain(chain...)

	g, err := b.Build(chain[0])
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return g, nil
}

func addStep(b *workflow.Builder, step domain.Step) string {
	opts := []workflow.Option{
		workflow.WithTimeout(time.Duration(step.TimeoutSec) * time.Second),
	}
	params := step.Parameters
	if step.Async {
		params = withToken(params)
	}
	if len(params) > 0 {
		opts = append(opts, workflow.WithParameters(params))
	}
	if step.Async {
		return b.AsyncTask(step.Name, step.Resource, opts...)
	}
	return b.Task(step.Name, step.Resource, opts...)
}

// withToken добавляет токен корреляции в параметры асинхронного шага.
func withToken(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if _, ok := out["TaskToken.$"]; !ok {
		out["TaskToken.$"] = "$$.Task.Token"
	}
	return out
}
