package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// Узлы launch-cluster.
const (
	NodeOverrideClusterConfigs = "Override Cluster Configs"
	NodeFailIfClusterRunning   = "Fail If Cluster Running"
	NodeStartCluster           = "Start Cluster"
	NodeLaunchSucceeded        = "Launch Cluster Succeeded"
	NodeLaunchFailure          = "Launch Cluster Failure"
)

// Параметры, из которых берутся ресурсы шагов, если они не заданы явно.
const (
	EndpointPrefix                = "/launchpad/control_plane/endpoints"
	ParamOverrideClusterConfigs   = EndpointPrefix + "/override_cluster_configs"
	ParamFailIfClusterRunning     = EndpointPrefix + "/fail_if_cluster_running"
	ParamStartCluster             = EndpointPrefix + "/start_cluster"
	DefaultOverrideClusterConfigs = "local:override-cluster-configs"
	DefaultFailIfClusterRunning   = "local:fail-if-cluster-running"
	DefaultStartCluster           = "queue:start-cluster"
)

// LaunchOptions — параметры launch-cluster.
type LaunchOptions struct {
	// Ресурсы шагов; пустые берутся из параметров, затем из Default*.
	OverrideClusterConfigs string
	FailIfClusterRunning   string
	StartCluster           string

	DefaultFailIfClusterRunning bool
	ClusterName                 string
	ClusterTags                 map[string]string
	StartTimeout                time.Duration

	SuccessSubject string
	FailureSubject string
}

func (o LaunchOptions) withDefaults() LaunchOptions {
	if o.SuccessSubject == "" {
		o.SuccessSubject = NodeLaunchSucceeded
	}
	if o.FailureSubject == "" {
		o.FailureSubject = NodeLaunchFailure
	}
	return o
}

// LaunchCluster строит граф запуска кластера по хранимой конфигурации.
//
// Документ конфигурации встраивается в параметры первого шага, поэтому
// граф не зависит от последующих изменений хранимой конфигурации.
func LaunchCluster(ctx context.Context, rec *clusterconfig.Record, resolver param.Resolver, opts LaunchOptions) (*workflow.Graph, error) {
	if rec == nil {
		return nil, clusterconfig.ErrConfigurationNotFound
	}
	opts = opts.withDefaults()

	overrideRes, err := endpoint(ctx, resolver, opts.OverrideClusterConfigs, ParamOverrideClusterConfigs, DefaultOverrideClusterConfigs)
	if err != nil {
		return nil, err
	}
	checkRes, err := endpoint(ctx, resolver, opts.FailIfClusterRunning, ParamFailIfClusterRunning, DefaultFailIfClusterRunning)
	if err != nil {
		return nil, err
	}
	startRes, err := endpoint(ctx, resolver, opts.StartCluster, ParamStartCluster, DefaultStartCluster)
	if err != nil {
		return nil, err
	}

	document, err := recordPayload(rec)
	if err != nil {
		return nil, err
	}

	overrideParams := map[string]any{
		"ExecutionInput.$": "$$.Execution.Input",
		"ClusterConfig":    document,
	}
	if opts.ClusterName != "" {
		overrideParams["DefaultOverrides"] = map[string]any{"ClusterName": opts.ClusterName}
	}
	if len(opts.ClusterTags) > 0 {
		tags := make(map[string]any, len(opts.ClusterTags))
		for k, v := range opts.ClusterTags {
			tags[k] = v
		}
		overrideParams["ClusterTags"] = tags
	}

	b := workflow.NewBuilder()
	b.Task(NodeOverrideClusterConfigs, overrideRes,
		workflow.WithParameters(overrideParams),
		workflow.WithResultPath("$.ClusterConfig"),
	)
	b.Task(NodeFailIfClusterRunning, checkRes,
		workflow.WithParameters(map[string]any{
			"ExecutionInput.$":            "$$.Execution.Input",
			"DefaultFailIfClusterRunning": opts.DefaultFailIfClusterRunning,
			"ClusterConfig.$":             "$.ClusterConfig",
		}),
		workflow.WithResultPath(workflow.RootPath),
	)
	b.AsyncTask(NodeStartCluster, startRes,
		workflow.WithParameters(map[string]any{
			"ExecutionInput.$": "$$.Execution.Input",
			"ClusterConfig.$":  "$.ClusterConfig",
			"TaskToken.$":      "$$.Task.Token",
		}),
		workflow.WithResultPath("$.Result"),
		workflow.WithTimeout(opts.StartTimeout),
	)
	b.Succeed(NodeLaunchSucceeded, workflow.WithNotification(opts.SuccessSubject, "$.Result"))
	b.Fail(NodeLaunchFailure, workflow.WithNotification(opts.FailureSubject, workflow.DefaultErrorPath))
	b.SetSharedFail(NodeLaunchFailure)
	b.Chain(NodeOverrideClusterConfigs, NodeFailIfClusterRunning, NodeStartCluster, NodeLaunchSucceeded)

	g, err := b.Build(NodeOverrideClusterConfigs)
	if err != nil {
		return nil, fmt.Errorf("build launch cluster %s: %w", rec.ConfigurationName, err)
	}
	return g, nil
}

// endpoint выбирает ресурс шага: явное значение, параметр или значение
// по умолчанию. Ошибка источника параметров, кроме отсутствия, возвращается.
func endpoint(ctx context.Context, resolver param.Resolver, explicit, name, fallback string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if resolver == nil {
		return fallback, nil
	}
	v, err := resolver.Resolve(ctx, name)
	switch {
	case err == nil && v != "":
		return v, nil
	case err == nil, errors.Is(err, param.ErrParameterNotFound):
		return fallback, nil
	default:
		return "", fmt.Errorf("resolve endpoint %s: %w", name, err)
	}
}

// recordPayload преобразует документ конфигурации в данные выполнения.
func recordPayload(rec *clusterconfig.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode configuration %s: %w", rec.ConfigurationName, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode configuration %s: %w", rec.ConfigurationName, err)
	}
	return out, nil
}
