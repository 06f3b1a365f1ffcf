package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Launchpad/internal/clusterconfig"
	"github.com/shaiso/Launchpad/internal/domain"
	"github.com/shaiso/Launchpad/internal/param"
	"github.com/shaiso/Launchpad/internal/workflow"
)

// ConfigStore читает хранимые конфигурации.
type ConfigStore interface {
	Get(ctx context.Context, namespace, name string) (*domain.Configuration, error)
}

// Build строит граф launch-функции.
//
// Для launch-cluster хранимая конфигурация читается из configs и
// встраивается в граф; resolver задаёт ресурсы шагов, не указанные явно.
func Build(ctx context.Context, fn *domain.LaunchFunction, configs ConfigStore, resolver param.Resolver) (*workflow.Graph, error) {
	if err := fn.Validate(); err != nil {
		return nil, err
	}

	spec := fn.Spec
	switch spec.Kind {
	case domain.KindLaunchCluster:
		if configs == nil {
			return nil, fmt.Errorf("%s: configuration store is required", fn.Name)
		}
		ns, name := fn.ConfigurationRef()
		cfg, err := configs.Get(ctx, ns, name)
		if err != nil {
			return nil, fmt.Errorf("load configuration %s/%s: %w", ns, name, err)
		}
		rec, err := clusterconfig.ParseRecord(cfg.Document)
		if err != nil {
			return nil, err
		}
		return LaunchCluster(ctx, rec, resolver, LaunchOptions{
			OverrideClusterConfigs:      spec.Endpoints.OverrideClusterConfigs,
			FailIfClusterRunning:        spec.Endpoints.FailIfClusterRunning,
			StartCluster:                spec.Endpoints.StartCluster,
			DefaultFailIfClusterRunning: spec.DefaultFailIfClusterRunning,
			ClusterName:                 spec.ClusterName,
			ClusterTags:                 spec.ClusterTags,
			StartTimeout:                time.Duration(spec.StartTimeoutSec) * time.Second,
			SuccessSubject:              spec.SuccessSubject,
			FailureSubject:              spec.FailureSubject,
		})

	case domain.KindPipeline:
		return Phases(spec.Phases, PhaseOptions{
			SuccessSubject: spec.SuccessSubject,
			FailureSubject: spec.FailureSubject,
		})

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, spec.Kind)
	}
}
