package clusterconfig

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Launchpad/internal/param"
)

// SparkJars — jar-файлы одного артефакта.
type SparkJars struct {
	Artifact Artifact `yaml:"artifact" json:"artifact"`
	Jars     []string `yaml:"jars" json:"jars"`
}

// Definition — декларативное описание конфигурации (YAML или JSON).
//
//	name: etl-cluster
//	profile: instance-groups
//	instance_groups:
//	  subnet: '{{ param "/launchpad/network/subnet" }}'
//	  core_instance_count: 3
//	autoscaling: {}
//	spark_packages: [org.apache.hudi:hudi-spark-bundle_2.11:0.5.2]
type Definition struct {
	Name                 string            `yaml:"name" json:"name"`
	Namespace            string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Description          string            `yaml:"description,omitempty" json:"description,omitempty"`
	ReleaseLabel         string            `yaml:"release_label,omitempty" json:"release_label,omitempty"`
	Applications         []string          `yaml:"applications,omitempty" json:"applications,omitempty"`
	BootstrapActions     []BootstrapAction `yaml:"bootstrap_actions,omitempty" json:"bootstrap_actions,omitempty"`
	Configurations       []Classification  `yaml:"configurations,omitempty" json:"configurations,omitempty"`
	UseGlueCatalog       *bool             `yaml:"use_glue_catalog,omitempty" json:"use_glue_catalog,omitempty"`
	StepConcurrencyLevel int               `yaml:"step_concurrency_level,omitempty" json:"step_concurrency_level,omitempty"`
	Tags                 map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
	LogURI               string            `yaml:"log_uri,omitempty" json:"log_uri,omitempty"`
	ServiceRole          string            `yaml:"service_role,omitempty" json:"service_role,omitempty"`
	JobFlowRole          string            `yaml:"job_flow_role,omitempty" json:"job_flow_role,omitempty"`
	SecretConfigurations map[string]string `yaml:"secret_configurations,omitempty" json:"secret_configurations,omitempty"`

	// Profile — "instance-groups" или "instance-fleets"; пусто — только база.
	Profile        string                 `yaml:"profile,omitempty" json:"profile,omitempty"`
	InstanceGroups *InstanceGroupsOptions `yaml:"instance_groups,omitempty" json:"instance_groups,omitempty"`
	InstanceFleets *InstanceFleetsOptions `yaml:"instance_fleets,omitempty" json:"instance_fleets,omitempty"`
	AutoScaling    *AutoScalingOptions    `yaml:"autoscaling,omitempty" json:"autoscaling,omitempty"`
	ManagedScaling *ManagedScalingOptions `yaml:"managed_scaling,omitempty" json:"managed_scaling,omitempty"`
	SparkPackages  []string               `yaml:"spark_packages,omitempty" json:"spark_packages,omitempty"`
	SparkJars      []SparkJars            `yaml:"spark_jars,omitempty" json:"spark_jars,omitempty"`
}

// ParseDefinition разбирает описание из YAML (JSON — подмножество YAML).
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if def.Name == "" {
		return nil, ErrEmptyName
	}
	return &def, nil
}

// Inputs возвращает параметры базовой конфигурации.
func (d *Definition) Inputs() Inputs {
	return Inputs{
		Name:                 d.Name,
		Namespace:            d.Namespace,
		Description:          d.Description,
		ReleaseLabel:         d.ReleaseLabel,
		Applications:         d.Applications,
		BootstrapActions:     d.BootstrapActions,
		Configurations:       d.Configurations,
		UseGlueCatalog:       d.UseGlueCatalog,
		StepConcurrencyLevel: d.StepConcurrencyLevel,
		Tags:                 d.Tags,
		LogURI:               d.LogURI,
		ServiceRole:          d.ServiceRole,
		JobFlowRole:          d.JobFlowRole,
		SecretConfigurations: d.SecretConfigurations,
	}
}

// Build собирает конфигурацию по описанию.
func (d *Definition) Build(ctx context.Context, resolver param.Resolver) (*Builder, error) {
	b, err := New(ctx, d.Inputs(), resolver)
	if err != nil {
		return nil, err
	}

	switch d.Profile {
	case "":
	case ProfileInstanceGroups:
		var opts InstanceGroupsOptions
		if d.InstanceGroups != nil {
			opts = *d.InstanceGroups
		}
		if b, err = b.Specialize(ctx, InstanceGroups(opts)); err != nil {
			return nil, err
		}
	case ProfileInstanceFleets:
		var opts InstanceFleetsOptions
		if d.InstanceFleets != nil {
			opts = *d.InstanceFleets
		}
		if b, err = b.Specialize(ctx, InstanceFleets(opts)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, d.Profile)
	}

	if d.AutoScaling != nil {
		if b, err = b.Specialize(ctx, AutoScaling(*d.AutoScaling)); err != nil {
			return nil, err
		}
	}
	if d.ManagedScaling != nil {
		if b, err = b.WithManagedScaling(ctx, *d.ManagedScaling); err != nil {
			return nil, err
		}
	}
	for _, pkg := range d.SparkPackages {
		if b, err = b.AddSparkPackage(pkg); err != nil {
			return nil, err
		}
	}
	for _, sj := range d.SparkJars {
		if b, err = b.AddSparkJars(sj.Artifact, sj.Jars...); err != nil {
			return nil, err
		}
	}
	return b, nil
}
