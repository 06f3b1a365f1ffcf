package clusterconfig

import (
	"context"

	"github.com/shaiso/Launchpad/internal/configtree"
	"github.com/shaiso/Launchpad/internal/override"
)

// Имена профилей специализаций.
const (
	ProfileInstanceGroups = "instance-groups"
	ProfileInstanceFleets = "instance-fleets"
	ProfileAutoScaling    = "autoscaling"
	ProfileManagedScaling = "managed-scaling"
)

const defaultInstanceType = "m4.large"

func ebsConfiguration() *configtree.Tree {
	return configtree.New().
		Set("EbsBlockDeviceConfigs", []any{
			configtree.New().
				Set("VolumeSpecification", configtree.New().
					Set("SizeInGB", 500).
					Set("VolumeType", "st1")).
				Set("VolumesPerInstance", 1),
		}).
		Set("EbsOptimized", true)
}

func entry(name, path string, def any) override.Entry {
	return override.Entry{Name: name, Path: configtree.MustParsePath(path), Default: def}
}

// InstanceGroupsOptions — параметры кластера на группах инстансов.
type InstanceGroupsOptions struct {
	Subnet             string     `yaml:"subnet" json:"subnet"`
	MasterInstanceType string     `yaml:"master_instance_type" json:"master_instance_type"`
	MasterMarket       MarketType `yaml:"master_market" json:"master_market"`
	CoreInstanceType   string     `yaml:"core_instance_type" json:"core_instance_type"`
	CoreMarket         MarketType `yaml:"core_market" json:"core_market"`
	CoreInstanceCount  int        `yaml:"core_instance_count" json:"core_instance_count"`
}

func (o InstanceGroupsOptions) withDefaults() InstanceGroupsOptions {
	if o.MasterInstanceType == "" {
		o.MasterInstanceType = defaultInstanceType
	}
	if o.MasterMarket == "" {
		o.MasterMarket = OnDemand
	}
	if o.CoreInstanceType == "" {
		o.CoreInstanceType = defaultInstanceType
	}
	if o.CoreMarket == "" {
		o.CoreMarket = OnDemand
	}
	if o.CoreInstanceCount <= 0 {
		o.CoreInstanceCount = 2
	}
	return o
}

// InstanceGroups — группы Master и Core с EBS-томами.
func InstanceGroups(opts InstanceGroupsOptions) Specialization {
	o := opts.withDefaults()

	group := func(name, role, instanceType string, market MarketType, count int) *configtree.Tree {
		return configtree.New().
			Set("Name", name).
			Set("InstanceRole", role).
			Set("InstanceType", instanceType).
			Set("Market", string(market)).
			Set("InstanceCount", count).
			Set("EbsConfiguration", ebsConfiguration())
	}

	return Specialization{
		Name: ProfileInstanceGroups,
		Patches: []Patch{
			{Path: configtree.P("Instances", "Ec2SubnetId"), Value: nullable(o.Subnet)},
			{Path: configtree.P("Instances", "InstanceGroups"), Value: []any{
				group("Master", "MASTER", o.MasterInstanceType, o.MasterMarket, 1),
				group("Core", "CORE", o.CoreInstanceType, o.CoreMarket, o.CoreInstanceCount),
			}},
		},
		Overrides: []override.Entry{
			entry("MasterInstanceType", "Instances.InstanceGroups.0.InstanceType", o.MasterInstanceType),
			entry("MasterInstanceMarket", "Instances.InstanceGroups.0.Market", string(o.MasterMarket)),
			entry("CoreInstanceCount", "Instances.InstanceGroups.1.InstanceCount", o.CoreInstanceCount),
			entry("CoreInstanceType", "Instances.InstanceGroups.1.InstanceType", o.CoreInstanceType),
			entry("CoreInstanceMarket", "Instances.InstanceGroups.1.Market", string(o.CoreMarket)),
			entry("Subnet", "Instances.Ec2SubnetId", o.Subnet),
		},
	}
}

// AutoScalingOptions — параметры группы Task с политикой автомасштабирования.
type AutoScalingOptions struct {
	TaskInstanceType     string     `yaml:"task_instance_type" json:"task_instance_type"`
	TaskMarket           MarketType `yaml:"task_market" json:"task_market"`
	InitialInstanceCount int        `yaml:"initial_instance_count" json:"initial_instance_count"`
	MinimumInstanceCount int        `yaml:"minimum_instance_count" json:"minimum_instance_count"`
	MaximumInstanceCount int        `yaml:"maximum_instance_count" json:"maximum_instance_count"`
	ScaleOutAdjustment   int        `yaml:"scale_out_adjustment" json:"scale_out_adjustment"`
	ScaleInAdjustment    int        `yaml:"scale_in_adjustment" json:"scale_in_adjustment"`
}

func (o AutoScalingOptions) withDefaults() AutoScalingOptions {
	if o.TaskInstanceType == "" {
		o.TaskInstanceType = defaultInstanceType
	}
	if o.TaskMarket == "" {
		o.TaskMarket = OnDemand
	}
	if o.InitialInstanceCount <= 0 {
		o.InitialInstanceCount = 2
	}
	if o.MinimumInstanceCount <= 0 {
		o.MinimumInstanceCount = 2
	}
	if o.MaximumInstanceCount <= 0 {
		o.MaximumInstanceCount = 5
	}
	if o.ScaleOutAdjustment == 0 {
		o.ScaleOutAdjustment = 2
	}
	if o.ScaleInAdjustment == 0 {
		o.ScaleInAdjustment = 2
	}
	return o
}

// AutoScaling добавляет группу Task (индекс 2) с тремя правилами масштабирования.
// Требует профиля InstanceGroups.
func AutoScaling(opts AutoScalingOptions) Specialization {
	o := opts.withDefaults()

	// Масштабирование наружу всегда положительно, внутрь — отрицательно.
	scaleOut := abs(o.ScaleOutAdjustment)
	scaleIn := -abs(o.ScaleInAdjustment)

	rule := func(name, description, metric, comparison, unit string, threshold any, adjustment int) *configtree.Tree {
		return configtree.New().
			Set("Action", configtree.New().
				Set("SimpleScalingPolicyConfiguration", configtree.New().
					Set("ScalingAdjustment", adjustment).
					Set("CoolDown", 300).
					Set("AdjustmentType", "CHANGE_IN_CAPACITY"))).
			Set("Description", description).
			Set("Trigger", configtree.New().
				Set("CloudWatchAlarmDefinition", configtree.New().
					Set("MetricName", metric).
					Set("ComparisonOperator", comparison).
					Set("Statistic", "AVERAGE").
					Set("Period", 300).
					Set("Dimensions", []any{
						configtree.New().Set("Value", "${emr.clusterId}").Set("Key", "JobFlowId"),
					}).
					Set("EvaluationPeriods", 3).
					Set("Unit", unit).
					Set("Namespace", "AWS/ElasticMapReduce").
					Set("Threshold", threshold))).
			Set("Name", name)
	}

	task := configtree.New().
		Set("InstanceCount", o.InitialInstanceCount).
		Set("AutoScalingPolicy", configtree.New().
			Set("Constraints", configtree.New().
				Set("MinCapacity", o.MinimumInstanceCount).
				Set("MaxCapacity", o.MaximumInstanceCount)).
			Set("Rules", []any{
				rule("ScaleOut-YARNMemoryAvailablePercentage", "Scale Out on YARNMemoryAvailablePercentage",
					"YARNMemoryAvailablePercentage", "LESS_THAN", "PERCENT", 15, scaleOut),
				rule("ScaleOut-ContainerPendingRatio", "Scale Out on ContainerPendingRatio",
					"ContainerPendingRatio", "GREATER_THAN", "COUNT", 0.75, scaleOut),
				rule("ScaleIn-YARNMemoryAvailablePercentage", "Scale In on YARNMemoryAvailablePercentage",
					"YARNMemoryAvailablePercentage", "GREATER_THAN", "PERCENT", 75, scaleIn),
			})).
		Set("InstanceRole", "TASK").
		Set("InstanceType", o.TaskInstanceType).
		Set("Market", string(o.TaskMarket)).
		Set("Name", "Task")

	return Specialization{
		Name:     ProfileAutoScaling,
		Requires: []configtree.Path{configtree.P("Instances", "InstanceGroups", 1)},
		Patches: []Patch{
			{Path: configtree.P("Instances", "InstanceGroups", 2), Value: task},
		},
		Overrides: []override.Entry{
			entry("TaskInstanceType", "Instances.InstanceGroups.2.InstanceType", o.TaskInstanceType),
			entry("TaskInstanceMarket", "Instances.InstanceGroups.2.Market", string(o.TaskMarket)),
			entry("TaskInitialInstanceCount", "Instances.InstanceGroups.2.InstanceCount", o.InitialInstanceCount),
			entry("TaskMinimumInstanceCount", "Instances.InstanceGroups.2.AutoScalingPolicy.Constraints.MinCapacity", o.MinimumInstanceCount),
			entry("TaskMaximumInstanceCount", "Instances.InstanceGroups.2.AutoScalingPolicy.Constraints.MaxCapacity", o.MaximumInstanceCount),
		},
	}
}

// InstanceFleetsOptions — параметры кластера на флотах инстансов.
type InstanceFleetsOptions struct {
	Subnets            []string   `yaml:"subnets" json:"subnets"`
	MasterInstanceType string     `yaml:"master_instance_type" json:"master_instance_type"`
	MasterMarket       MarketType `yaml:"master_market" json:"master_market"`
	CoreInstanceType   string     `yaml:"core_instance_type" json:"core_instance_type"`
	CoreOnDemandCount  *int       `yaml:"core_on_demand_count" json:"core_on_demand_count"`
	CoreSpotCount      *int       `yaml:"core_spot_count" json:"core_spot_count"`
}

// InstanceFleets — флоты Master и Core.
func InstanceFleets(opts InstanceFleetsOptions) Specialization {
	masterType := opts.MasterInstanceType
	if masterType == "" {
		masterType = defaultInstanceType
	}
	coreType := opts.CoreInstanceType
	if coreType == "" {
		coreType = defaultInstanceType
	}
	onDemand, spot := 2, 0
	if opts.CoreOnDemandCount != nil {
		onDemand = *opts.CoreOnDemandCount
	}
	if opts.CoreSpotCount != nil {
		spot = *opts.CoreSpotCount
	}

	typeConfigs := func(instanceType string) []any {
		return []any{configtree.New().
			Set("InstanceType", instanceType).
			Set("EbsConfiguration", ebsConfiguration())}
	}

	master := configtree.New().
		Set("Name", "Master").
		Set("InstanceFleetType", "MASTER").
		Set("InstanceTypeConfigs", typeConfigs(masterType))
	if opts.MasterMarket == Spot {
		master.Set("TargetSpotCapacity", 1)
	} else {
		master.Set("TargetOnDemandCapacity", 1)
	}

	core := configtree.New().
		Set("Name", "Core").
		Set("InstanceFleetType", "CORE").
		Set("TargetOnDemandCapacity", onDemand).
		Set("TargetSpotCapacity", spot).
		Set("InstanceTypeConfigs", typeConfigs(coreType))

	subnets := make([]any, 0, len(opts.Subnets))
	for _, s := range opts.Subnets {
		subnets = append(subnets, s)
	}

	return Specialization{
		Name: ProfileInstanceFleets,
		Patches: []Patch{
			{Path: configtree.P("Instances", "Ec2SubnetIds"), Value: subnets},
			{Path: configtree.P("Instances", "InstanceFleets"), Value: []any{master, core}},
		},
		Overrides: []override.Entry{
			entry("MasterInstanceType", "Instances.InstanceFleets.0.InstanceTypeConfigs.0.InstanceType", masterType),
			entry("CoreInstanceType", "Instances.InstanceFleets.1.InstanceTypeConfigs.0.InstanceType", coreType),
			entry("CoreInstanceOnDemandCount", "Instances.InstanceFleets.1.TargetOnDemandCapacity", onDemand),
			entry("CoreInstanceSpotCount", "Instances.InstanceFleets.1.TargetSpotCapacity", spot),
		},
	}
}

// ManagedScalingOptions — пределы управляемого масштабирования.
type ManagedScalingOptions struct {
	Minimum      int    `yaml:"minimum" json:"minimum"`
	Maximum      int    `yaml:"maximum" json:"maximum"`
	ReleaseLabel string `yaml:"release_label" json:"release_label"`
}

// ManagedScaling добавляет ManagedScalingPolicy.
//
// Для флотов единица — InstanceFleetUnits (переопределения MinimumCapacity,
// MaximumCapacity), иначе Instances (MinimumInstances, MaximumInstances).
// Базовый релиз по умолчанию поднимается до ManagedScalingReleaseLabel.
func ManagedScaling(fleets bool, opts ManagedScalingOptions) Specialization {
	if opts.Minimum <= 0 {
		opts.Minimum = 2
	}
	if opts.Maximum <= 0 {
		opts.Maximum = 10
	}

	unit, minName, maxName := "Instances", "MinimumInstances", "MaximumInstances"
	requires := configtree.P("Instances", "InstanceGroups")
	if fleets {
		unit, minName, maxName = "InstanceFleetUnits", "MinimumCapacity", "MaximumCapacity"
		requires = configtree.P("Instances", "InstanceFleets")
	}

	fragment := configtree.New().
		Set("ManagedScalingPolicy", configtree.New().
			Set("ComputeLimits", configtree.New().
				Set("MinimumCapacityUnits", opts.Minimum).
				Set("MaximumCapacityUnits", opts.Maximum).
				Set("UnitType", unit)))

	spec := Specialization{
		Name:      ProfileManagedScaling,
		Requires:  []configtree.Path{requires},
		Fragments: []*configtree.Tree{fragment},
		Overrides: []override.Entry{
			entry(minName, "ManagedScalingPolicy.ComputeLimits.MinimumCapacityUnits", opts.Minimum),
			entry(maxName, "ManagedScalingPolicy.ComputeLimits.MaximumCapacityUnits", opts.Maximum),
		},
	}
	if opts.ReleaseLabel != "" {
		spec.Patches = append(spec.Patches, Patch{Path: configtree.P("ReleaseLabel"), Value: opts.ReleaseLabel})
	}
	return spec
}

// WithManagedScaling применяет ManagedScaling к b, выбирая единицу по профилю b.
// Если релиз не задан явно и b использует DefaultReleaseLabel, он поднимается
// до ManagedScalingReleaseLabel.
func (b *Builder) WithManagedScaling(ctx context.Context, opts ManagedScalingOptions) (*Builder, error) {
	fleets := false
	for _, p := range b.profiles {
		if p == ProfileInstanceFleets {
			fleets = true
		}
	}
	if opts.ReleaseLabel == "" {
		if label, _ := b.tree.Get("ReleaseLabel"); label == DefaultReleaseLabel {
			opts.ReleaseLabel = ManagedScalingReleaseLabel
		}
	}
	return b.Specialize(ctx, ManagedScaling(fleets, opts))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
