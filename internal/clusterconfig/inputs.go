package clusterconfig

import (
	"path"
	"sort"

	"github.com/shaiso/Launchpad/internal/configtree"
)

const (
	// DefaultReleaseLabel — релиз по умолчанию.
	DefaultReleaseLabel = "emr-5.29.0"

	// ManagedScalingReleaseLabel — минимальный релиз с управляемым масштабированием.
	ManagedScalingReleaseLabel = "emr-5.30.0"

	// DefaultNamespace — пространство имён конфигураций по умолчанию.
	DefaultNamespace = "default"

	// StorePrefix — префикс ключа хранимых конфигураций.
	StorePrefix = "/launchpad/cluster_configurations"

	glueFactoryProperty = "hive.metastore.client.factory.class"
	glueFactoryClass    = "com.amazonaws.glue.catalog.metastore.AWSGlueDataCatalogHiveClientFactory"
)

// DefaultApplications — приложения кластера по умолчанию.
var DefaultApplications = []string{"Hadoop", "Hive", "Spark", "Hue"}

// MarketType — тип рынка инстансов.
type MarketType string

const (
	OnDemand MarketType = "ON_DEMAND"
	Spot     MarketType = "SPOT"
)

// Artifact — расположение артефактов конфигурации в объектном хранилище.
type Artifact struct {
	Bucket string `json:"Bucket" yaml:"bucket"`
	Path   string `json:"Path" yaml:"path"`
}

// URI возвращает адрес артефакта (s3://bucket/path).
func (a Artifact) URI(file string) string {
	return "s3://" + path.Join(a.Bucket, a.Path, file)
}

// BootstrapAction — скрипт, выполняемый на узлах при старте кластера.
type BootstrapAction struct {
	Name     string    `yaml:"name" json:"name"`
	Path     string    `yaml:"path" json:"path"`
	Args     []string  `yaml:"args,omitempty" json:"args,omitempty"`
	Artifact *Artifact `yaml:"artifact,omitempty" json:"artifact,omitempty"`
}

// Classification — блок конфигурации приложения (hive-site, spark-defaults ...).
type Classification struct {
	Classification string            `yaml:"classification" json:"classification"`
	Properties     map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	Configurations []Classification  `yaml:"configurations,omitempty" json:"configurations,omitempty"`
}

// Inputs — декларируемые параметры базовой конфигурации.
type Inputs struct {
	Name                 string
	Namespace            string
	Description          string
	ReleaseLabel         string
	Applications         []string
	BootstrapActions     []BootstrapAction
	Configurations       []Classification
	UseGlueCatalog       *bool
	StepConcurrencyLevel int
	Tags                 map[string]string
	LogURI               string
	ServiceRole          string
	JobFlowRole          string
	SecretConfigurations map[string]string
}

func (in Inputs) withDefaults() Inputs {
	if in.Namespace == "" {
		in.Namespace = DefaultNamespace
	}
	if in.ReleaseLabel == "" {
		in.ReleaseLabel = DefaultReleaseLabel
	}
	if len(in.Applications) == 0 {
		in.Applications = DefaultApplications
	}
	if in.UseGlueCatalog == nil {
		glue := true
		in.UseGlueCatalog = &glue
	}
	if in.StepConcurrencyLevel <= 0 {
		in.StepConcurrencyLevel = 1
	}
	return in
}

// baseTree строит документ запуска кластера из входных параметров.
func baseTree(in Inputs) *configtree.Tree {
	apps := make([]any, 0, len(in.Applications))
	for _, app := range in.Applications {
		apps = append(apps, configtree.New().Set("Name", app))
	}

	actions := make([]any, 0, len(in.BootstrapActions))
	for _, a := range in.BootstrapActions {
		args := make([]any, 0, len(a.Args))
		for _, arg := range a.Args {
			args = append(args, arg)
		}
		actions = append(actions, configtree.New().
			Set("Name", a.Name).
			Set("ScriptBootstrapAction", configtree.New().
				Set("Path", a.Path).
				Set("Args", args)))
	}

	configs := classificationsToSeq(in.Configurations)
	glue := map[string]string{}
	if *in.UseGlueCatalog {
		glue[glueFactoryProperty] = glueFactoryClass
	}
	configs = UpdateConfigurations(configs, "hive-site", glue)
	configs = UpdateConfigurations(configs, "spark-hive-site", glue)

	instances := configtree.New().
		Set("AdditionalMasterSecurityGroups", nil).
		Set("AdditionalSlaveSecurityGroups", nil).
		Set("Ec2KeyName", nil).
		Set("Ec2SubnetId", nil).
		Set("Ec2SubnetIds", nil).
		Set("EmrManagedMasterSecurityGroup", nil).
		Set("EmrManagedSlaveSecurityGroup", nil).
		Set("InstanceFleets", nil).
		Set("InstanceGroups", nil).
		Set("KeepJobFlowAliveWhenNoSteps", true).
		Set("Placement", nil).
		Set("ServiceAccessSecurityGroup", nil).
		Set("TerminationProtected", false)

	return configtree.New().
		Set("Name", in.Name).
		Set("ReleaseLabel", in.ReleaseLabel).
		Set("Applications", apps).
		Set("BootstrapActions", actions).
		Set("Configurations", configs).
		Set("Instances", instances).
		Set("JobFlowRole", nullable(in.JobFlowRole)).
		Set("ServiceRole", nullable(in.ServiceRole)).
		Set("AutoScalingRole", nil).
		Set("LogUri", nullable(in.LogURI)).
		Set("ManagedScalingPolicy", nil).
		Set("SecurityConfiguration", nil).
		Set("StepConcurrencyLevel", in.StepConcurrencyLevel).
		Set("Tags", tagsToSeq(in.Tags)).
		Set("VisibleToAllUsers", true)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func tagsToSeq(tags map[string]string) []any {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, configtree.New().Set("Key", k).Set("Value", tags[k]))
	}
	return out
}

func classificationsToSeq(cs []Classification) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		node := configtree.New().
			Set("Classification", c.Classification).
			Set("Properties", propertiesTree(c.Properties))
		if len(c.Configurations) > 0 {
			node.Set("Configurations", classificationsToSeq(c.Configurations))
		}
		out = append(out, node)
	}
	return out
}

func propertiesTree(props map[string]string) *configtree.Tree {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := configtree.New()
	for _, k := range keys {
		t.Set(k, props[k])
	}
	return t
}

// UpdateConfigurations добавляет свойства в классификацию.
//
// Если классификация уже есть, свойства сливаются с существующими,
// иначе в конец добавляется новая классификация. Исходный срез не изменяется.
func UpdateConfigurations(configs []any, classification string, props map[string]string) []any {
	out := make([]any, 0, len(configs)+1)
	found := false

	for _, item := range configs {
		node, ok := item.(*configtree.Tree)
		if !ok {
			out = append(out, item)
			continue
		}
		node = node.Clone()
		if cls, _ := node.Get("Classification"); cls == classification {
			found = true
			existing, _ := node.Get("Properties")
			merged, ok := existing.(*configtree.Tree)
			if !ok {
				merged = configtree.New()
			}
			merged.Merge(propertiesTree(props))
			node.Set("Properties", merged)
		}
		out = append(out, node)
	}

	if !found {
		out = append(out, configtree.New().
			Set("Classification", classification).
			Set("Properties", propertiesTree(props)))
	}
	return out
}
