package clusterconfig

import (
	"context"
	"fmt"

	"github.com/shaiso/Launchpad/internal/configtree"
	"github.com/shaiso/Launchpad/internal/override"
	"github.com/shaiso/Launchpad/internal/param"
)

// Builder — собранная конфигурация кластера с точками переопределения.
//
// Builder неизменяем с точки зрения вызывающего: Specialize, AddSparkPackage
// и AddSparkJars возвращают новый Builder.
type Builder struct {
	name        string
	namespace   string
	description string

	tree      *configtree.Tree
	overrides *override.Registry
	resolver  param.Resolver

	artifacts     []Artifact
	secrets       map[string]string
	sparkPackages []string
	sparkJars     []string
	profiles      []string

	readOnly bool
}

// New собирает базовую конфигурацию.
//
// Выражения {{ param "name" }} во входных строках разрешаются через resolver;
// отсутствующий параметр возвращается как ошибка сборки.
func New(ctx context.Context, in Inputs, resolver param.Resolver) (*Builder, error) {
	if in.Name == "" {
		return nil, ErrEmptyName
	}
	in = in.withDefaults()

	tree, err := Bind(ctx, baseTree(in), resolver)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", in.Name, err)
	}

	reg := override.NewRegistry(override.DefaultNamespace, tree)
	defaults := []struct {
		name string
		path configtree.Path
		def  any
	}{
		{"ClusterName", configtree.P("Name"), in.Name},
		{"ReleaseLabel", configtree.P("ReleaseLabel"), in.ReleaseLabel},
		{"StepConcurrencyLevel", configtree.P("StepConcurrencyLevel"), in.StepConcurrencyLevel},
	}
	for _, d := range defaults {
		if err := reg.Register(d.name, d.path, d.def); err != nil {
			return nil, fmt.Errorf("build %s: %w", in.Name, err)
		}
	}

	b := &Builder{
		name:        in.Name,
		namespace:   in.Namespace,
		description: in.Description,
		tree:        tree,
		overrides:   reg,
		resolver:    resolver,
		secrets:     copyStrings(in.SecretConfigurations),
	}
	for _, a := range in.BootstrapActions {
		if a.Artifact != nil {
			b.artifacts = append(b.artifacts, *a.Artifact)
		}
	}
	return b, nil
}

// Name возвращает имя конфигурации.
func (b *Builder) Name() string { return b.name }

// Namespace возвращает пространство имён конфигурации.
func (b *Builder) Namespace() string { return b.namespace }

// Description возвращает описание.
func (b *Builder) Description() string { return b.description }

// ReadOnly сообщает, восстановлена ли конфигурация из хранилища.
func (b *Builder) ReadOnly() bool { return b.readOnly }

// Profiles возвращает имена применённых специализаций.
func (b *Builder) Profiles() []string {
	return append([]string(nil), b.profiles...)
}

// Tree возвращает копию дерева конфигурации.
func (b *Builder) Tree() *configtree.Tree {
	return b.tree.Clone()
}

// Overrides возвращает реестр точек переопределения.
func (b *Builder) Overrides() *override.Registry {
	return b.overrides
}

// Artifacts возвращает артефакты конфигурации (bootstrap-скрипты, jar-файлы).
func (b *Builder) Artifacts() []Artifact {
	return append([]Artifact(nil), b.artifacts...)
}

// Resolve применяет именованные переопределения и возвращает итоговое дерево.
func (b *Builder) Resolve(overrides map[string]any) (*configtree.Tree, error) {
	return b.overrides.Apply(b.tree, overrides)
}

// Patch — запись значения по пути при специализации.
type Patch struct {
	Path  configtree.Path
	Value any
}

// Specialization — набор изменений, наслаиваемых на базовую конфигурацию.
type Specialization struct {
	// Name — имя профиля ("instance-groups", "autoscaling" ...).
	Name string

	// Requires — пути, которые должны существовать в базовом дереве.
	Requires []configtree.Path

	// Fragments — деревья, глубоко сливаемые с базовым.
	Fragments []*configtree.Tree

	// Patches — точечные записи, выполняемые после слияния.
	Patches []Patch

	// Overrides — новые точки переопределения.
	Overrides []override.Entry
}

// Specialize возвращает новый Builder с наложенной специализацией.
// Исходный Builder не изменяется.
func (b *Builder) Specialize(ctx context.Context, s Specialization) (*Builder, error) {
	if b.readOnly {
		return nil, ErrReadOnly
	}

	for _, p := range s.Requires {
		v, err := b.tree.Read(p)
		if err != nil || v == nil {
			return nil, fmt.Errorf("%w: %s requires %s", ErrIncompatibleProfile, s.Name, p)
		}
	}

	tree := b.tree.Clone()
	for _, f := range s.Fragments {
		tree.Merge(f)
	}
	for _, p := range s.Patches {
		if err := tree.Write(p.Path, p.Value); err != nil {
			return nil, fmt.Errorf("specialize %s: %w", s.Name, err)
		}
	}

	bind := newBinder(ctx, b.resolver)
	tree, err := bind.Tree(tree)
	if err != nil {
		return nil, fmt.Errorf("specialize %s: %w", s.Name, err)
	}

	child := override.NewRegistry(b.overrides.Namespace(), tree)
	for _, e := range s.Overrides {
		def := e.Default
		if str, ok := def.(string); ok {
			if def, err = bind.Render(str); err != nil {
				return nil, fmt.Errorf("specialize %s: override %s: %w", s.Name, e.Name, err)
			}
		}
		if err := child.Register(e.Name, e.Path, def); err != nil {
			return nil, fmt.Errorf("specialize %s: %w", s.Name, err)
		}
	}
	layered, err := child.Layer(b.overrides)
	if err != nil {
		return nil, fmt.Errorf("specialize %s: %w", s.Name, err)
	}

	out := b.clone()
	out.tree = tree
	out.overrides = layered
	if s.Name != "" {
		out.profiles = append(out.profiles, s.Name)
	}
	return out, nil
}

// UpdateConfigurations возвращает новый Builder со свойствами,
// добавленными в классификацию.
func (b *Builder) UpdateConfigurations(classification string, props map[string]string) (*Builder, error) {
	if b.readOnly {
		return nil, ErrReadOnly
	}
	return b.withClassification(classification, props)
}

func (b *Builder) withClassification(classification string, props map[string]string) (*Builder, error) {
	existing, _ := b.tree.Get("Configurations")
	configs, _ := existing.([]any)

	tree := b.tree.Clone()
	if err := tree.Write(configtree.P("Configurations"), UpdateConfigurations(configs, classification, props)); err != nil {
		return nil, err
	}
	reg, err := b.overrides.Rebind(tree)
	if err != nil {
		return nil, err
	}

	out := b.clone()
	out.tree = tree
	out.overrides = reg
	return out, nil
}

func (b *Builder) clone() *Builder {
	out := *b
	out.artifacts = append([]Artifact(nil), b.artifacts...)
	out.sparkPackages = append([]string(nil), b.sparkPackages...)
	out.sparkJars = append([]string(nil), b.sparkJars...)
	out.profiles = append([]string(nil), b.profiles...)
	out.secrets = copyStrings(b.secrets)
	return &out
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
