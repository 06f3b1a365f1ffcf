package override

import (
	"fmt"
	"sort"

	"github.com/shaiso/Launchpad/internal/configtree"
)

// Interface — внешнее описание точки переопределения в хранимом документе.
type Interface struct {
	JsonPath string `json:"JsonPath" yaml:"JsonPath"`
	Default  any    `json:"Default" yaml:"Default"`
}

// Interfaces — точки переопределения по пространствам имён:
// {namespace: {name: {JsonPath, Default}}}.
type Interfaces map[string]map[string]Interface

// Interfaces экспортирует реестр в формат хранимого документа.
func (r *Registry) Interfaces() Interfaces {
	points := make(map[string]Interface, r.Len())
	for _, e := range r.Entries() {
		points[e.Name] = Interface{
			JsonPath: e.Path.String(),
			Default:  configtree.Plain(e.Default),
		}
	}
	return Interfaces{r.namespace: points}
}

// FromInterfaces восстанавливает реестр пространства имён namespace из
// хранимого описания. Порядок регистрации — по имени, пути проверяются по schema.
func FromInterfaces(namespace string, schema *configtree.Tree, ifaces Interfaces) (*Registry, error) {
	reg := NewRegistry(namespace, schema)

	points := ifaces[reg.namespace]
	names := make([]string, 0, len(points))
	for name := range points {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		point := points[name]
		if err := reg.RegisterPath(name, point.JsonPath, point.Default); err != nil {
			return nil, fmt.Errorf("restore overrides: %w", err)
		}
	}
	return reg, nil
}

// Names возвращает имена всех точек описания, отсортированные.
func (i Interfaces) Names(namespace string) []string {
	names := make([]string, 0, len(i[namespace]))
	for name := range i[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
