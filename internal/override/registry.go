package override

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Launchpad/internal/configtree"
)

// DefaultNamespace — пространство имён переопределений по умолчанию.
const DefaultNamespace = "default"

// Entry — точка переопределения.
type Entry struct {
	// Name — стабильное имя параметра для пользователя.
	Name string

	// Path — путь в дереве конфигурации.
	Path configtree.Path

	// Default — справочное значение по умолчанию (не применяется повторно).
	Default any
}

// Registry — набор точек переопределения одного пространства имён.
//
// Registry потокобезопасен: регистрация выполняется при сборке конфигурации,
// а Apply может вызываться конкурентно из обработчиков шагов.
type Registry struct {
	namespace string
	schema    *configtree.Tree

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry создаёт пустой реестр, пути которого проверяются по schema.
func NewRegistry(namespace string, schema *configtree.Tree) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if schema == nil {
		schema = configtree.New()
	}
	return &Registry{
		namespace: namespace,
		schema:    schema,
		entries:   make(map[string]Entry),
	}
}

// Namespace возвращает пространство имён реестра.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Register добавляет или обновляет точку переопределения.
//
// Путь должен разрешаться в дереве реестра. Повторная регистрация имени
// допустима, только если новый путь совпадает со старым или продолжает его.
func (r *Registry) Register(name string, path configtree.Path, def any) error {
	if name == "" {
		return ErrEmptyName
	}
	if !r.schema.Has(path) {
		return fmt.Errorf("override %s: %w: %s", name, configtree.ErrPathNotFound, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok {
		if !path.HasPrefix(existing.Path) {
			return fmt.Errorf("%w: %s registered at %s, got %s", ErrDuplicateName, name, existing.Path, path)
		}
	} else {
		r.order = append(r.order, name)
	}

	r.entries[name] = Entry{Name: name, Path: path, Default: configtree.Normalize(def)}
	return nil
}

// RegisterPath — Register с путём в точечной нотации.
func (r *Registry) RegisterPath(name, path string, def any) error {
	p, err := configtree.ParsePath(path)
	if err != nil {
		return fmt.Errorf("override %s: %w", name, err)
	}
	return r.Register(name, p, def)
}

// Lookup возвращает точку переопределения по имени.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// Len возвращает количество зарегистрированных точек.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Entries возвращает точки переопределения в порядке регистрации.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Apply применяет именованные переопределения к копии tree.
//
// Все имена проверяются до записи: неизвестное имя даёт ErrUnknownOverride,
// и tree остаётся неизменным. Точки, не упомянутые в overrides, сохраняют
// значение дерева. Запись выполняется в порядке регистрации.
func (r *Registry) Apply(tree *configtree.Tree, overrides map[string]any) (*configtree.Tree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unknown := make([]string, 0)
	for name := range overrides {
		if _, ok := r.entries[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %v", ErrUnknownOverride, unknown)
	}

	out := tree.Clone()
	if out == nil {
		out = configtree.New()
	}
	for _, name := range r.order {
		value, ok := overrides[name]
		if !ok {
			continue
		}
		entry := r.entries[name]
		if err := out.Write(entry.Path, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", name, err)
		}
	}
	return out, nil
}

// Layer возвращает реестр, объединяющий точки parent и r.
//
// Точки parent идут первыми. При совпадении имён выигрывает точка r, если её
// путь совпадает с путём parent или продолжает его, иначе ErrIncompatibleOverride.
// Пути parent проверяются по дереву r. Ни parent, ни r не изменяются.
func (r *Registry) Layer(parent *Registry) (*Registry, error) {
	out := NewRegistry(r.namespace, r.schema)
	if parent == nil {
		for _, e := range r.Entries() {
			out.put(e)
		}
		return out, nil
	}

	own := make(map[string]Entry)
	for _, e := range r.Entries() {
		own[e.Name] = e
	}

	for _, pe := range parent.Entries() {
		e := pe
		if child, ok := own[pe.Name]; ok {
			if !child.Path.HasPrefix(pe.Path) {
				return nil, fmt.Errorf("%w: %s: %s does not extend %s", ErrIncompatibleOverride, pe.Name, child.Path, pe.Path)
			}
			e = child
			delete(own, pe.Name)
		}
		if !r.schema.Has(e.Path) {
			return nil, fmt.Errorf("override %s: %w: %s", e.Name, configtree.ErrPathNotFound, e.Path)
		}
		out.put(e)
	}

	for _, e := range r.Entries() {
		if _, pending := own[e.Name]; pending {
			out.put(e)
		}
	}
	return out, nil
}

// Rebind возвращает копию реестра, привязанную к новому дереву.
// Все пути должны разрешаться в schema.
func (r *Registry) Rebind(schema *configtree.Tree) (*Registry, error) {
	out := NewRegistry(r.namespace, schema)
	for _, e := range r.Entries() {
		if err := out.Register(e.Name, e.Path, e.Default); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) put(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.Name]; !ok {
		r.order = append(r.order, e.Name)
	}
	r.entries[e.Name] = e
}
