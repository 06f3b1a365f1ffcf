package configtree

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tree — упорядоченное отображение ключей на значения конфигурации.
//
// Нулевое значение готово к использованию. Tree не потокобезопасен:
// владелец (ConfigurationBuilder или узел workflow) передаёт копию, а не ссылку.
type Tree struct {
	m *orderedmap.OrderedMap[string, any]
}

// New создаёт пустое дерево.
func New() *Tree {
	return &Tree{m: orderedmap.New[string, any]()}
}

// FromMap строит дерево из обычного map (ключи сортируются для детерминизма).
func FromMap(m map[string]any) *Tree {
	t, _ := Normalize(m).(*Tree)
	if t == nil {
		return New()
	}
	return t
}

func (t *Tree) om() *orderedmap.OrderedMap[string, any] {
	if t.m == nil {
		t.m = orderedmap.New[string, any]()
	}
	return t.m
}

// Set записывает значение верхнего уровня и возвращает дерево (для цепочек).
func (t *Tree) Set(key string, value any) *Tree {
	t.om().Set(key, Normalize(value))
	return t
}

// Get возвращает значение верхнего уровня.
func (t *Tree) Get(key string) (any, bool) {
	return t.om().Get(key)
}

// Delete удаляет ключ верхнего уровня.
func (t *Tree) Delete(key string) {
	t.om().Delete(key)
}

// Len возвращает количество ключей верхнего уровня.
func (t *Tree) Len() int {
	return t.om().Len()
}

// Keys возвращает ключи верхнего уровня в порядке вставки.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, t.Len())
	for pair := t.om().Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each обходит пары верхнего уровня в порядке вставки.
// Обход прекращается, если fn возвращает false.
func (t *Tree) Each(fn func(key string, value any) bool) {
	for pair := t.om().Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Read возвращает значение по пути.
//
// Пустой путь возвращает само дерево. Отсутствующий сегмент или несовпадение
// типа (индекс по отображению, ключ по скаляру) — ErrPathNotFound.
func (t *Tree) Read(path Path) (any, error) {
	var cur any = t
	for i, seg := range path {
		next, ok := descend(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path[:i+1])
		}
		cur = next
	}
	return cur, nil
}

// Has проверяет, что путь разрешается.
func (t *Tree) Has(path Path) bool {
	_, err := t.Read(path)
	return err == nil
}

func descend(cur any, seg Segment) (any, bool) {
	if seg.IsIndex {
		seq, ok := cur.([]any)
		if !ok || seg.Index < 0 || seg.Index >= len(seq) {
			return nil, false
		}
		return seq[seg.Index], true
	}
	tree, ok := cur.(*Tree)
	if !ok {
		return nil, false
	}
	return tree.Get(seg.Key)
}

// Write записывает значение по пути, создавая промежуточные контейнеры.
//
// Запись атомарна: изменения выполняются на копии и подменяют содержимое
// дерева только при успехе. Индекс за концом последовательности дополняет
// её значениями nil.
func (t *Tree) Write(path Path, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if path[0].IsIndex {
		return fmt.Errorf("%w: %s: root is a mapping", ErrTypeMismatch, path[:1])
	}

	work := t.Clone()
	if _, err := put(work, path, 0, cloneValue(Normalize(value))); err != nil {
		return err
	}
	t.m = work.m
	return nil
}

func put(cur any, path Path, depth int, value any) (any, error) {
	if depth == len(path) {
		return value, nil
	}
	seg := path[depth]

	if seg.IsIndex {
		var seq []any
		switch c := cur.(type) {
		case nil:
		case []any:
			seq = c
		default:
			return nil, fmt.Errorf("%w: %s: expected sequence, got %s", ErrTypeMismatch, path[:depth+1], kindOf(cur))
		}
		if seg.Index < 0 {
			return nil, fmt.Errorf("%w: negative index %d", ErrInvalidPath, seg.Index)
		}
		for len(seq) <= seg.Index {
			seq = append(seq, nil)
		}
		child, err := put(seq[seg.Index], path, depth+1, value)
		if err != nil {
			return nil, err
		}
		seq[seg.Index] = child
		return seq, nil
	}

	var tree *Tree
	switch c := cur.(type) {
	case nil:
		tree = New()
	case *Tree:
		tree = c
	default:
		return nil, fmt.Errorf("%w: %s: expected mapping, got %s", ErrTypeMismatch, path[:depth+1], kindOf(cur))
	}
	existing, _ := tree.Get(seg.Key)
	child, err := put(existing, path, depth+1, value)
	if err != nil {
		return nil, err
	}
	tree.om().Set(seg.Key, child)
	return tree, nil
}

// Merge глубоко сливает other в t.
//
// Отображения сливаются по ключам рекурсивно; последовательности и скаляры
// заменяются целиком значением из other.
func (t *Tree) Merge(other *Tree) {
	if other == nil {
		return
	}
	other.Each(func(key string, value any) bool {
		if src, ok := value.(*Tree); ok {
			existing, _ := t.om().Get(key)
			if dst, ok := existing.(*Tree); ok {
				dst.Merge(src)
				return true
			}
		}
		t.om().Set(key, cloneValue(value))
		return true
	})
}

// Merged возвращает результат слияния копий a и b, не изменяя их.
func Merged(a, b *Tree) *Tree {
	out := a.Clone()
	out.Merge(b)
	return out
}

// Clone возвращает глубокую копию дерева.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := New()
	t.Each(func(key string, value any) bool {
		out.m.Set(key, cloneValue(value))
		return true
	})
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// ToPlain преобразует дерево в map[string]any (порядок ключей теряется).
func (t *Tree) ToPlain() map[string]any {
	out := make(map[string]any, t.Len())
	t.Each(func(key string, value any) bool {
		out[key] = plain(value)
		return true
	})
	return out
}

// Plain преобразует произвольное значение дерева в обычные map/slice.
func Plain(v any) any {
	return plain(v)
}

func plain(v any) any {
	switch val := v.(type) {
	case *Tree:
		return val.ToPlain()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	default:
		return val
	}
}

// Normalize приводит значение к представлению дерева:
// map → *Tree (ключи сортируются), срезы → []any, целые → int64, float32 → float64.
// Беззнаковые значения больше math.MaxInt64 становятся float64.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val
	case *Tree:
		return val
	case Tree:
		return &val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case uint:
		return unsignedValue(uint64(val))
	case uint64:
		return unsignedValue(val)
	case uintptr:
		return unsignedValue(uint64(val))
	case uint32:
		return int64(val)
	case uint16:
		return int64(val)
	case uint8:
		return int64(val)
	case float32:
		return float64(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := New()
		for _, k := range keys {
			out.m.Set(k, Normalize(val[k]))
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := New()
		for _, k := range keys {
			out.m.Set(k, val[k])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	}

	// Прочие срезы ([]string, []*Tree, []map[string]any ...) — через reflect.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func unsignedValue(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}

// Equal сравнивает значения структурно.
//
// Порядок ключей отображений не учитывается; числа сравниваются по значению
// (int64(2) равно float64(2)).
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)

	switch av := a.(type) {
	case *Tree:
		bv, ok := b.(*Tree)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Each(func(key string, value any) bool {
			other, ok := bv.Get(key)
			if !ok || !Equal(value, other) {
				equal = false
			}
			return equal
		})
		return equal
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case int64:
		switch bv := b.(type) {
		case int64:
			return av == bv
		case float64:
			return float64(av) == bv
		}
		return false
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv || (math.IsNaN(av) && math.IsNaN(bv))
		case int64:
			return av == float64(bv)
		}
		return false
	default:
		return a == b
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case *Tree:
		return "mapping"
	case []any:
		return "sequence"
	case nil:
		return "null"
	default:
		return "scalar"
	}
}
