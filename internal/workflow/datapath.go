package workflow

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// RootPath — путь ко всем данным выполнения.
const RootPath = "$"

// ParsePath разбирает путь JSONPath. Пустой путь равен "$".
func ParsePath(path string) (jp.Expr, error) {
	if path == "" {
		path = RootPath
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataPath, path, err)
	}
	return x, nil
}

// ValidateReferencePath проверяет путь записи: корень и далее только
// ключи и индексы ($.Result.Phase1, $.Items[0]).
func ValidateReferencePath(path string) error {
	x, err := ParsePath(path)
	if err != nil {
		return err
	}
	rooted := false
	for _, frag := range x {
		switch frag.(type) {
		case jp.Bracket:
		case jp.Root:
			if rooted {
				return fmt.Errorf("%w: %s: root must come first", ErrInvalidDataPath, path)
			}
			rooted = true
		case jp.Child, jp.Nth:
			if !rooted {
				return fmt.Errorf("%w: %s: must start with $", ErrInvalidDataPath, path)
			}
		default:
			return fmt.Errorf("%w: %s: only keys and indices are allowed", ErrInvalidDataPath, path)
		}
	}
	if !rooted {
		return fmt.Errorf("%w: %s: must start with $", ErrInvalidDataPath, path)
	}
	return nil
}

// Select выбирает значение по пути. Путь без совпадений возвращает
// ErrDataPathNotFound; несколько совпадений возвращаются списком.
func Select(data any, path string) (any, error) {
	if path == "" || path == RootPath {
		return data, nil
	}
	x, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	results := x.Get(data)
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrDataPathNotFound, path)
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Merge записывает value по пути в копию data и возвращает её.
// Путь "$" заменяет данные целиком. Недостающие промежуточные
// отображения создаются.
func Merge(data any, path string, value any) (any, error) {
	if path == "" || path == RootPath {
		return value, nil
	}
	if err := ValidateReferencePath(path); err != nil {
		return nil, err
	}
	x, _ := ParsePath(path)

	out := Copy(data)
	if out == nil {
		out = map[string]any{}
	}
	if err := ensureParents(out, x, path); err != nil {
		return nil, err
	}
	if err := x.Set(out, value); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataPath, path, err)
	}
	return out, nil
}

// ensureParents создаёт отображения вдоль пути до последнего фрагмента.
func ensureParents(data any, x jp.Expr, path string) error {
	frags := make([]jp.Frag, 0, len(x))
	for _, frag := range x {
		switch frag.(type) {
		case jp.Child, jp.Nth:
			frags = append(frags, frag)
		}
	}

	cur := data
	for i := 0; i < len(frags)-1; i++ {
		switch frag := frags[i].(type) {
		case jp.Child:
			m, ok := cur.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s: %q is not a mapping", ErrInvalidDataPath, path, string(frag))
			}
			next, exists := m[string(frag)]
			if !exists || next == nil {
				next = map[string]any{}
				m[string(frag)] = next
			}
			cur = next
		case jp.Nth:
			s, ok := cur.([]any)
			idx := int(frag)
			if idx < 0 && ok {
				idx += len(s)
			}
			if !ok || idx < 0 || idx >= len(s) {
				return fmt.Errorf("%w: %s: index %d out of range", ErrDataPathNotFound, path, int(frag))
			}
			cur = s[idx]
		}
	}

	if len(frags) > 0 {
		if _, ok := frags[len(frags)-1].(jp.Child); ok {
			if _, isMap := cur.(map[string]any); !isMap {
				return fmt.Errorf("%w: %s: parent is not a mapping", ErrInvalidDataPath, path)
			}
		}
	}
	return nil
}

// Copy возвращает глубокую копию JSON-подобного значения.
func Copy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Copy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Copy(item)
		}
		return out
	default:
		return v
	}
}

// ContextObject — данные выполнения, доступные через "$$".
type ContextObject struct {
	ExecutionID    string
	ExecutionInput any
	NodeID         string
	TaskToken      string
}

func (c ContextObject) data() map[string]any {
	return map[string]any{
		"Execution": map[string]any{
			"Id":    c.ExecutionID,
			"Input": c.ExecutionInput,
		},
		"State": map[string]any{
			"Name": c.NodeID,
		},
		"Task": map[string]any{
			"Token": c.TaskToken,
		},
	}
}

// RenderParameters строит полезную нагрузку по шаблону параметров.
//
// Ключ с суффиксом ".$" заменяется ключом без суффикса, значение —
// результатом пути: "$.x" выбирает из входа узла, "$$.Task.Token" —
// из данных выполнения. Остальные значения копируются как есть.
func RenderParameters(params map[string]any, input any, cobj ContextObject) (map[string]any, error) {
	return renderMap(params, input, cobj.data())
}

func renderMap(params map[string]any, input any, cdata map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for key, value := range params {
		if name, ok := strings.CutSuffix(key, ".$"); ok {
			path, isString := value.(string)
			if !isString {
				return nil, fmt.Errorf("%w: parameter %s must be a path string", ErrInvalidDataPath, key)
			}
			selected, err := selectParameter(path, input, cdata)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			out[name] = Copy(selected)
			continue
		}
		rendered, err := renderValue(value, input, cdata)
		if err != nil {
			return nil, err
		}
		out[key] = rendered
	}
	return out, nil
}

func renderValue(v any, input any, cdata map[string]any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		return renderMap(val, input, cdata)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, input, cdata)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func selectParameter(path string, input any, cdata map[string]any) (any, error) {
	if rest, ok := strings.CutPrefix(path, "$$"); ok {
		return Select(cdata, "$"+rest)
	}
	return Select(input, path)
}

// validateParameters проверяет пути в шаблоне параметров.
func validateParameters(params map[string]any) error {
	for key, value := range params {
		if strings.HasSuffix(key, ".$") {
			path, isString := value.(string)
			if !isString {
				return fmt.Errorf("%w: parameter %s must be a path string", ErrInvalidDataPath, key)
			}
			expr := path
			if rest, ok := strings.CutPrefix(path, "$$"); ok {
				expr = "$" + rest
			}
			if _, err := ParsePath(expr); err != nil {
				return err
			}
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			if err := validateParameters(nested); err != nil {
				return err
			}
		}
	}
	return nil
}
