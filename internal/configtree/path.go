package configtree

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment — один шаг пути: ключ отображения или индекс последовательности.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key создаёт сегмент-ключ.
func Key(k string) Segment {
	return Segment{Key: k}
}

// Index создаёт сегмент-индекс.
func Index(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

// String возвращает сегмент в точечной нотации (точки в ключах экранируются).
func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return escapeKey(s.Key)
}

// Path — путь в дереве конфигурации.
type Path []Segment

// P собирает путь из строк (ключи) и int (индексы).
// Паникует на значениях других типов, предназначен для литералов в коде.
func P(parts ...any) Path {
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			path = append(path, Key(v))
		case int:
			path = append(path, Index(v))
		case Segment:
			path = append(path, v)
		default:
			panic(fmt.Sprintf("configtree: unsupported path part %T", part))
		}
	}
	return path
}

// ParsePath разбирает путь в точечной нотации: "Instances.InstanceGroups.0.InstanceType".
//
// Сегменты из одних цифр считаются индексами. Точка внутри ключа экранируется
// обратным слэшем: "Properties.spark\.jars".
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var (
		path    Path
		current strings.Builder
		escaped bool
		raw     = true
	)

	flush := func() error {
		part := current.String()
		if part == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, s)
		}
		if raw && isDigits(part) {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return fmt.Errorf("%w: %q: %v", ErrInvalidPath, part, err)
			}
			path = append(path, Index(idx))
		} else {
			path = append(path, Key(part))
		}
		current.Reset()
		raw = true
		return nil
	}

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
			raw = false
		case r == '\\':
			escaped = true
		case r == '.':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			current.WriteRune(r)
		}
	}
	if escaped {
		return nil, fmt.Errorf("%w: dangling escape in %q", ErrInvalidPath, s)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return path, nil
}

// MustParsePath — ParsePath, паникующий при ошибке.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String возвращает путь в точечной нотации.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}

// Equal сравнивает два пути посегментно.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix проверяет, что prefix — начало пути (или совпадает с ним).
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Append возвращает новый путь с добавленными сегментами.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func escapeKey(k string) string {
	if !strings.ContainsAny(k, `.\`) && !isDigits(k) {
		return k
	}
	var b strings.Builder
	for i, r := range k {
		// Ключ из цифр экранируем, чтобы он не превратился в индекс.
		if r == '.' || r == '\\' || (i == 0 && isDigits(k)) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
