package clusterconfig

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/Launchpad/internal/configtree"
	"github.com/shaiso/Launchpad/internal/param"
)

// binder рендерит выражения {{ param "name" }} в строковых значениях дерева.
type binder struct {
	ctx      context.Context
	resolver param.Resolver
	cache    map[string]string
}

func newBinder(ctx context.Context, resolver param.Resolver) *binder {
	if resolver == nil {
		resolver = param.Static{}
	}
	return &binder{ctx: ctx, resolver: resolver, cache: make(map[string]string)}
}

// Render рендерит одну строку. Строки без "{{" возвращаются как есть.
func (b *binder) Render(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	// Первая ошибка резолвера возвращается как есть, чтобы сохранить
	// param.ErrParameterNotFound для errors.Is.
	var resolveErr error
	funcs := template.FuncMap{
		"param": func(name string) (string, error) {
			if v, ok := b.cache[name]; ok {
				return v, nil
			}
			v, err := b.resolver.Resolve(b.ctx, name)
			if err != nil {
				if resolveErr == nil {
					resolveErr = err
				}
				return "", err
			}
			b.cache[name] = v
			return v, nil
		},
		"default": func(def, val string) string {
			if val == "" {
				return def
			}
			return val
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"trim":  strings.TrimSpace,
	}

	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, nil); err != nil {
		if resolveErr != nil {
			return "", resolveErr
		}
		return "", fmt.Errorf("%w: %w", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// Tree возвращает копию дерева с отрендеренными строками.
func (b *binder) Tree(t *configtree.Tree) (*configtree.Tree, error) {
	v, err := b.value(t, nil)
	if err != nil {
		return nil, err
	}
	return v.(*configtree.Tree), nil
}

func (b *binder) value(v any, at configtree.Path) (any, error) {
	switch val := v.(type) {
	case string:
		out, err := b.Render(val)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", at, err)
		}
		return out, nil
	case *configtree.Tree:
		out := configtree.New()
		var err error
		val.Each(func(key string, item any) bool {
			var rendered any
			rendered, err = b.value(item, at.Append(configtree.Key(key)))
			if err != nil {
				return false
			}
			out.Set(key, rendered)
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := b.value(item, at.Append(configtree.Index(i)))
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return val, nil
	}
}

// Bind возвращает копию дерева, в которой выражения {{ param "name" }}
// заменены значениями из resolver.
func Bind(ctx context.Context, t *configtree.Tree, resolver param.Resolver) (*configtree.Tree, error) {
	return newBinder(ctx, resolver).Tree(t)
}
