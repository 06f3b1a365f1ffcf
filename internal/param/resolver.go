// Package param разрешает именованные параметры во внешние идентификаторы.
//
// Параметры связывают конфигурацию с адресами сервисов и общими ресурсами
// ("/launchpad/control_plane/endpoints/run_job_flow"). Resolver передаётся
// сборщику конфигурации явно, отсутствующий параметр — фатальная ошибка сборки.
package param

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Resolver разрешает имя параметра в строковое значение.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Func адаптирует функцию к Resolver.
type Func func(ctx context.Context, name string) (string, error)

// Resolve вызывает f.
func (f Func) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// Static — фиксированный набор параметров (тесты, локальный запуск).
type Static map[string]string

// Resolve возвращает значение из набора.
func (s Static) Resolve(_ context.Context, name string) (string, error) {
	if v, ok := s[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
}

// Env читает параметры из переменных окружения.
//
// Имя параметра преобразуется в имя переменной: буквы и цифры в верхнем
// регистре, остальные символы заменяются на "_", к результату добавляется Prefix.
// "/launchpad/control_plane/endpoints/run_job_flow" → "LAUNCHPAD_CONTROL_PLANE_ENDPOINTS_RUN_JOB_FLOW".
type Env struct {
	Prefix string
	lookup func(string) (string, bool)
}

// NewEnv создаёт Env с префиксом из PARAM_PREFIX_ENV.
func NewEnv() *Env {
	return &Env{Prefix: os.Getenv("PARAM_PREFIX_ENV")}
}

// Resolve ищет переменную окружения для параметра.
func (e *Env) Resolve(_ context.Context, name string) (string, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	key := e.Prefix + EnvName(name)
	if v, ok := lookup(key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s (env %s)", ErrParameterNotFound, name, key)
}

// EnvName возвращает имя переменной окружения для параметра.
func EnvName(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Chain опрашивает источники по порядку, первый найденный параметр выигрывает.
//
// Ошибки кроме ErrParameterNotFound прерывают поиск.
type Chain []Resolver

// Resolve опрашивает источники цепочки.
func (c Chain) Resolve(ctx context.Context, name string) (string, error) {
	for _, r := range c {
		v, err := r.Resolve(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrParameterNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
}
