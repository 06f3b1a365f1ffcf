package configtree

import "errors"

// Ошибки дерева конфигурации.
var (
	// ErrPathNotFound — сегмент пути отсутствует или не совпадает по типу при чтении.
	ErrPathNotFound = errors.New("path not found")

	// ErrTypeMismatch — при записи промежуточный узел имеет несовместимый тип.
	ErrTypeMismatch = errors.New("path type mismatch")

	// ErrInvalidPath — путь не удалось разобрать или он пустой.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotMapping — корень документа не является отображением.
	ErrNotMapping = errors.New("document root is not a mapping")
)
