package clusterconfig

import "errors"

// Ошибки сборки конфигураций.
var (
	// ErrReadOnly — конфигурация восстановлена из хранилища и не может изменяться.
	ErrReadOnly = errors.New("cluster configuration is read-only")

	// ErrConfigurationNotFound — конфигурация не найдена в хранилище.
	ErrConfigurationNotFound = errors.New("cluster configuration not found")

	// ErrEmptyName — не задано имя конфигурации.
	ErrEmptyName = errors.New("configuration name is empty")

	// ErrIncompatibleProfile — специализация требует отсутствующей части дерева.
	ErrIncompatibleProfile = errors.New("specialization is incompatible with base configuration")

	// ErrUnknownProfile — неизвестный профиль в декларативном описании.
	ErrUnknownProfile = errors.New("unknown configuration profile")
)

// Ошибки рендеринга параметров.
var (
	// ErrTemplateParse — ошибка разбора выражения {{ ... }}.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrTemplateRender — ошибка рендеринга выражения {{ ... }}.
	ErrTemplateRender = errors.New("template render failed")
)
