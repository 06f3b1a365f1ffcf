// Package repo хранит конфигурации кластеров, launch-функции, runs,
// историю узлов и запущенные кластеры в PostgreSQL (pgx).
//
// Схема — migrations/001_init.sql. Отсутствие записи — ErrNotFound,
// конфликт ключа идемпотентности — ErrAlreadyExists, условное
// обновление в неподходящем статусе — ErrInvalidState.
package repo
