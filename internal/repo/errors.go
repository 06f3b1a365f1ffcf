package repo

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт ключа идемпотентности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — переход статуса невозможен (run уже не PENDING).
	ErrInvalidState = errors.New("invalid state")

	// ErrLockNotHeld — advisory lock не удерживается этим процессом.
	ErrLockNotHeld = errors.New("advisory lock not held")
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
