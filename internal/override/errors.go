package override

import "errors"

// Ошибки реестра переопределений.
var (
	// ErrUnknownOverride — имя переопределения не зарегистрировано.
	ErrUnknownOverride = errors.New("unknown override")

	// ErrDuplicateName — имя уже зарегистрировано с несовместимым путём.
	ErrDuplicateName = errors.New("duplicate override name")

	// ErrIncompatibleOverride — при наслоении имя родителя перекрыто несовместимым путём.
	ErrIncompatibleOverride = errors.New("incompatible override")

	// ErrEmptyName — пустое имя переопределения.
	ErrEmptyName = errors.New("override name is empty")
)
