package scheduler

import "errors"

var (
	// ErrInvalidSchedule — расписание описано некорректно.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrDuplicateSchedule — имя расписания повторяется в файле.
	ErrDuplicateSchedule = errors.New("duplicate schedule name")
)
