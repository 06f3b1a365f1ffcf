package domain

import (
	"time"
)

// Schedule — расписание автоматического запуска launch-функции.
//
// Расписания описываются в YAML-файле (SCHEDULES_FILE):
//
//	schedules:
//	  - name: nightly-etl
//	    launch_function: launch-etl-cluster
//	    cron: "0 2 * * *"
//	    timezone: Europe/Moscow
//	    input:
//	      ClusterConfigurationOverrides:
//	        CoreInstanceCount: 8
//
// Scheduler проверяет NextDueAt и создаёт run, когда время подошло.
type Schedule struct {
	// Name — уникальное имя расписания. Входит в ключ идемпотентности.
	Name string `json:"name" yaml:"name"`

	// Namespace — пространство имён launch-функции (по умолчанию "default").
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// LaunchFunction — имя запускаемой launch-функции.
	LaunchFunction string `json:"launch_function" yaml:"launch_function"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron,omitempty" yaml:"cron,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	// Используется если CronExpr не задан.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени. По умолчанию UTC.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// Disabled — расписание игнорируется.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	// Input — входные данные каждого созданного run.
	Input map[string]any `json:"input,omitempty" yaml:"input,omitempty"`

	// NextDueAt — время следующего запуска (вычисляется scheduler'ом).
	NextDueAt *time.Time `json:"next_due_at,omitempty" yaml:"-"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`
}

// Enabled возвращает true, если расписание активно.
func (s *Schedule) Enabled() bool {
	return !s.Disabled
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled() || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(at, nextDue time.Time) {
	s.LastRunAt = &at
	s.NextDueAt = &nextDue
}
