package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Launchpad/internal/domain"
)

// File — YAML-файл расписаний (SCHEDULES_FILE).
type File struct {
	Schedules []domain.Schedule `yaml:"schedules"`
}

// LoadFile читает и проверяет файл расписаний.
func LoadFile(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает и проверяет расписания.
func Parse(data []byte) ([]domain.Schedule, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}

	seen := make(map[string]bool, len(f.Schedules))
	for i := range f.Schedules {
		s := &f.Schedules[i]
		if s.Namespace == "" {
			s.Namespace = "default"
		}
		if err := Validate(s); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, s.Name)
		}
		seen[s.Name] = true
	}
	return f.Schedules, nil
}

// Validate проверяет одно расписание.
func Validate(s *domain.Schedule) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if s.LaunchFunction == "" {
		return fmt.Errorf("%w: %s: launch_function is required", ErrInvalidSchedule, s.Name)
	}
	switch {
	case s.IsCron():
		if err := ValidateCronExpr(s.CronExpr); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, s.Name, err)
		}
	case s.IsInterval():
	default:
		return fmt.Errorf("%w: %s: either cron or interval_sec is required", ErrInvalidSchedule, s.Name)
	}
	if _, err := location(s.Timezone); err != nil {
		return err
	}
	return nil
}
