package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cluster — кластер, запущенный launch-функцией.
//
// Записи используются проверкой "Fail If Cluster Running": кластер с тем
// же именем в активном статусе блокирует повторный запуск.
type Cluster struct {
	// Name — имя кластера (значение Name в конфигурации).
	Name string `json:"name"`

	// ClusterID — идентификатор кластера у провайдера.
	ClusterID string `json:"cluster_id"`

	// RunID — run, запустивший кластер.
	RunID *uuid.UUID `json:"run_id,omitempty"`

	// Status — текущий статус кластера.
	Status ClusterStatus `json:"status"`

	// StartedAt — время запроса на запуск.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt — время последнего изменения статуса.
	UpdatedAt time.Time `json:"updated_at"`
}
