package domain

import (
	"encoding/json"
	"time"
)

// Configuration — хранимая конфигурация кластера.
//
// Document — сериализованный clusterconfig.Record: дерево конфигурации,
// точки переопределения и артефакты. Домен не разбирает документ,
// это делает clusterconfig.ParseRecord.
type Configuration struct {
	// Namespace — пространство имён конфигурации ("default").
	Namespace string `json:"namespace"`

	// Name — имя конфигурации, уникальное в пространстве имён.
	Name string `json:"name"`

	// Description — описание назначения конфигурации.
	Description string `json:"description,omitempty"`

	// Document — документ конфигурации.
	Document json.RawMessage `json:"document"`

	// CreatedAt — время первого сохранения.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}
