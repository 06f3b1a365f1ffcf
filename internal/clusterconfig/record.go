package clusterconfig

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Launchpad/internal/configtree"
	"github.com/shaiso/Launchpad/internal/override"
)

// Record — хранимый документ конфигурации.
type Record struct {
	ConfigurationName      string              `json:"ConfigurationName"`
	Description            string              `json:"Description,omitempty"`
	Namespace              string              `json:"Namespace"`
	ClusterConfiguration   *configtree.Tree    `json:"ClusterConfiguration"`
	OverrideInterfaces     override.Interfaces `json:"OverrideInterfaces"`
	ConfigurationArtifacts []Artifact          `json:"ConfigurationArtifacts"`
	SecretConfigurations   map[string]string   `json:"SecretConfigurations"`
}

// StoreKey возвращает ключ хранимой конфигурации.
func StoreKey(namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s", StorePrefix, namespace, name)
}

// Key возвращает ключ записи в хранилище.
func (r *Record) Key() string {
	return StoreKey(r.Namespace, r.ConfigurationName)
}

// Record возвращает документ для сохранения.
func (b *Builder) Record() *Record {
	artifacts := b.Artifacts()
	if artifacts == nil {
		artifacts = []Artifact{}
	}
	return &Record{
		ConfigurationName:      b.name,
		Description:            b.description,
		Namespace:              b.namespace,
		ClusterConfiguration:   b.tree.Clone(),
		OverrideInterfaces:     b.overrides.Interfaces(),
		ConfigurationArtifacts: artifacts,
		SecretConfigurations:   copyStrings(b.secrets),
	}
}

// ToJSON сериализует документ конфигурации.
func (b *Builder) ToJSON() ([]byte, error) {
	return json.Marshal(b.Record())
}

// ParseRecord разбирает документ конфигурации.
func ParseRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse configuration record: %w", err)
	}
	if rec.ConfigurationName == "" {
		return nil, ErrEmptyName
	}
	if rec.ClusterConfiguration == nil {
		rec.ClusterConfiguration = configtree.New()
	}
	return &rec, nil
}

// FromRecord восстанавливает конфигурацию из хранимого документа.
//
// Восстановленный Builder доступен только для чтения: Specialize,
// UpdateConfigurations и AddSpark* возвращают ErrReadOnly. Resolve работает.
func FromRecord(rec *Record) (*Builder, error) {
	if rec == nil {
		return nil, ErrConfigurationNotFound
	}
	tree := rec.ClusterConfiguration
	if tree == nil {
		tree = configtree.New()
	}

	reg, err := override.FromInterfaces(override.DefaultNamespace, tree, rec.OverrideInterfaces)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ConfigurationName, err)
	}

	namespace := rec.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Builder{
		name:        rec.ConfigurationName,
		namespace:   namespace,
		description: rec.Description,
		tree:        tree.Clone(),
		overrides:   reg,
		artifacts:   append([]Artifact(nil), rec.ConfigurationArtifacts...),
		secrets:     copyStrings(rec.SecretConfigurations),
		readOnly:    true,
	}, nil
}
