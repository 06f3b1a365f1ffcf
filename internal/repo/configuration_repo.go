package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/domain"
)

// ConfigurationRepo — репозиторий хранимых конфигураций кластеров.
type ConfigurationRepo struct {
	pool *pgxpool.Pool
}

// NewConfigurationRepo создаёт новый ConfigurationRepo.
func NewConfigurationRepo(pool *pgxpool.Pool) *ConfigurationRepo {
	return &ConfigurationRepo{pool: pool}
}

// Put создаёт или заменяет конфигурацию.
func (r *ConfigurationRepo) Put(ctx context.Context, cfg *domain.Configuration) error {
	query := `
		INSERT INTO configurations (namespace, name, description, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (namespace, name) DO UPDATE
		SET description = EXCLUDED.description,
		    document = EXCLUDED.document,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		cfg.Namespace,
		cfg.Name,
		cfg.Description,
		[]byte(cfg.Document),
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put configuration: %w", err)
	}
	return nil
}

// Get возвращает конфигурацию по пространству имён и имени.
func (r *ConfigurationRepo) Get(ctx context.Context, namespace, name string) (*domain.Configuration, error) {
	query := `
		SELECT namespace, name, description, document, created_at, updated_at
		FROM configurations
		WHERE namespace = $1 AND name = $2
	`
	var cfg domain.Configuration
	var document []byte
	err := r.pool.QueryRow(ctx, query, namespace, name).Scan(
		&cfg.Namespace,
		&cfg.Name,
		&cfg.Description,
		&document,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	cfg.Document = document
	return &cfg, nil
}

// List возвращает конфигурации пространства имён без документов.
// Пустой namespace — все пространства имён.
func (r *ConfigurationRepo) List(ctx context.Context, namespace string) ([]domain.Configuration, error) {
	query := `
		SELECT namespace, name, description, created_at, updated_at
		FROM configurations
		WHERE ($1::text IS NULL OR namespace = $1)
		ORDER BY namespace, name
	`
	rows, err := r.pool.Query(ctx, query, nullString(namespace))
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	var configs []domain.Configuration
	for rows.Next() {
		var cfg domain.Configuration
		if err := rows.Scan(&cfg.Namespace, &cfg.Name, &cfg.Description, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan configuration: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Delete удаляет конфигурацию.
func (r *ConfigurationRepo) Delete(ctx context.Context, namespace, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM configurations WHERE namespace = $1 AND name = $2`, namespace, name)
	if err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
