package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/domain"
)

// ClusterRepo — репозиторий запущенных кластеров.
type ClusterRepo struct {
	pool *pgxpool.Pool
}

// NewClusterRepo создаёт новый ClusterRepo.
func NewClusterRepo(pool *pgxpool.Pool) *ClusterRepo {
	return &ClusterRepo{pool: pool}
}

// Put создаёт или обновляет запись кластера по имени.
func (r *ClusterRepo) Put(ctx context.Context, c *domain.Cluster) error {
	query := `
		INSERT INTO clusters (name, cluster_id, run_id, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (name) DO UPDATE
		SET cluster_id = EXCLUDED.cluster_id,
		    run_id = EXCLUDED.run_id,
		    status = EXCLUDED.status,
		    started_at = EXCLUDED.started_at,
		    updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		c.Name,
		c.ClusterID,
		c.RunID,
		c.Status,
		c.StartedAt,
	).Scan(&c.UpdatedAt); err != nil {
		return fmt.Errorf("put cluster: %w", err)
	}
	return nil
}

// Get возвращает кластер по имени.
func (r *ClusterRepo) Get(ctx context.Context, name string) (*domain.Cluster, error) {
	var c domain.Cluster
	err := r.pool.QueryRow(ctx, `
		SELECT name, cluster_id, run_id, status, started_at, updated_at
		FROM clusters
		WHERE name = $1
	`, name).Scan(&c.Name, &c.ClusterID, &c.RunID, &c.Status, &c.StartedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return &c, nil
}

// IsRunning проверяет, есть ли активный кластер с таким именем.
func (r *ClusterRepo) IsRunning(ctx context.Context, name string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clusters WHERE name = $1 AND status IN ('STARTING', 'RUNNING')
		)
	`, name).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check cluster: %w", err)
	}
	return active, nil
}

// Terminate помечает кластер остановленным.
func (r *ClusterRepo) Terminate(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE clusters SET status = 'TERMINATED', updated_at = NOW()
		WHERE name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("terminate cluster: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
