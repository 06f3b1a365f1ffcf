package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/domain"
)

// LaunchFunctionRepo — репозиторий launch-функций.
type LaunchFunctionRepo struct {
	pool *pgxpool.Pool
}

// NewLaunchFunctionRepo создаёт новый LaunchFunctionRepo.
func NewLaunchFunctionRepo(pool *pgxpool.Pool) *LaunchFunctionRepo {
	return &LaunchFunctionRepo{pool: pool}
}

// Put создаёт или заменяет launch-функцию.
func (r *LaunchFunctionRepo) Put(ctx context.Context, fn *domain.LaunchFunction) error {
	specJSON, err := json.Marshal(fn.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		INSERT INTO launch_functions (namespace, name, description, spec, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (namespace, name) DO UPDATE
		SET description = EXCLUDED.description,
		    spec = EXCLUDED.spec,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		fn.Namespace,
		fn.Name,
		fn.Description,
		specJSON,
	).Scan(&fn.CreatedAt, &fn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put launch function: %w", err)
	}
	return nil
}

// Get возвращает launch-функцию.
func (r *LaunchFunctionRepo) Get(ctx context.Context, namespace, name string) (*domain.LaunchFunction, error) {
	query := `
		SELECT namespace, name, description, spec, created_at, updated_at
		FROM launch_functions
		WHERE namespace = $1 AND name = $2
	`
	fn, err := scanLaunchFunction(r.pool.QueryRow(ctx, query, namespace, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return fn, err
}

// List возвращает launch-функции пространства имён.
// Пустой namespace — все пространства имён.
func (r *LaunchFunctionRepo) List(ctx context.Context, namespace string) ([]domain.LaunchFunction, error) {
	query := `
		SELECT namespace, name, description, spec, created_at, updated_at
		FROM launch_functions
		WHERE ($1::text IS NULL OR namespace = $1)
		ORDER BY namespace, name
	`
	rows, err := r.pool.Query(ctx, query, nullString(namespace))
	if err != nil {
		return nil, fmt.Errorf("list launch functions: %w", err)
	}
	defer rows.Close()

	var fns []domain.LaunchFunction
	for rows.Next() {
		fn, err := scanLaunchFunction(rows)
		if err != nil {
			return nil, err
		}
		fns = append(fns, *fn)
	}
	return fns, rows.Err()
}

// Delete удаляет launch-функцию.
func (r *LaunchFunctionRepo) Delete(ctx context.Context, namespace, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM launch_functions WHERE namespace = $1 AND name = $2`, namespace, name)
	if err != nil {
		return fmt.Errorf("delete launch function: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanLaunchFunction сканирует строку в LaunchFunction.
// pgx.ErrNoRows возвращается без обёртки.
func scanLaunchFunction(row pgx.Row) (*domain.LaunchFunction, error) {
	var fn domain.LaunchFunction
	var specJSON []byte
	err := row.Scan(
		&fn.Namespace,
		&fn.Name,
		&fn.Description,
		&specJSON,
		&fn.CreatedAt,
		&fn.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan launch function: %w", err)
	}
	if err := json.Unmarshal(specJSON, &fn.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	return &fn, nil
}
