package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/domain"
)

const runColumns = `id, namespace, launch_function, status, input, output, terminal, error,
	idempotency_key, started_at, finished_at, created_at`

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
//
// Повтор ключа идемпотентности для той же функции даёт ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO runs (id, namespace, launch_function, status, input, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (namespace, launch_function, idempotency_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Namespace,
		run.LaunchFunction,
		run.Status,
		inputJSON,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: idempotency key %s", ErrAlreadyExists, run.IdempotencyKey)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, namespace, launchFunction, key string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE namespace = $1 AND launch_function = $2 AND idempotency_key = $3`
	return scanRun(r.pool.QueryRow(ctx, query, namespace, launchFunction, key))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR namespace = $1)
		  AND ($2::text IS NULL OR launch_function = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Namespace),
		nullString(filter.LaunchFunction),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// Start атомарно переводит PENDING run в RUNNING.
//
// Возвращает ErrInvalidState, если run уже не PENDING: его забрал другой
// координатор или он отменён.
func (r *RunRepo) Start(ctx context.Context, run *domain.Run) error {
	run.MarkRunning()
	result, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $2, started_at = $3
		WHERE id = $1 AND status = 'PENDING'
	`, run.ID, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: run %s is not pending", ErrInvalidState, run.ID)
	}
	return nil
}

// Update сохраняет статус и итог run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	outputJSON, err := marshalNullable(run.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	errorJSON, err := marshalNullable(run.Error)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, output = $5, terminal = $6, error = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		outputJSON,
		nullString(run.Terminal),
		errorJSON,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelPending отменяет run, если он ещё не начал выполняться.
func (r *RunRepo) CancelPending(ctx context.Context, run *domain.Run, reason string) error {
	run.MarkCancelled(reason)
	errorJSON, err := marshalNullable(run.Error)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $2, finished_at = $3, error = $4
		WHERE id = $1 AND status = 'PENDING'
	`, run.ID, run.Status, run.FinishedAt, errorJSON)
	if err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: run %s is not pending", ErrInvalidState, run.ID)
	}
	return nil
}

// ListPending возвращает runs в статусе PENDING.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Namespace      string
	LaunchFunction string
	Status         domain.RunStatus
	Limit          int
	Offset         int
}

func collectRuns(rows pgx.Rows) ([]domain.Run, error) {
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var inputJSON, outputJSON, errorJSON []byte
	var terminal, idempotencyKey *string

	err := row.Scan(
		&run.ID,
		&run.Namespace,
		&run.LaunchFunction,
		&run.Status,
		&inputJSON,
		&outputJSON,
		&terminal,
		&errorJSON,
		&idempotencyKey,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := unmarshalNullable(inputJSON, &run.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if err := unmarshalNullable(outputJSON, &run.Output); err != nil {
		return nil, fmt.Errorf("unmarshal output: %w", err)
	}
	if err := unmarshalNullable(errorJSON, &run.Error); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	if terminal != nil {
		run.Terminal = *terminal
	}
	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}
	return &run, nil
}
