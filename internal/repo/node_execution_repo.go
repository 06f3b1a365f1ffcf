package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Launchpad/internal/domain"
)

// NodeExecutionRepo — репозиторий истории выполнения узлов.
type NodeExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewNodeExecutionRepo создаёт новый NodeExecutionRepo.
func NewNodeExecutionRepo(pool *pgxpool.Pool) *NodeExecutionRepo {
	return &NodeExecutionRepo{pool: pool}
}

// Upsert создаёт или обновляет запись узла (ключ — run_id, node_id).
//
// Вход и время начала сохраняются при первой записи; последующие
// обновления не затирают их пустыми значениями.
func (r *NodeExecutionRepo) Upsert(ctx context.Context, ne *domain.NodeExecution) error {
	inputJSON, err := marshalNullable(ne.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	outputJSON, err := marshalNullable(ne.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	errorJSON, err := marshalNullable(ne.Error)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `
		INSERT INTO node_executions (run_id, node_id, kind, status, branch, token, input, output, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, node_id) DO UPDATE
		SET status = EXCLUDED.status,
		    branch = COALESCE(EXCLUDED.branch, node_executions.branch),
		    token = COALESCE(EXCLUDED.token, node_executions.token),
		    input = COALESCE(node_executions.input, EXCLUDED.input),
		    output = COALESCE(EXCLUDED.output, node_executions.output),
		    error = COALESCE(EXCLUDED.error, node_executions.error),
		    started_at = COALESCE(node_executions.started_at, EXCLUDED.started_at),
		    finished_at = COALESCE(EXCLUDED.finished_at, node_executions.finished_at)
	`
	_, err = r.pool.Exec(ctx, query,
		ne.RunID,
		ne.NodeID,
		ne.Kind,
		ne.Status,
		ne.Branch,
		nullString(ne.Token),
		inputJSON,
		outputJSON,
		errorJSON,
		ne.StartedAt,
		ne.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert node execution: %w", err)
	}
	return nil
}

// ListByRun возвращает узлы run в порядке начала выполнения.
func (r *NodeExecutionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.NodeExecution, error) {
	query := `
		SELECT run_id, node_id, kind, status, branch, token, input, output, error, started_at, finished_at
		FROM node_executions
		WHERE run_id = $1
		ORDER BY started_at ASC NULLS LAST, node_id ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list node executions: %w", err)
	}
	defer rows.Close()

	var nodes []domain.NodeExecution
	for rows.Next() {
		var ne domain.NodeExecution
		var token *string
		var inputJSON, outputJSON, errorJSON []byte
		if err := rows.Scan(
			&ne.RunID,
			&ne.NodeID,
			&ne.Kind,
			&ne.Status,
			&ne.Branch,
			&token,
			&inputJSON,
			&outputJSON,
			&errorJSON,
			&ne.StartedAt,
			&ne.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan node execution: %w", err)
		}
		if token != nil {
			ne.Token = *token
		}
		if err := unmarshalNullable(inputJSON, &ne.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
		if err := unmarshalNullable(outputJSON, &ne.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
		if err := unmarshalNullable(errorJSON, &ne.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
		nodes = append(nodes, ne)
	}
	return nodes, rows.Err()
}

// FindByToken возвращает узел, ожидающий завершения по токену.
func (r *NodeExecutionRepo) FindByToken(ctx context.Context, token string) (*domain.NodeExecution, error) {
	var ne domain.NodeExecution
	err := r.pool.QueryRow(ctx, `
		SELECT run_id, node_id, kind, status
		FROM node_executions
		WHERE token = $1
	`, token).Scan(&ne.RunID, &ne.NodeID, &ne.Kind, &ne.Status)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find node by token: %w", err)
	}
	ne.Token = token
	return &ne, nil
}
