package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

const defaultListLimit = 50

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082301)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	config JSONB NOT NULL,
	results JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluation_runs_status ON evaluation_runs(status);
CREATE INDEX IF NOT EXISTS idx_evaluation_runs_created_at ON evaluation_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.EvaluationRun) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO evaluation_runs (id, name, status, config, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, run.ID, run.Name, string(run.Status), configJSON, run.ErrorMessage, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.EvaluationRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, status, config, results, error_message, created_at, updated_at
FROM evaluation_runs
WHERE id = $1
`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get run by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return &run, nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.EvaluationRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, status, config, results, error_message, created_at, updated_at
FROM evaluation_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.EvaluationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (r *RunRepository) MarkRunning(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE evaluation_runs
SET status = $2, updated_at = $3
WHERE id = $1
`, id, string(domain.RunRunning), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	return requireRowAffected(result, id)
}

func (r *RunRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE evaluation_runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.RunFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return requireRowAffected(result, id)
}

func (r *RunRepository) SaveResults(ctx context.Context, id string, results domain.RunResults) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE evaluation_runs
SET status = $2, results = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.RunCompleted), resultsJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save run results: %w", err)
	}
	return requireRowAffected(result, id)
}

func requireRowAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrRunNotFound, "update run", fmt.Errorf("id=%s", id))
	}
	return nil
}

type runScanner interface {
	Scan(dest ...any) error
}

func scanRun(row runScanner) (domain.EvaluationRun, error) {
	var run domain.EvaluationRun
	var status string
	var configRaw []byte
	var resultsRaw []byte

	err := row.Scan(
		&run.ID,
		&run.Name,
		&status,
		&configRaw,
		&resultsRaw,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return domain.EvaluationRun{}, err
	}

	if err := json.Unmarshal(configRaw, &run.Config); err != nil {
		return domain.EvaluationRun{}, fmt.Errorf("unmarshal run config: %w", err)
	}
	if len(resultsRaw) > 0 {
		var results domain.RunResults
		if err := json.Unmarshal(resultsRaw, &results); err != nil {
			return domain.EvaluationRun{}, fmt.Errorf("unmarshal run results: %w", err)
		}
		run.Results = &results
	}
	run.Status = domain.RunStatus(status)
	return run, nil
}
