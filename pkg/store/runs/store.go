package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitsby/yarg/pkg/models/domain"
	"github.com/gitsby/yarg/pkg/models/store"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const RunsTableSchema = `
	CREATE TABLE IF NOT EXISTS extraction_runs (
		id VARCHAR NOT NULL PRIMARY KEY,
		report VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		params BLOB,
		bands INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NULL,
		error VARCHAR NULL
	);
`

var ErrRunNotFound = errors.New("run not found")

// Store keeps the history of report extractions.
type Store interface {
	CreateRun(ctx context.Context, run domain.Run) error
	FinishRun(ctx context.Context, id string, bands int, runErr error) error
	ListRuns(ctx context.Context, report string, limit int) ([]domain.Run, error)
}

type defaultStore struct {
	db *sqlx.DB
}

func NewStore(ctx context.Context, db *sqlx.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if _, err := db.ExecContext(ctx, RunsTableSchema); err != nil {
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) CreateRun(ctx context.Context, run domain.Run) error {
	params, err := msgpack.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to encode run parameters: %w", err)
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO extraction_runs (id, report, status, params, bands, started_at)
		VALUES (:id, :report, :status, :params, :bands, :started_at)`,
		store.Run{
			ID:        run.ID,
			Report:    run.Report,
			Status:    string(run.Status),
			Params:    params,
			StartedAt: run.StartedAt.UTC(),
		})
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished, or failed when runErr is set. A cancelled
// context counts as cancellation rather than failure.
func (s *defaultStore) FinishRun(ctx context.Context, id string, bands int, runErr error) error {
	status := domain.RunStatusFinished
	var message *string
	if runErr != nil {
		status = domain.RunStatusFailed
		if errors.Is(runErr, context.Canceled) {
			status = domain.RunStatusCancelled
		}
		m := runErr.Error()
		message = &m
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE extraction_runs
		SET status = ?, bands = ?, finished_at = ?, error = ?
		WHERE id = ?`),
		string(status), bands, time.Now().UTC(), message, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// ListRuns returns the latest runs first. An empty report lists every report.
func (s *defaultStore) ListRuns(ctx context.Context, report string, limit int) ([]domain.Run, error) {
	logger := zerolog.Ctx(ctx)

	query := `SELECT id, report, status, params, bands, started_at, finished_at, error FROM extraction_runs`
	var args []interface{}
	if report != "" {
		query += ` WHERE report = ?`
		args = append(args, report)
	}
	query += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func(rows *sqlx.Rows) {
		err := rows.Close()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to close rows")
		}
	}(rows)

	out := make([]domain.Run, 0)
	for rows.Next() {
		var r store.Run
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run := domain.Run{
			ID:         r.ID,
			Report:     r.Report,
			Status:     domain.RunStatus(r.Status),
			Bands:      r.Bands,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Error:      r.Error,
		}
		if len(r.Params) > 0 {
			if err := msgpack.Unmarshal(r.Params, &run.Params); err != nil {
				return nil, fmt.Errorf("failed to decode parameters of run %s: %w", r.ID, err)
			}
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}
