package docstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// ErrRunInProgress is returned by TryStartRun when another run is already
// RUNNING, implementing the ingestion orchestrator's singleton gate as a
// conditional insert rather than an application-level lock.
var ErrRunInProgress = errors.New("docstore: an ingest run is already in progress")

// TryStartRun inserts a new RUNNING row, giving the orchestrator its
// ALREADY_RUNNING check. The WHERE NOT EXISTS guard alone is not atomic
// under READ COMMITTED — two concurrent callers can both see no RUNNING row
// and both insert — so atomicity actually comes from idx_ingest_runs_running,
// the partial unique index on status='RUNNING': the loser's insert raises a
// unique_violation, which is mapped to ErrRunInProgress here.
func (s *Store) TryStartRun(ctx context.Context, runID string, startedAt time.Time) error {
	query := `INSERT INTO ingest_runs (id, status, started_at, ingested, errors)
		SELECT $1, 'RUNNING', $2, 0, ARRAY[]::text[]
		WHERE NOT EXISTS (SELECT 1 FROM ingest_runs WHERE status = 'RUNNING')`
	res, err := s.db.ExecContext(ctx, query, runID, startedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrRunInProgress
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunInProgress
	}
	return nil
}

// FinishRun writes the terminal state of a run exactly once.
func (s *Store) FinishRun(ctx context.Context, runID, status string, finishedAt time.Time, ingested int, errs []string) error {
	query := `UPDATE ingest_runs SET status = $1, finished_at = $2, ingested = $3, errors = $4
		WHERE id = $5 AND status = 'RUNNING'`
	_, err := s.db.ExecContext(ctx, query, status, finishedAt, ingested, pq.Array(errs), runID)
	return err
}

// LastFinishedRun returns the most recently finished run, used to enforce
// the ingestion cooldown window.
func (s *Store) LastFinishedRun(ctx context.Context) (*IngestRun, error) {
	r := &IngestRun{}
	var finishedAt sql.NullTime
	query := `SELECT id, status, started_at, finished_at, ingested, errors
		FROM ingest_runs WHERE status <> 'RUNNING' ORDER BY finished_at DESC LIMIT 1`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&r.ID, &r.Status, &r.StartedAt, &finishedAt, &r.Ingested, pq.Array(&r.Errors))
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return r, nil
}

// CurrentlyRunning reports whether a run is in the RUNNING state.
func (s *Store) CurrentlyRunning(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_runs WHERE status = 'RUNNING'`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
