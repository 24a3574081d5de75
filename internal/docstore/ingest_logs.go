package docstore

import (
	"context"

	"github.com/lib/pq"
)

func (s *Store) InsertIngestLog(ctx context.Context, l IngestLog) error {
	query := `INSERT INTO ingest_logs (id, source, count, errors, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, l.ID, l.Source, l.Count, pq.Array(l.Errors), l.CreatedAt)
	return err
}

func (s *Store) LastIngestLog(ctx context.Context) (*IngestLog, error) {
	l := &IngestLog{}
	query := `SELECT id, source, count, errors, created_at FROM ingest_logs ORDER BY created_at DESC LIMIT 1`
	err := s.db.QueryRowContext(ctx, query).Scan(&l.ID, &l.Source, &l.Count, pq.Array(&l.Errors), &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}
