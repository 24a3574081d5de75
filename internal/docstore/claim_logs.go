package docstore

import (
	"context"

	"github.com/lib/pq"
)

// InsertClaimLog appends one verification request/response record.
// Claim logs are never updated or deleted once written.
func (s *Store) InsertClaimLog(ctx context.Context, l ClaimLog) error {
	query := `INSERT INTO claim_logs
		(id, claim_text, verdict, confidence, contradiction_score, mode, model_used,
		 sources_used, client_fingerprint, latency_ms, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.ClaimText, l.Verdict, l.Confidence, l.ContradictionScore, l.Mode, l.ModelUsed,
		pq.Array(l.SourcesUsed), l.ClientFingerprint, l.LatencyMS, l.CorrelationID, l.CreatedAt)
	return err
}

func (s *Store) RecentClaimLogs(ctx context.Context, limit int) ([]ClaimLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, claim_text, verdict, confidence, contradiction_score, mode, model_used,
		sources_used, client_fingerprint, latency_ms, correlation_id, created_at
		FROM claim_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ClaimLog
	for rows.Next() {
		var l ClaimLog
		if err := rows.Scan(&l.ID, &l.ClaimText, &l.Verdict, &l.Confidence, &l.ContradictionScore,
			&l.Mode, &l.ModelUsed, pq.Array(&l.SourcesUsed), &l.ClientFingerprint,
			&l.LatencyMS, &l.CorrelationID, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UserHistory returns the claim logs attributed to a client fingerprint,
// newest first, backing GET /user/history.
func (s *Store) UserHistory(ctx context.Context, clientFingerprint string, limit int) ([]ClaimLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, claim_text, verdict, confidence, contradiction_score, mode, model_used,
		sources_used, client_fingerprint, latency_ms, correlation_id, created_at
		FROM claim_logs WHERE client_fingerprint = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, clientFingerprint, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ClaimLog
	for rows.Next() {
		var l ClaimLog
		if err := rows.Scan(&l.ID, &l.ClaimText, &l.Verdict, &l.Confidence, &l.ContradictionScore,
			&l.Mode, &l.ModelUsed, pq.Array(&l.SourcesUsed), &l.ClientFingerprint,
			&l.LatencyMS, &l.CorrelationID, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
