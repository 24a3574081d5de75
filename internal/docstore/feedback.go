package docstore

import "context"

func (s *Store) InsertFeedback(ctx context.Context, f Feedback) error {
	query := `INSERT INTO feedback (id, claim_text, verdict_returned, comment, screenshot_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, f.ID, f.ClaimText, f.VerdictReturned, f.Comment, f.ScreenshotURL, f.CreatedAt)
	return err
}

func (s *Store) RecentFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, claim_text, verdict_returned, comment, screenshot_url, created_at
		FROM feedback ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.ClaimText, &f.VerdictReturned, &f.Comment, &f.ScreenshotURL, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
