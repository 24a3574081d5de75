package docstore

import (
	"context"

	"github.com/lib/pq"
)

// UpsertVerifiedClaim inserts or replaces a canon claim by ClaimID, so
// re-running the Google Fact Check connector over the same claim updates
// its verdict in place rather than duplicating it.
func (s *Store) UpsertVerifiedClaim(ctx context.Context, c VerifiedClaim) error {
	query := `INSERT INTO verified_claims (claim_id, claim_text, verdict, explanation, source, url, tags, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (claim_id) DO UPDATE SET
			claim_text = EXCLUDED.claim_text,
			verdict = EXCLUDED.verdict,
			explanation = EXCLUDED.explanation,
			source = EXCLUDED.source,
			url = EXCLUDED.url,
			tags = EXCLUDED.tags,
			language = EXCLUDED.language`
	_, err := s.db.ExecContext(ctx, query,
		c.ClaimID, c.ClaimText, c.Verdict, c.Explanation, c.Source, c.URL,
		pq.Array(c.Tags), c.Language, c.CreatedAt)
	return err
}

func (s *Store) GetVerifiedClaim(ctx context.Context, claimID string) (*VerifiedClaim, error) {
	c := &VerifiedClaim{}
	query := `SELECT claim_id, claim_text, verdict, explanation, source, url, tags, language, created_at
		FROM verified_claims WHERE claim_id = $1`
	err := s.db.QueryRowContext(ctx, query, claimID).Scan(
		&c.ClaimID, &c.ClaimText, &c.Verdict, &c.Explanation, &c.Source, &c.URL,
		pq.Array(&c.Tags), &c.Language, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CountVerifiedClaims(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verified_claims`).Scan(&count)
	return count, err
}
