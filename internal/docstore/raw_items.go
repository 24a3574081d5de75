package docstore

import (
	"context"
	"database/sql"
)

// Store wraps a *sql.DB with the repository methods for every collection
// in the persistence layout. Raw items are partitioned into three tables
// by kind (news_items, gov_items, social_items) per the data model; the
// rest share one table each.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) rawTable(kind string) string {
	switch kind {
	case "gov":
		return "gov_items"
	case "social":
		return "social_items"
	default:
		return "news_items"
	}
}

// InsertRawItem inserts a raw connector item into the table for its kind.
// Raw items are write-once: ingestion never mutates a row after insert.
func (s *Store) InsertRawItem(ctx context.Context, item RawItem) error {
	table := s.rawTable(item.Kind)
	query := `INSERT INTO ` + table + ` (id, kind, source_name, url, title, body, language, published_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Kind, item.SourceName, item.URL, item.Title, item.Body,
		item.Language, item.PublishedAt, item.FetchedAt)
	return err
}

// ListKnownURLs returns every non-empty URL already ingested into the given
// kind's table, used to seed the deduper with historical URL keys before a
// run starts.
func (s *Store) ListKnownURLs(ctx context.Context, kind string) ([]string, error) {
	table := s.rawTable(kind)
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM `+table+` WHERE url <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *Store) CountRawItems(ctx context.Context, kind string) (int, error) {
	table := s.rawTable(kind)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	return count, err
}
