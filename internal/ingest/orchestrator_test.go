package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramaverify/backend/internal/connectors"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/vectorindex"
)

type stubConnector struct {
	name  string
	items []connectors.Item
	err   error
	delay time.Duration
}

func (s *stubConnector) Name() string { return s.name }
func (s *stubConnector) Fetch(ctx context.Context) ([]connectors.Item, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.items, s.err
}

type stubEmbedProvider struct {
	id  string
	dim int
}

func (p *stubEmbedProvider) ID() string        { return p.id }
func (p *stubEmbedProvider) Dimension() int    { return p.dim }
func (p *stubEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

type memIndex struct {
	records map[string][]vectorindex.Record
}

func newMemIndex() *memIndex { return &memIndex{records: map[string][]vectorindex.Record{}} }

func (m *memIndex) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	m.records[collection] = append(m.records[collection], records...)
	return nil
}
func (m *memIndex) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]vectorindex.Hit, error) {
	return nil, nil
}
func (m *memIndex) Count(ctx context.Context, collection string) (int, error) {
	return len(m.records[collection]), nil
}
func (m *memIndex) CollectionProvider(ctx context.Context, collection string) (string, error) {
	return "", nil
}

func TestFanOutConnectorsJoinsResultsAndErrors(t *testing.T) {
	o := &Orchestrator{
		cfg: Config{ConnectorDeadline: time.Second},
		connectors: []connectors.Connector{
			&stubConnector{name: "news", items: []connectors.Item{{Kind: "news", SourceName: "bbc"}}},
			&stubConnector{name: "gov", err: errors.New("gov down")},
		},
	}

	items, errs := o.fanOutConnectors(context.Background())
	assert.Len(t, items, 1)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "gov down")
}

func TestFanOutConnectorsRespectsPerConnectorDeadline(t *testing.T) {
	o := &Orchestrator{
		cfg: Config{ConnectorDeadline: 10 * time.Millisecond},
		connectors: []connectors.Connector{
			&stubConnector{name: "slow", delay: time.Second},
		},
	}

	start := time.Now()
	items, errs := o.fanOutConnectors(context.Background())
	assert.Empty(t, items)
	assert.Len(t, errs, 1)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock, *memIndex) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chain := embedding.NewChain(nil, &stubEmbedProvider{id: "local", dim: 384})
	index := newMemIndex()
	store := docstore.NewStore(db)

	o := New(Config{BatchEmbedSize: 8, ChunkWindow: 800, ChunkOverlap: 120}, nil, chain, index, store, nil)
	return o, mock, index
}

func TestEmbedAndPersistWritesVectorThenRawRow(t *testing.T) {
	o, mock, index := newTestOrchestrator(t)

	mock.ExpectExec("INSERT INTO news_items").WillReturnResult(sqlmock.NewResult(1, 1))

	items := []connectors.Item{
		{Kind: "news", SourceName: "bbc", URL: "https://bbc.com/a", Body: "a short news article body about current events", PublishedAt: time.Now()},
	}

	ingested, _, errs := o.embedAndPersist(context.Background(), items)
	assert.Equal(t, 1, ingested)
	assert.Empty(t, errs)
	assert.NotEmpty(t, index.records[vectorindex.CollectionNewsArticles])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbedAndPersistRecordIDsAreDeterministicAcrossRuns(t *testing.T) {
	o1, mock1, index1 := newTestOrchestrator(t)
	mock1.ExpectExec("INSERT INTO news_items").WillReturnResult(sqlmock.NewResult(1, 1))

	o2, mock2, index2 := newTestOrchestrator(t)
	mock2.ExpectExec("INSERT INTO news_items").WillReturnResult(sqlmock.NewResult(1, 1))

	published := time.Now()
	items := []connectors.Item{
		{Kind: "news", SourceName: "bbc", URL: "https://bbc.com/a", Body: "a short news article body about current events", PublishedAt: published},
	}

	_, _, errs1 := o1.embedAndPersist(context.Background(), items)
	_, _, errs2 := o2.embedAndPersist(context.Background(), items)
	require.Empty(t, errs1)
	require.Empty(t, errs2)

	recs1 := index1.records[vectorindex.CollectionNewsArticles]
	recs2 := index2.records[vectorindex.CollectionNewsArticles]
	require.Len(t, recs1, 1)
	require.Len(t, recs2, 1)
	assert.Equal(t, recs1[0].RecordID, recs2[0].RecordID, "re-ingesting unchanged upstream content must produce the same record_id, so upsert replaces rather than duplicates")
}

func TestRecordIDDerivationWithAndWithoutURL(t *testing.T) {
	withURL := connectors.Item{Kind: "news", SourceName: "bbc", URL: "https://bbc.com/a", Body: "body one"}
	sameURLDifferentBody := connectors.Item{Kind: "news", SourceName: "bbc", URL: "https://bbc.com/a", Body: "body two"}
	assert.Equal(t, recordID(withURL, 0), recordID(sameURLDifferentBody, 0), "record_id for a URL-bearing item depends on provider_tag/url/ordinal, not body")

	noURL := connectors.Item{Kind: "social", SourceName: "feed", Body: "the same post text"}
	noURLAgain := connectors.Item{Kind: "social", SourceName: "feed", Body: "the same post text"}
	assert.Equal(t, recordID(noURL, 0), recordID(noURLAgain, 0))

	differentBody := connectors.Item{Kind: "social", SourceName: "feed", Body: "a completely different post"}
	assert.NotEqual(t, recordID(noURL, 0), recordID(differentBody, 0), "record_id for a URL-less item must depend on body content")

	assert.NotEqual(t, recordID(withURL, 0), recordID(withURL, 1), "distinct ordinals within the same item must not collide")
}

func TestEmbedAndPersistSkipsRawWriteWhenVectorUpsertFails(t *testing.T) {
	o, mock, index := newTestOrchestrator(t)
	o.index = &failingIndex{}

	items := []connectors.Item{
		{Kind: "news", SourceName: "bbc", URL: "https://bbc.com/a", Body: "a short news article body", PublishedAt: time.Now()},
	}

	ingested, _, errs := o.embedAndPersist(context.Background(), items)
	assert.Equal(t, 0, ingested)
	assert.Len(t, errs, 1)
	assert.Empty(t, index.records[vectorindex.CollectionNewsArticles])
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingIndex struct{}

func (f *failingIndex) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	return errors.New("weaviate unreachable")
}
func (f *failingIndex) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]vectorindex.Hit, error) {
	return nil, nil
}
func (f *failingIndex) Count(ctx context.Context, collection string) (int, error) { return 0, nil }
func (f *failingIndex) CollectionProvider(ctx context.Context, collection string) (string, error) {
	return "", nil
}

func TestEmbedAndPersistFactCheckUpsertsVerifiedClaim(t *testing.T) {
	o, mock, index := newTestOrchestrator(t)

	mock.ExpectExec("INSERT INTO verified_claims").WillReturnResult(sqlmock.NewResult(1, 1))

	items := []connectors.Item{
		{Kind: "factcheck", SourceName: "google_factcheck", Title: "claim about vaccines", Body: "explanation text", Verdict: "FALSE", Tags: []string{"false", "health"}, PublishedAt: time.Now()},
	}

	ingested, _, errs := o.embedAndPersist(context.Background(), items)
	assert.Equal(t, 1, ingested)
	assert.Empty(t, errs)
	assert.Len(t, index.records[vectorindex.CollectionVerifiedClaims], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReturnsAlreadyRunningWhenGateRejects(t *testing.T) {
	o, mock, _ := newTestOrchestrator(t)
	mock.ExpectExec("INSERT INTO ingest_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	report := o.Run(context.Background(), true)
	assert.Equal(t, StatusAlreadyRunning, report.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReturnsCooldownWhenLastRunTooRecent(t *testing.T) {
	o, mock, _ := newTestOrchestrator(t)
	o.cfg.Cooldown = time.Hour

	rows := sqlmock.NewRows([]string{"id", "status", "started_at", "finished_at", "ingested", "errors"}).
		AddRow("run-1", "OK", time.Now().Add(-time.Minute), time.Now().Add(-time.Minute), 5, "{}")
	mock.ExpectQuery("SELECT id, status, started_at, finished_at, ingested, errors").WillReturnRows(rows)

	report := o.Run(context.Background(), false)
	assert.Equal(t, StatusCooldown, report.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
