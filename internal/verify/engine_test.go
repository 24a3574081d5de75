package verify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramaverify/backend/internal/connectors"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/modelgateway"
	"github.com/ramaverify/backend/internal/vectorindex"
)

type stubEmbedProvider struct{ dim int }

func (p *stubEmbedProvider) ID() string     { return "stub" }
func (p *stubEmbedProvider) Dimension() int { return p.dim }
func (p *stubEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, p.dim)
		for j := 0; j < len(t) && j < p.dim; j++ {
			v[j] = float32(t[j]) / 255
		}
		out[i] = v
	}
	return out, nil
}

type stubIndex struct {
	canonHits map[string][]vectorindex.Hit
	providers map[string]string
	err       error
}

func (s *stubIndex) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	return nil
}
func (s *stubIndex) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]vectorindex.Hit, error) {
	if s.err != nil {
		return nil, s.err
	}
	hits := s.canonHits[collection]
	var out []vectorindex.Hit
	for _, h := range hits {
		if h.Similarity >= minSimilarity {
			out = append(out, h)
		}
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
func (s *stubIndex) Count(ctx context.Context, collection string) (int, error) { return 0, nil }
func (s *stubIndex) CollectionProvider(ctx context.Context, collection string) (string, error) {
	return s.providers[collection], nil
}

type stubBackend struct {
	id   string
	text string
	err  error
}

func (b *stubBackend) ID() string { return b.id }
func (b *stubBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	return b.text, b.err
}
func (b *stubBackend) Ping(ctx context.Context) error { return nil }

func newEngine(t *testing.T, index vectorindex.Index, backend *stubBackend) (*Engine, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chain := embedding.NewChain(nil, &stubEmbedProvider{dim: 16})
	gw := modelgateway.New(nil, nil, []modelgateway.Backend{backend})
	docs := docstore.NewStore(db)
	e := New(DefaultConfig(), chain, index, gw, docs, nil)
	return e, mock
}

func TestVerifyCanonHitShortCircuits(t *testing.T) {
	index := &stubIndex{canonHits: map[string][]vectorindex.Hit{
		vectorindex.CollectionVerifiedClaims: {{
			Record:     vectorindex.Record{RecordID: "gfc_1", Kind: "factcheck", CredibilityScore: 0.9, CredibilityLevel: "high", IsVerifiedSource: true},
			Similarity: 0.92,
		}},
	}}
	e, mock := newEngine(t, index, &stubBackend{id: "should-not-be-called"})

	rows := sqlmock.NewRows([]string{"claim_id", "claim_text", "verdict", "explanation", "source", "url", "tags", "language", "created_at"}).
		AddRow("gfc_1", "drinking lemon water cures cancer", "FALSE", "no scientific evidence supports this", "google_factcheck", "https://reference.google-factcheck.com", "{false,health}", "en", time.Now())
	mock.ExpectQuery("SELECT claim_id, claim_text, verdict, explanation, source, url, tags, language, created_at").WillReturnRows(rows)

	result, err := e.Verify(context.Background(), "Drinking hot water with lemon cures cancer", "en", "")
	require.NoError(t, err)
	assert.Equal(t, ModeExistingFactCheck, result.Mode)
	assert.Equal(t, VerdictFalse, result.Verdict)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
	require.Len(t, result.SourcesUsed, 1)
	assert.Equal(t, "google_factcheck", result.SourcesUsed[0].SourceName)
}

func TestVerifyNoEvidenceReturnsUnverified(t *testing.T) {
	index := &stubIndex{}
	e, _ := newEngine(t, index, &stubBackend{id: "should-not-be-called"})

	result, err := e.Verify(context.Background(), "xkcd unknowable claim about nothing in particular", "en", "")
	require.NoError(t, err)
	assert.Equal(t, VerdictUnverified, result.Verdict)
	assert.LessOrEqual(t, result.Confidence, 0.3)
	assert.Empty(t, result.SourcesUsed)
}

func TestVerifyReasonedFiltersSourcesByCitedIndices(t *testing.T) {
	index := &stubIndex{canonHits: map[string][]vectorindex.Hit{
		vectorindex.CollectionNewsArticles: {
			{Record: vectorindex.Record{RecordID: "a", Kind: "news", SourceName: "bbc", URL: "https://bbc.com/1", Text: "evidence one about the claim", CredibilityScore: 0.8}, Similarity: 0.7},
			{Record: vectorindex.Record{RecordID: "b", Kind: "news", SourceName: "unknown", URL: "https://unknown.com/2", Text: "evidence two about the claim", CredibilityScore: 0.6}, Similarity: 0.66},
		},
	}}
	reply := `{"verdict":"false","confidence":0.9,"contradiction_score":0.1,"explanation":"the claim is false","cited_evidence_indices":[0]}`
	e, _ := newEngine(t, index, &stubBackend{id: "gemini", text: reply})

	result, err := e.Verify(context.Background(), "some claim with enough text to pass validation", "en", "")
	require.NoError(t, err)
	assert.Equal(t, ModeReasoned, result.Mode)
	assert.Equal(t, VerdictFalse, result.Verdict)
	require.Len(t, result.SourcesUsed, 1)
	assert.Equal(t, "bbc", result.SourcesUsed[0].SourceName)
}

func TestVerifyDowngradesToUnverifiedWhenNoSourcesSurviveFiltering(t *testing.T) {
	index := &stubIndex{canonHits: map[string][]vectorindex.Hit{
		vectorindex.CollectionNewsArticles: {
			{Record: vectorindex.Record{RecordID: "a", Kind: "news", SourceName: "bbc", Text: "some evidence text", CredibilityScore: 0.8}, Similarity: 0.7},
		},
	}}
	reply := `{"verdict":"true","confidence":0.8,"contradiction_score":0.0,"explanation":"looks true","cited_evidence_indices":[9]}`
	e, _ := newEngine(t, index, &stubBackend{id: "gemini", text: reply})

	result, err := e.Verify(context.Background(), "some other claim with enough text", "en", "")
	require.NoError(t, err)
	assert.Equal(t, VerdictUnverified, result.Verdict)
	assert.Empty(t, result.SourcesUsed)
}

func TestVerifyAllBackendsDownReturnsRefused(t *testing.T) {
	index := &stubIndex{canonHits: map[string][]vectorindex.Hit{
		vectorindex.CollectionNewsArticles: {
			{Record: vectorindex.Record{RecordID: "a", Kind: "news", SourceName: "bbc", Text: "evidence", CredibilityScore: 0.8}, Similarity: 0.7},
		},
	}}
	e, _ := newEngine(t, index, &stubBackend{id: "gemini", err: errors.New("503 unavailable")})

	result, err := e.Verify(context.Background(), "a claim that requires a live model call", "en", "")
	require.NoError(t, err)
	assert.Equal(t, ModeRefused, result.Mode)
	assert.NotEmpty(t, result.RefusalReason)
}

func TestVerifyTruncatesCanonQueryWhenEmbeddingFails(t *testing.T) {
	e, _ := newEngine(t, &stubIndex{}, &stubBackend{id: "gemini", text: `{"verdict":"unverified","confidence":0,"contradiction_score":0,"explanation":"no evidence","cited_evidence_indices":[]}`})
	e.chain = embedding.NewChain(nil)

	result, err := e.Verify(context.Background(), "a claim with a chain that always fails to embed", "en", "")
	require.NoError(t, err)
	assert.Equal(t, VerdictUnverified, result.Verdict)
}

func TestFetchLiveScoresAgainstClaimVector(t *testing.T) {
	provider := &stubEmbedProvider{dim: 16}
	e := New(DefaultConfig(), embedding.NewChain(nil, provider), nil, nil, nil, nil)
	conn := &stubLiveConnector{items: []connectors.Item{
		{Kind: "news", SourceName: "reuters", Body: "live evidence body", PublishedAt: time.Now()},
	}}

	claimVec := make([]float32, 16)
	claimVec[0] = 1

	ev := e.fetchLive(context.Background(), conn, claimVec, 10)
	require.Len(t, ev, 1)
	assert.Equal(t, "reuters", ev[0].sourceName)
}

func TestVectorForCollectionReEmbedsOnProviderMismatch(t *testing.T) {
	active := &stubEmbedProvider{dim: 4}
	other := &namedEmbedProvider{id: "other", dim: 4}
	chain := embedding.NewChain(nil, active, other)

	e := &Engine{chain: chain, index: &stubIndex{providers: map[string]string{"news_articles": "other"}}, log: discardLogger()}

	claimVec := []float32{1, 0, 0, 0}
	vec, ok := e.vectorForCollection(context.Background(), "some claim text", claimVec, active.ID(), "news_articles")
	require.True(t, ok)
	assert.NotEqual(t, claimVec, vec, "should be re-embedded on the collection's provider, not the query's active one")
}

func TestVectorForCollectionRejectsWhenMismatchedProviderUnavailable(t *testing.T) {
	active := &stubEmbedProvider{dim: 4}
	chain := embedding.NewChain(nil, active)

	e := &Engine{chain: chain, index: &stubIndex{providers: map[string]string{"news_articles": "other"}}, log: discardLogger()}

	claimVec := []float32{1, 0, 0, 0}
	_, ok := e.vectorForCollection(context.Background(), "some claim text", claimVec, active.ID(), "news_articles")
	assert.False(t, ok, "a collection provider the chain cannot produce must be rejected, not queried with an incomparable vector")
}

func TestVectorForCollectionPassesThroughOnMatchingProvider(t *testing.T) {
	active := &stubEmbedProvider{dim: 4}
	chain := embedding.NewChain(nil, active)

	e := &Engine{chain: chain, index: &stubIndex{providers: map[string]string{"news_articles": active.ID()}}, log: discardLogger()}

	claimVec := []float32{1, 0, 0, 0}
	vec, ok := e.vectorForCollection(context.Background(), "some claim text", claimVec, active.ID(), "news_articles")
	require.True(t, ok)
	assert.Equal(t, claimVec, vec)
}

type namedEmbedProvider struct {
	id  string
	dim int
}

func (p *namedEmbedProvider) ID() string     { return p.id }
func (p *namedEmbedProvider) Dimension() int { return p.dim }
func (p *namedEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, p.dim)
		v[p.dim-1] = 1
		out[i] = v
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLiveConnector struct {
	items []connectors.Item
	err   error
}

func (c *stubLiveConnector) Name() string { return "live" }
func (c *stubLiveConnector) Fetch(ctx context.Context) ([]connectors.Item, error) {
	return c.items, c.err
}
