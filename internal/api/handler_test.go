package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/ingest"
	"github.com/ramaverify/backend/internal/modelgateway"
	"github.com/ramaverify/backend/internal/vectorindex"
	"github.com/ramaverify/backend/internal/verify"
)

type stubEmbedProvider struct{ dim int }

func (p *stubEmbedProvider) ID() string     { return "stub" }
func (p *stubEmbedProvider) Dimension() int { return p.dim }
func (p *stubEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

type noHitsIndex struct{}

func (n *noHitsIndex) Upsert(ctx context.Context, collection string, records []vectorindex.Record) error {
	return nil
}
func (n *noHitsIndex) Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]vectorindex.Hit, error) {
	return nil, nil
}
func (n *noHitsIndex) Count(ctx context.Context, collection string) (int, error) { return 0, nil }
func (n *noHitsIndex) CollectionProvider(ctx context.Context, collection string) (string, error) {
	return "", nil
}

type failingBackend struct{ id string }

func (b *failingBackend) ID() string { return b.id }
func (b *failingBackend) Generate(ctx context.Context, system, prompt string) (string, error) {
	return "", context.DeadlineExceeded
}
func (b *failingBackend) Ping(ctx context.Context) error { return context.DeadlineExceeded }

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	docs := docstore.NewStore(db)
	chain := embedding.NewChain(nil, &stubEmbedProvider{dim: 16})
	gw := modelgateway.New(nil, nil, []modelgateway.Backend{&failingBackend{id: "gemini"}})
	engine := verify.New(verify.DefaultConfig(), chain, &noHitsIndex{}, gw, docs, nil)

	h := NewHandler(engine, nil, docs, nil, nil, "s3cr3t", false, 2*time.Second, nil)
	return h, mock
}

func TestVerifyRejectsShortText(t *testing.T) {
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"text": "too short"})
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Verify(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyReturnsServiceUnavailableWhenAllBackendsDown(t *testing.T) {
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"text": "a claim with more than ten characters in it"})
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Verify(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminIngestRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", nil)
	rec := httptest.NewRecorder()

	h.AdminIngest(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminIngestAcceptsValidToken(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectExec("INSERT INTO ingest_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	chain := embedding.NewChain(nil, &stubEmbedProvider{dim: 16})
	h.orchestrator = ingest.New(ingest.DefaultConfig(), nil, chain, &noHitsIndex{}, h.docs, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", bytes.NewReader([]byte(`{"force":true}`)))
	req.Header.Set("X-Admin-Token", "s3cr3t")
	rec := httptest.NewRecorder()

	h.AdminIngest(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsDegradedWhenBackendDown(t *testing.T) {
	h, mock := newTestHandler(t)
	mock.ExpectQuery("SELECT id, status, started_at, finished_at, ingested, errors").
		WillReturnError(context.DeadlineExceeded)

	tracker := modelgateway.NewHealthTracker(nil)
	h.health = tracker

	ctx, cancel := context.WithCancel(context.Background())
	go tracker.RunSampler(ctx, []modelgateway.Backend{&failingBackend{id: "gemini"}}, time.Millisecond)
	t.Cleanup(cancel)

	require.Eventually(t, func() bool {
		return len(tracker.Snapshot()) > 0
	}, time.Second, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}
