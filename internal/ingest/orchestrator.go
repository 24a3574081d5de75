// Package ingest implements C6: the ingestion orchestrator state machine
// that fans out to every source connector, chunks and dedupes what comes
// back, embeds it in batches, and persists it in KBRecord-then-raw-row
// order.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ramaverify/backend/internal/chunker"
	"github.com/ramaverify/backend/internal/connectors"
	"github.com/ramaverify/backend/internal/credibility"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/vectorindex"
)

// Status codes the orchestrator's public entry point can return.
const (
	StatusOK             = "OK"
	StatusPartial        = "PARTIAL"
	StatusFailed         = "FAILED"
	StatusAlreadyRunning = "ALREADY_RUNNING"
	StatusCooldown       = "COOLDOWN"
)

// Report summarizes a completed or rejected run.
type Report struct {
	Status     string // ALREADY_RUNNING, COOLDOWN, OK, PARTIAL, FAILED
	RunID      string
	Ingested   int
	ByKind     map[string]int // news, gov, social, factcheck counts
	Errors     []string
	LastSynced time.Time
}

// Config holds the orchestrator's tunable parameters, all sourced from
// the environment per the data model's defaults.
type Config struct {
	Cooldown          time.Duration
	ConnectorDeadline time.Duration
	BatchEmbedSize    int
	ChunkWindow       int
	ChunkOverlap      int
}

func DefaultConfig() Config {
	return Config{
		Cooldown:          600 * time.Second,
		ConnectorDeadline: 60 * time.Second,
		BatchEmbedSize:    32,
		ChunkWindow:       chunker.DefaultWindow,
		ChunkOverlap:      chunker.DefaultOverlap,
	}
}

// Orchestrator drives the IDLE -> RUNNING -> EMBED -> DONE state machine.
type Orchestrator struct {
	cfg        Config
	connectors []connectors.Connector
	chain      *embedding.Chain
	index      vectorindex.Index
	docs       *docstore.Store
	log        *slog.Logger
	onComplete func(Report)

	mu sync.Mutex
}

// Option configures optional Orchestrator behavior beyond its required
// dependencies.
type Option func(*Orchestrator)

// WithOnComplete registers a hook invoked with the finished run's Report
// after every call to Run that actually executes (never on
// ALREADY_RUNNING/COOLDOWN rejections). Used to publish a run-completed
// notification onto the message bus without coupling the orchestrator to
// any particular transport.
func WithOnComplete(fn func(Report)) Option {
	return func(o *Orchestrator) { o.onComplete = fn }
}

func New(cfg Config, conns []connectors.Connector, chain *embedding.Chain, index vectorindex.Index, docs *docstore.Store, log *slog.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{cfg: cfg, connectors: conns, chain: chain, index: index, docs: docs, log: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one ingestion cycle to completion, enforcing the singleton
// gate and cooldown before doing any work. force=true bypasses the
// cooldown but never the singleton gate — only one run may ever be
// RUNNING. The run proceeds under a cancellation-detached context so a
// caller whose HTTP request disconnects mid-run does not abort work that
// another caller may already be waiting on the singleton gate to see
// finished.
func (o *Orchestrator) Run(ctx context.Context, force bool) Report {
	if !force {
		if last, err := o.docs.LastFinishedRun(ctx); err == nil && last.FinishedAt != nil {
			if time.Since(*last.FinishedAt) < o.cfg.Cooldown {
				return Report{Status: StatusCooldown, LastSynced: *last.FinishedAt}
			}
		}
	}

	runID := uuid.New().String()
	startedAt := time.Now()
	if err := o.docs.TryStartRun(ctx, runID, startedAt); err != nil {
		return Report{Status: StatusAlreadyRunning}
	}

	return o.execute(context.WithoutCancel(ctx), runID)
}

// execute performs the RUNNING -> EMBED -> DONE transitions and blocks
// until the run is finished.
func (o *Orchestrator) execute(ctx context.Context, runID string) Report {
	o.mu.Lock()
	defer o.mu.Unlock()

	fetched, fetchErrs := o.fanOutConnectors(ctx)

	deduper := chunker.NewDeduper()
	o.seedHistoricalURLs(ctx, deduper)

	var accepted []connectors.Item
	for _, item := range fetched {
		if deduper.Accept(item.URL, item.Body) {
			accepted = append(accepted, item)
		}
	}

	ingested, byKind, persistErrs := o.embedAndPersist(ctx, accepted)
	allErrs := append(fetchErrs, persistErrs...)

	status := StatusOK
	if len(allErrs) > 0 {
		status = StatusPartial
	}
	if ingested == 0 && len(allErrs) > 0 && len(allErrs) >= len(o.connectors) {
		status = StatusFailed
	}

	finishedAt := time.Now()
	if err := o.docs.FinishRun(ctx, runID, status, finishedAt, ingested, allErrs); err != nil {
		o.log.Error("ingest: failed to finalize run", "run_id", runID, "error", err)
	}
	if err := o.docs.InsertIngestLog(ctx, docstore.IngestLog{
		ID: uuid.New().String(), Source: "orchestrator", Count: ingested, Errors: allErrs, CreatedAt: finishedAt,
	}); err != nil {
		o.log.Error("ingest: failed to write ingest log", "run_id", runID, "error", err)
	}

	o.log.Info("ingest run finished", "run_id", runID, "status", status, "ingested", ingested, "errors", len(allErrs))

	report := Report{
		Status: status, RunID: runID, Ingested: ingested, ByKind: byKind,
		Errors: allErrs, LastSynced: finishedAt,
	}
	if o.onComplete != nil {
		o.onComplete(report)
	}
	return report
}

// fanOutConnectors runs every connector concurrently, each under its own
// T_CONNECTOR deadline, and joins the results. A connector timing out or
// erroring contributes an error but never blocks the others.
func (o *Orchestrator) fanOutConnectors(ctx context.Context) ([]connectors.Item, []string) {
	type result struct {
		items []connectors.Item
		err   error
		name  string
	}

	results := make(chan result, len(o.connectors))
	var wg sync.WaitGroup

	for _, c := range o.connectors {
		wg.Add(1)
		go func(c connectors.Connector) {
			defer wg.Done()
			connCtx, cancel := context.WithTimeout(ctx, o.cfg.ConnectorDeadline)
			defer cancel()

			items, err := c.Fetch(connCtx)
			results <- result{items: items, err: err, name: c.Name()}
		}(c)
	}

	wg.Wait()
	close(results)

	var all []connectors.Item
	var errs []string
	for r := range results {
		all = append(all, r.items...)
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.name, r.err))
		}
	}
	return all, errs
}

func (o *Orchestrator) seedHistoricalURLs(ctx context.Context, d *chunker.Deduper) {
	for _, kind := range []string{"news", "gov", "social"} {
		urls, err := o.docs.ListKnownURLs(ctx, kind)
		if err != nil {
			o.log.Warn("ingest: failed to seed deduper", "kind", kind, "error", err)
			continue
		}
		for _, u := range urls {
			d.SeedURL(u)
		}
	}
}

// embedAndPersist chunks every accepted item, embeds the chunks in
// batches, and writes KBRecords before raw rows: a raw row with no
// KBRecord is acceptable (it will simply never surface as evidence), but
// a KBRecord referencing a raw row that was never written is not, so
// vector writes always precede the document-store insert.
func (o *Orchestrator) embedAndPersist(ctx context.Context, items []connectors.Item) (int, map[string]int, []string) {
	var errs []string
	ingested := 0
	byKind := map[string]int{"news": 0, "gov": 0, "social": 0, "factcheck": 0}

	for _, item := range items {
		rawID := itemKey(item)

		if item.Kind == "factcheck" {
			if err := o.persistFactCheck(ctx, item, rawID); err != nil {
				errs = append(errs, err.Error())
				continue
			}
			ingested++
			byKind["factcheck"]++
			continue
		}

		chunks := chunker.Split(rawID, item.Body, o.cfg.ChunkWindow, o.cfg.ChunkOverlap)
		if len(chunks) == 0 {
			continue
		}

		if err := o.embedAndUpsertChunks(ctx, item, rawID, chunks); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", item.SourceName, err))
			continue
		}

		if err := o.docs.InsertRawItem(ctx, docstore.RawItem{
			ID: rawID, Kind: item.Kind, SourceName: item.SourceName, URL: item.URL,
			Title: item.Title, Body: item.Body, Language: item.Language,
			PublishedAt: item.PublishedAt, FetchedAt: time.Now(),
		}); err != nil {
			errs = append(errs, fmt.Sprintf("%s: raw item write failed: %v", item.SourceName, err))
			continue
		}
		ingested++
		byKind[item.Kind]++
	}

	return ingested, byKind, errs
}

func (o *Orchestrator) embedAndUpsertChunks(ctx context.Context, item connectors.Item, rawID string, chunks []chunker.Chunk) error {
	cls := credibility.Classify(item.SourceName, item.Kind)
	collection := collectionForKind(item.Kind)

	batch := o.cfg.BatchEmbedSize
	if batch <= 0 {
		batch = 32
	}

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		slice := chunks[start:end]

		texts := make([]string, len(slice))
		for i, c := range slice {
			texts[i] = c.Text
		}

		result, err := o.chain.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}

		records := make([]vectorindex.Record, len(slice))
		for i, c := range slice {
			records[i] = vectorindex.Record{
				RecordID:          recordID(item, c.Ordinal),
				Vector:            result.Vectors[i],
				Text:              c.Text,
				SourceName:        item.SourceName,
				Kind:              item.Kind,
				CredibilityScore:  cls.Score,
				CredibilityLevel:  string(cls.Level),
				IsVerifiedSource:  cls.IsVerified,
				URL:               item.URL,
				PublishedAt:       item.PublishedAt.Unix(),
				EmbeddingProvider: result.ProviderID,
			}
		}

		if err := o.index.Upsert(ctx, collection, records); err != nil {
			return fmt.Errorf("vector upsert: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) persistFactCheck(ctx context.Context, item connectors.Item, rawID string) error {
	claimID := "gfc_" + hashPrefix(item.Title)

	if err := o.docs.UpsertVerifiedClaim(ctx, docstore.VerifiedClaim{
		ClaimID: claimID, ClaimText: item.Title, Verdict: item.Verdict,
		Explanation: item.Body, Source: item.SourceName, URL: item.URL,
		Tags: item.Tags, Language: item.Language, CreatedAt: time.Now(),
	}); err != nil {
		return fmt.Errorf("upsert verified claim: %w", err)
	}

	result, err := o.chain.Embed(ctx, []string{item.Body})
	if err != nil {
		return fmt.Errorf("embed claim: %w", err)
	}

	cls := credibility.Classify(item.SourceName, "factcheck")
	record := vectorindex.Record{
		RecordID: claimID, Vector: result.Vectors[0], Text: item.Body,
		SourceName: item.SourceName, Kind: "factcheck",
		CredibilityScore: cls.Score, CredibilityLevel: string(cls.Level),
		IsVerifiedSource: cls.IsVerified, URL: item.URL,
		PublishedAt: item.PublishedAt.Unix(), EmbeddingProvider: result.ProviderID,
	}
	if err := o.index.Upsert(ctx, vectorindex.CollectionVerifiedClaims, []vectorindex.Record{record}); err != nil {
		return fmt.Errorf("vector upsert claim: %w", err)
	}
	return nil
}

func collectionForKind(kind string) string {
	switch kind {
	case "gov":
		return vectorindex.CollectionGovBulletins
	case "social":
		return vectorindex.CollectionSocialPosts
	default:
		return vectorindex.CollectionNewsArticles
	}
}

func hashPrefix(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// providerTag is the connector-identity tag the data model's RawItem
// carries (§3): the fetch kind qualified by source name, e.g. "news:bbc".
func providerTag(item connectors.Item) string {
	return item.Kind + ":" + item.SourceName
}

// itemKey deterministically identifies one fetched item across runs:
// hash(provider_tag ∥ url), or hash(body) when url is absent. Used as the
// raw item's row ID, so InsertRawItem's ON CONFLICT(id) DO NOTHING makes a
// re-ingested unchanged item a no-op rather than a duplicate row.
func itemKey(item connectors.Item) string {
	if item.URL != "" {
		return hashOf(providerTag(item), item.URL)
	}
	return hashOf(item.Body)
}

// recordID derives one chunk's KBRecord key per the data model (§3):
// hash(provider_tag ∥ url ∥ ordinal), or hash(body ∥ ordinal) when url is
// absent. It depends only on the item's own identity and the chunk's
// ordinal, never on a value generated fresh per run, so upsert-by-
// record_id (§3 invariant 3) actually replaces rather than duplicates on
// re-ingestion of unchanged upstream content (§8 property 6).
func recordID(item connectors.Item, ordinal int) string {
	if item.URL != "" {
		return hashOf(providerTag(item), item.URL, strconv.Itoa(ordinal))
	}
	return hashOf(item.Body, strconv.Itoa(ordinal))
}

func hashOf(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
