package verify

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ramaverify/backend/internal/connectors"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/modelgateway"
	"github.com/ramaverify/backend/internal/vectorindex"
)

// collectionSpec is one row of the per-collection retrieval table in
// Phase 2: how many hits to take and the similarity floor to apply.
type collectionSpec struct {
	collection    string
	k             int
	minSimilarity float64
}

// Config holds the engine's tunable thresholds, all with the defaults
// named in the component design.
type Config struct {
	TauCanon  float64
	KContext  int
	Phase2    []collectionSpec
	LiveNewsK int
	LiveFactCheckK int
}

func DefaultConfig() Config {
	return Config{
		TauCanon: 0.85,
		KContext: 25,
		Phase2: []collectionSpec{
			{vectorindex.CollectionNewsArticles, 50, 0.65},
			{vectorindex.CollectionGovBulletins, 20, 0.65},
			{vectorindex.CollectionSocialPosts, 15, 0.65},
		},
		LiveNewsK:      10,
		LiveFactCheckK: 5,
	}
}

// Engine ties together the embedding chain, vector index, model gateway,
// and optional live source connectors into the two-phase verification
// algorithm.
type Engine struct {
	cfg           Config
	chain         *embedding.Chain
	index         vectorindex.Index
	gateway       *modelgateway.Gateway
	docs          *docstore.Store
	liveNews      connectors.Connector
	liveFactCheck connectors.Connector
	log           *slog.Logger
}

type Option func(*Engine)

func WithLiveNews(c connectors.Connector) Option     { return func(e *Engine) { e.liveNews = c } }
func WithLiveFactCheck(c connectors.Connector) Option { return func(e *Engine) { e.liveFactCheck = c } }

func New(cfg Config, chain *embedding.Chain, index vectorindex.Index, gateway *modelgateway.Gateway, docs *docstore.Store, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{cfg: cfg, chain: chain, index: index, gateway: gateway, docs: docs, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify runs the two-phase algorithm for one claim. It never returns a
// non-nil error: domain failures (evidence insufficient, model down)
// surface as Result.Mode/Verdict per the error-handling design, and a
// failed claim embedding skips the canon lookup and leaves Phase 2 with no
// scored evidence, so the result is unverified.
func (e *Engine) Verify(ctx context.Context, claimText, language, category string) (Result, error) {
	now := time.Now()

	claimVec, providerID, err := e.embedClaim(ctx, claimText)
	if err != nil {
		e.log.Warn("verify: claim embedding failed, proceeding without canon lookup", "error", err)
	} else {
		if hit, ok := e.canonLookup(ctx, claimText, claimVec, providerID); ok {
			if result, ok := e.buildCanonResult(ctx, hit, now); ok {
				return result, nil
			}
			e.log.Warn("verify: canon hit had no backing VerifiedClaim row, falling through to Phase 2", "record_id", hit.Record.RecordID)
		}
	}

	merged := e.gatherEvidence(ctx, claimText, claimVec, providerID)
	if len(merged) == 0 {
		return Result{
			Mode:        ModeReasoned,
			Verdict:     VerdictUnverified,
			Confidence:  0,
			Explanation: "No relevant evidence was found for this claim in any indexed or live source.",
			Timestamp:   now,
		}, nil
	}

	truncated := rankAndTruncate(merged, e.cfg.KContext)
	prompt := modelgateway.BuildPrompt(claimText, formatEvidenceBlock(truncated))

	gen, err := e.gateway.Generate(ctx, modelgateway.SystemPrompt, prompt)
	if err != nil {
		return Result{
			Mode:          ModeRefused,
			Verdict:       VerdictUnverified,
			Explanation:   "All model backends are currently unavailable.",
			RefusalReason: err.Error(),
			Timestamp:     now,
		}, nil
	}

	reply, parseErr := parseReply(gen.Text)
	if parseErr != nil {
		repaired, repairErr := e.gateway.Generate(ctx, modelgateway.SystemPrompt,
			prompt+"\n\nYour previous reply could not be parsed as JSON. Reply again with ONLY the JSON object, no prose.")
		if repairErr != nil {
			return Result{Mode: ModeRefused, Verdict: VerdictUnverified, Explanation: "Model reply could not be parsed.", RawAnswer: gen.Text, Timestamp: now}, nil
		}
		reply, parseErr = parseReply(repaired.Text)
		gen = repaired
		if parseErr != nil {
			return Result{Mode: ModeRefused, Verdict: VerdictUnverified, Explanation: "Model reply could not be parsed after a repair attempt.", RawAnswer: repaired.Text, Timestamp: now}, nil
		}
	}

	result := postProcess(reply, truncated, gen, now)
	return result, nil
}

func (e *Engine) embedClaim(ctx context.Context, claimText string) ([]float32, string, error) {
	res, err := e.chain.Embed(ctx, []string{claimText})
	if err != nil {
		return nil, "", err
	}
	return res.Vectors[0], res.ProviderID, nil
}

// canonLookup implements Phase 1: a k=1 query against verified_claims at
// the canon similarity floor.
func (e *Engine) canonLookup(ctx context.Context, claimText string, claimVec []float32, providerID string) (vectorindex.Hit, bool) {
	vec, ok := e.vectorForCollection(ctx, claimText, claimVec, providerID, vectorindex.CollectionVerifiedClaims)
	if !ok {
		return vectorindex.Hit{}, false
	}
	hits, err := e.index.Query(ctx, vectorindex.CollectionVerifiedClaims, vec, 1, e.cfg.TauCanon)
	if err != nil || len(hits) == 0 {
		return vectorindex.Hit{}, false
	}
	return hits[0], true
}

// vectorForCollection returns the vector to query collection with. §4.2
// requires that a query embedded by one provider never be compared against
// vectors a collection was written under a different provider: when the
// collection's recorded provider differs from the query's active one, the
// claim is re-embedded directly on the collection's provider; if that
// provider is unavailable, the collection is rejected (skipped) rather
// than queried with an incomparable vector.
func (e *Engine) vectorForCollection(ctx context.Context, claimText string, claimVec []float32, providerID, collection string) ([]float32, bool) {
	if claimVec == nil {
		return nil, false
	}

	stored, err := e.index.CollectionProvider(ctx, collection)
	if err != nil {
		e.log.Warn("verify: failed to read collection provider, rejecting collection", "collection", collection, "error", err)
		return nil, false
	}
	if stored == "" || stored == providerID {
		return claimVec, true
	}

	res, err := e.chain.EmbedWith(ctx, stored, []string{claimText})
	if err != nil {
		e.log.Warn("verify: collection provider mismatch and re-embed unavailable, rejecting collection",
			"collection", collection, "query_provider", providerID, "collection_provider", stored, "error", err)
		return nil, false
	}
	e.log.Info("verify: re-embedded query for collection provider mismatch",
		"collection", collection, "query_provider", providerID, "collection_provider", stored)
	return res.Vectors[0], true
}

// buildCanonResult implements §4.7 Phase 1 step 3. The vector hit alone
// only carries similarity and display metadata; the authoritative verdict
// and explanation live in the VerifiedClaim row the hit's record_id was
// upserted under, so this enriches the hit with a docstore lookup.
func (e *Engine) buildCanonResult(ctx context.Context, hit vectorindex.Hit, now time.Time) (Result, bool) {
	rec := hit.Record
	claim, err := e.docs.GetVerifiedClaim(ctx, rec.RecordID)
	if err != nil || claim == nil {
		return Result{}, false
	}
	return Result{
		Mode:               ModeExistingFactCheck,
		Verdict:            normalizeVerdict(claim.Verdict),
		Confidence:         clamp01(hit.Similarity),
		ContradictionScore: 0,
		Explanation:        claim.Explanation,
		RawAnswer:          claim.Explanation,
		SourcesUsed: []Source{{
			Type: "factcheck", SourceName: claim.Source, URL: claim.URL,
			Snippet: snippetOf(claim.Explanation), CredibilityScore: rec.CredibilityScore,
			CredibilityLevel: rec.CredibilityLevel, IsVerifiedSource: rec.IsVerifiedSource,
		}},
		Timestamp: now,
	}, true
}

// gatherEvidence implements Phase 2's retrieval fan-out: the indexed
// collections and the best-effort live connectors are all queried
// concurrently and joined before ranking.
func (e *Engine) gatherEvidence(ctx context.Context, claimText string, claimVec []float32, providerID string) []evidence {
	var mu sync.Mutex
	var all []evidence
	var wg sync.WaitGroup

	add := func(items []evidence) {
		mu.Lock()
		all = append(all, items...)
		mu.Unlock()
	}

	if claimVec != nil {
		for _, spec := range e.cfg.Phase2 {
			wg.Add(1)
			go func(spec collectionSpec) {
				defer wg.Done()
				vec, ok := e.vectorForCollection(ctx, claimText, claimVec, providerID, spec.collection)
				if !ok {
					return
				}
				hits, err := e.index.Query(ctx, spec.collection, vec, spec.k, spec.minSimilarity)
				if err != nil {
					e.log.Warn("verify: collection query failed", "collection", spec.collection, "error", err)
					return
				}
				add(hitsToEvidence(hits))
			}(spec)
		}
	}

	if e.liveNews != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			add(e.fetchLive(ctx, e.liveNews, claimVec, e.cfg.LiveNewsK))
		}()
	}
	if e.liveFactCheck != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			add(e.fetchLive(ctx, e.liveFactCheck, claimVec, e.cfg.LiveFactCheckK))
		}()
	}

	wg.Wait()
	return all
}

func hitsToEvidence(hits []vectorindex.Hit) []evidence {
	out := make([]evidence, len(hits))
	for i, h := range hits {
		out[i] = evidence{
			kind: h.Record.Kind, sourceName: h.Record.SourceName, url: h.Record.URL,
			text: h.Record.Text, publishedAt: h.Record.PublishedAt,
			credibilityScore: h.Record.CredibilityScore, credibilityLevel: h.Record.CredibilityLevel,
			isVerifiedSource: h.Record.IsVerifiedSource, similarity: h.Similarity,
		}
	}
	return out
}

// fetchLive pulls a best-effort live set from a C1 connector and scores
// each item against the claim vector itself, since live items never pass
// through the vector index. A connector failure yields no evidence, not
// an error — Phase 2 continues with indexed evidence only.
func (e *Engine) fetchLive(ctx context.Context, c connectors.Connector, claimVec []float32, k int) []evidence {
	items, err := c.Fetch(ctx)
	if err != nil {
		e.log.Warn("verify: live connector failed", "connector", c.Name(), "error", err)
		return nil
	}
	if len(items) > k {
		items = items[:k]
	}
	if len(items) == 0 || claimVec == nil {
		return nil
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Body
	}
	res, err := e.chain.Embed(ctx, texts)
	if err != nil {
		e.log.Warn("verify: live evidence embedding failed", "connector", c.Name(), "error", err)
		return nil
	}

	out := make([]evidence, len(items))
	for i, it := range items {
		out[i] = evidence{
			kind: it.Kind, sourceName: it.SourceName, url: it.URL, text: it.Body,
			publishedAt: it.PublishedAt.Unix(), credibilityScore: 0.5, credibilityLevel: "medium",
			similarity: cosineSimilarity(claimVec, res.Vectors[i]),
		}
	}
	return out
}

// rankAndTruncate implements §4.7-2's merge-and-rank step: score each
// evidence item by credibility*0.6 + similarity*0.4 and keep the top
// KContext entries, preserving that order for sources_used attribution.
func rankAndTruncate(items []evidence, kContext int) []evidence {
	for i := range items {
		items[i].rank = items[i].credibilityScore*0.6 + items[i].similarity*0.4
	}
	sortEvidenceByRank(items)
	if kContext > 0 && len(items) > kContext {
		items = items[:kContext]
	}
	return items
}

func sortEvidenceByRank(items []evidence) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].rank > items[j-1].rank; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// postProcess implements §4.7-6: coerce the verdict, clamp scores, and
// filter sources_used down to cited, non-empty-snippet evidence.
func postProcess(reply modelReply, evidence []evidence, gen modelgateway.Generation, now time.Time) Result {
	verdict := normalizeVerdict(reply.Verdict)

	cited := map[int]bool{}
	for _, idx := range reply.CitedEvidenceIndices {
		cited[idx] = true
	}

	var sources []Source
	for i, e := range evidence {
		if !cited[i] {
			continue
		}
		snippet := snippetOf(e.text)
		if snippet == "" {
			continue
		}
		url := e.url
		if url == "" {
			url = connectors.PlaceholderURL(e.sourceName)
		}
		sources = append(sources, Source{
			Type: e.kind, SourceName: e.sourceName, URL: url, Snippet: snippet,
			CredibilityScore: e.credibilityScore, CredibilityLevel: e.credibilityLevel,
			IsVerifiedSource: e.isVerifiedSource,
		})
	}

	if len(sources) == 0 {
		verdict = VerdictUnverified
	}

	return Result{
		Mode:               ModeReasoned,
		Verdict:            verdict,
		Confidence:         clamp01(reply.Confidence),
		ContradictionScore: clamp01(reply.ContradictionScore),
		Explanation:        reply.Explanation,
		RawAnswer:          gen.Text,
		SourcesUsed:        sources,
		ModelUsed:          gen.ModelUsed,
		Timestamp:          now,
	}
}
