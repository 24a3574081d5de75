// Package vectorindex implements C3: named collections of embedded
// records with similarity search, generalized from the teacher's
// single-class Weaviate schema to the four collections the data model
// calls for (verified_claims, news_articles, gov_bulletins, social_posts).
package vectorindex

import (
	"context"
	"sort"
)

// Record is one row upserted into a collection: a vector plus the text and
// metadata needed to reconstruct a piece of evidence without a join back
// to the document store.
type Record struct {
	RecordID           string
	Vector             []float32
	Text               string
	SourceName         string
	Kind               string
	CredibilityScore   float64
	CredibilityLevel   string
	IsVerifiedSource   bool
	URL                string
	PublishedAt        int64 // unix seconds; 0 if unknown
	EmbeddingProvider  string
}

// Hit is one ranked result of a Query.
type Hit struct {
	Record     Record
	Similarity float64
}

// Index is the interface the rest of the system depends on; Weaviate is
// the only implementation, but callers never import it directly.
type Index interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Query(ctx context.Context, collection string, vector []float32, k int, minSimilarity float64) ([]Hit, error)
	Count(ctx context.Context, collection string) (int, error)
	// CollectionProvider returns the embedding provider recorded against
	// the records currently stored in collection, or "" if the collection
	// is empty. Callers use this to detect a query embedded by a different
	// provider than the one a collection was written under (§4.2).
	CollectionProvider(ctx context.Context, collection string) (string, error)
}

// Collection names, per the persistence layout in the data model.
const (
	CollectionVerifiedClaims = "verified_claims"
	CollectionNewsArticles   = "news_articles"
	CollectionGovBulletins   = "gov_bulletins"
	CollectionSocialPosts    = "social_posts"
)

// AllCollections lists every collection EnsureSchema must create.
var AllCollections = []string{
	CollectionVerifiedClaims,
	CollectionNewsArticles,
	CollectionGovBulletins,
	CollectionSocialPosts,
}

// sortHits orders hits by the tie-break rule in the vector index design:
// similarity descending, then credibility_score descending, then
// published_at descending, then record_id lexicographic ascending.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Record.CredibilityScore != b.Record.CredibilityScore {
			return a.Record.CredibilityScore > b.Record.CredibilityScore
		}
		if a.Record.PublishedAt != b.Record.PublishedAt {
			return a.Record.PublishedAt > b.Record.PublishedAt
		}
		return a.Record.RecordID < b.Record.RecordID
	})
}

// filterAndTruncate drops hits below the similarity floor and caps the
// result at k entries, after sorting.
func filterAndTruncate(hits []Hit, k int, minSimilarity float64) []Hit {
	sortHits(hits)

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		out = append(out, h)
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out
}
