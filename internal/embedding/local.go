package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// LocalDimension matches the original implementation's local fallback tier
// (sentence-transformers/all-MiniLM-L6-v2 produces 384-dimensional vectors).
const LocalDimension = 384

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

var stopwords = buildStopwords([]string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to",
	"of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were",
	"be", "been", "being", "it", "this", "that", "these", "those", "from",
	"up", "down", "over", "under", "again", "further", "than", "so", "such",
	"into", "about", "between", "through", "during", "before", "after",
	"above", "below", "out", "off", "own", "same", "too", "very", "can",
	"will", "just", "don", "should", "now",
})

func buildStopwords(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// LocalProvider is the last-resort tier of the fallback chain: a
// deterministic, dependency-free feature-hashed bag-of-words embedder. It
// requires no corpus preparation and no network, so it is always available
// — the chain's final guarantee that Embed never fails outright.
//
// It is a fixed-dimension generalization of a TF-IDF vectorizer: instead of
// a corpus-built vocabulary (which would make the dimension and meaning of
// a vector depend on what has been ingested so far, breaking cross-run
// comparability), terms are hashed into LocalDimension buckets.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (p *LocalProvider) ID() string     { return "local" }
func (p *LocalProvider) Dimension() int { return LocalDimension }

func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmpty{}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = hashEmbed(t)
	}
	return out, nil
}

func hashEmbed(text string) []float32 {
	vec := make([]float64, LocalDimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return make([]float32, LocalDimension)
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	total := float64(len(tokens))
	for tok, count := range counts {
		bucket, sign := hashBucket(tok)
		tf := float64(count) / total
		weight := tf * idfProxy(len(tok))
		vec[bucket] += sign * weight
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	result := make([]float32, LocalDimension)
	if norm == 0 {
		return result
	}
	for i, v := range vec {
		result[i] = float32(v / norm)
	}
	return result
}

// hashBucket maps a token to a bucket and a sign via two independent FNV
// hashes, the standard feature-hashing trick for keeping collisions from
// biasing the resulting vector in one direction.
func hashBucket(token string) (int, float64) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	bucket := int(h.Sum32() % uint32(LocalDimension))

	h2 := fnv.New32a()
	_, _ = h2.Write([]byte(token + "#sign"))
	if h2.Sum32()%2 == 0 {
		return bucket, 1.0
	}
	return bucket, -1.0
}

// idfProxy approximates inverse document frequency without a corpus by
// favoring longer, rarer-looking tokens over common short ones.
func idfProxy(tokenLen int) float64 {
	return math.Log(1 + float64(tokenLen))
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}
