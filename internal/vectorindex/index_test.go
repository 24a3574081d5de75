package vectorindex

import "testing"

func TestSortHitsTieBreak(t *testing.T) {
	hits := []Hit{
		{Record: Record{RecordID: "b", CredibilityScore: 0.6, PublishedAt: 100}, Similarity: 0.9},
		{Record: Record{RecordID: "a", CredibilityScore: 0.9, PublishedAt: 50}, Similarity: 0.9},
		{Record: Record{RecordID: "c", CredibilityScore: 0.9, PublishedAt: 200}, Similarity: 0.9},
	}

	sortHits(hits)

	if hits[0].Record.RecordID != "c" {
		t.Fatalf("expected highest credibility+published_at first, got %q", hits[0].Record.RecordID)
	}
	if hits[1].Record.RecordID != "a" {
		t.Fatalf("expected second-highest credibility+published_at second, got %q", hits[1].Record.RecordID)
	}
	if hits[2].Record.RecordID != "b" {
		t.Fatalf("expected lowest credibility last, got %q", hits[2].Record.RecordID)
	}
}

func TestSortHitsSimilarityDominates(t *testing.T) {
	hits := []Hit{
		{Record: Record{RecordID: "low-sim-high-cred", CredibilityScore: 0.99}, Similarity: 0.5},
		{Record: Record{RecordID: "high-sim-low-cred", CredibilityScore: 0.1}, Similarity: 0.95},
	}
	sortHits(hits)
	if hits[0].Record.RecordID != "high-sim-low-cred" {
		t.Fatalf("expected similarity to dominate ordering, got %q first", hits[0].Record.RecordID)
	}
}

func TestFilterAndTruncateDropsBelowFloor(t *testing.T) {
	hits := []Hit{
		{Record: Record{RecordID: "a"}, Similarity: 0.9},
		{Record: Record{RecordID: "b"}, Similarity: 0.5},
		{Record: Record{RecordID: "c"}, Similarity: 0.7},
	}
	out := filterAndTruncate(hits, 10, 0.65)
	if len(out) != 2 {
		t.Fatalf("expected 2 hits above floor, got %d", len(out))
	}
	for _, h := range out {
		if h.Similarity < 0.65 {
			t.Fatalf("hit below floor survived: %+v", h)
		}
	}
}

func TestFilterAndTruncateCapsAtK(t *testing.T) {
	hits := []Hit{
		{Record: Record{RecordID: "a"}, Similarity: 0.9},
		{Record: Record{RecordID: "b"}, Similarity: 0.8},
		{Record: Record{RecordID: "c"}, Similarity: 0.7},
	}
	out := filterAndTruncate(hits, 2, 0.0)
	if len(out) != 2 {
		t.Fatalf("expected result capped at k=2, got %d", len(out))
	}
}

func TestClassNameMapping(t *testing.T) {
	cases := map[string]string{
		CollectionVerifiedClaims: "VerifiedClaim",
		CollectionNewsArticles:   "NewsArticle",
		CollectionGovBulletins:   "GovBulletin",
		CollectionSocialPosts:    "SocialPost",
	}
	for collection, want := range cases {
		if got := className(collection); got != want {
			t.Errorf("className(%q) = %q, want %q", collection, got, want)
		}
	}
}
