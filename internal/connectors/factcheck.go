package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// factCheckSearchURL is a var, not a const, so tests can point it at a
// local httptest server.
var factCheckSearchURL = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

// verdictKeywords mirrors the normalization table used by the original
// ingestion pipeline: the first table whose keywords appear (case
// insensitive) in a Google Fact Check textual rating wins. MISLEADING is
// checked before FALSE and FALSE before TRUE, so qualified ratings such as
// "partially true" and negated ones such as "inaccurate" are not taken by
// the bare TRUE keywords.
var verdictKeywords = []struct {
	verdict  string
	keywords []string
}{
	{"MISLEADING", []string{"misleading", "misleaded", "mixed", "partial", "out of context", "lacks context"}},
	{"FALSE", []string{"false", "inaccurate", "incorrect", "fabricated", "false claim", "false information"}},
	{"TRUE", []string{"true", "accurate", "correct", "verified", "fact-checked", "correct fact"}},
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"health", []string{"vaccine", "covid", "disease", "hospital", "medicine", "virus"}},
	{"election", []string{"election", "vote", "ballot", "candidate", "polling"}},
	{"disaster", []string{"flood", "earthquake", "cyclone", "disaster", "hurricane"}},
	{"politics", []string{"minister", "government", "parliament", "policy", "party"}},
	{"science", []string{"science", "research", "study", "scientist"}},
	{"technology", []string{"technology", "app", "internet", "software", "ai"}},
	{"economy", []string{"economy", "inflation", "market", "tax", "gdp"}},
	{"immigration", []string{"immigration", "migrant", "refugee", "visa", "border"}},
}

// NormalizeVerdict classifies a Google Fact Check textual rating into
// TRUE/FALSE/MISLEADING using the same keyword table (and the same
// ratingValue-vs-bestRating fallback) as the original implementation.
func NormalizeVerdict(ratingText string, ratingValue, bestRating float64, hasRatingValue bool) string {
	lower := strings.ToLower(ratingText)
	for _, bucket := range verdictKeywords {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.verdict
			}
		}
	}
	if hasRatingValue && bestRating > 0 {
		if ratingValue > bestRating/2 {
			return "TRUE"
		}
		return "FALSE"
	}
	return "MISLEADING"
}

// ExtractTags builds the tag list for a fact-checked claim: the verdict,
// lowercased, followed by at most one matching category keyword bucket
// (the first bucket that matches wins, same as the original's break-on-
// first-match behavior). A keyword matches a word of the claim that starts
// with it, so "ai" does not match inside "claim".
func ExtractTags(claimText, verdict string) []string {
	tags := []string{strings.ToLower(verdict)}
	words := strings.FieldsFunc(strings.ToLower(claimText), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, bucket := range categoryKeywords {
		matched := false
		for _, kw := range bucket.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			tags = append(tags, bucket.category)
			break
		}
	}
	return tags
}

// PlaceholderURL synthesizes a stable reference URL for fact-checked
// claims that the upstream API did not supply one for, so every
// VerifiedClaim has a usable URL field.
func PlaceholderURL(sourceName string) string {
	slug := strings.ToLower(strings.TrimSpace(sourceName))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		slug = "unknown-source"
	}
	return fmt.Sprintf("https://reference.%s.com", slug)
}

// FactCheckConnector queries the Google Fact Check Tools API for a fixed
// set of search queries and normalizes the results into Items tagged
// Kind: "factcheck".
type FactCheckConnector struct {
	apiKey  string
	queries []string
	client  *http.Client
}

func NewFactCheckConnector(apiKey string, queries []string) *FactCheckConnector {
	return &FactCheckConnector{
		apiKey:  apiKey,
		queries: queries,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *FactCheckConnector) Name() string { return "factcheck" }

type googleClaimsSearchResponse struct {
	Claims []googleClaim `json:"claims"`
}

type googleClaim struct {
	Text        string `json:"text"`
	ClaimReview []struct {
		Publisher struct {
			Name string `json:"name"`
		} `json:"publisher"`
		URL           string `json:"url"`
		TextualRating string `json:"textualRating"`
		LanguageCode  string `json:"languageCode"`
		ReviewDate    string `json:"reviewDate"`
		ReviewRating  struct {
			RatingValue *float64 `json:"ratingValue"`
			BestRating  *float64 `json:"bestRating"`
		} `json:"reviewRating"`
	} `json:"claimReview"`
}

func (c *FactCheckConnector) Fetch(ctx context.Context) ([]Item, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("factcheck: no API key configured")
	}

	var items []Item
	for _, q := range c.queries {
		fetched, err := c.fetchQuery(ctx, q)
		if err != nil {
			return items, fmt.Errorf("factcheck: query %q: %w", q, err)
		}
		items = append(items, fetched...)
	}
	return items, nil
}

func (c *FactCheckConnector) fetchQuery(ctx context.Context, query string) ([]Item, error) {
	u, err := url.Parse(factCheckSearchURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("query", query)
	q.Set("languageCode", "en")
	q.Set("maxClaims", "20")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var decoded googleClaimsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	var items []Item
	for _, claim := range decoded.Claims {
		for _, review := range claim.ClaimReview {
			ratingValue, bestRating, hasRatingValue := 0.0, 0.0, false
			if review.ReviewRating.RatingValue != nil {
				hasRatingValue = true
				ratingValue = *review.ReviewRating.RatingValue
				if review.ReviewRating.BestRating != nil {
					bestRating = *review.ReviewRating.BestRating
				} else {
					bestRating = 1
				}
			}
			verdict := NormalizeVerdict(review.TextualRating, ratingValue, bestRating, hasRatingValue)
			sourceName := review.Publisher.Name
			if sourceName == "" {
				sourceName = "google_factcheck"
			}
			reviewURL := review.URL
			if reviewURL == "" {
				reviewURL = PlaceholderURL(sourceName)
			}

			item := Item{
				Kind:        "factcheck",
				SourceName:  sourceName,
				URL:         reviewURL,
				Title:       claim.Text,
				Body:        fmt.Sprintf("Claim: %s Verdict: %s", claim.Text, verdict),
				Language:    firstNonEmpty(review.LanguageCode, "en"),
				PublishedAt: parseDateOrZero(review.ReviewDate),
				Verdict:     verdict,
				Tags:        ExtractTags(claim.Text, verdict),
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDateOrZero(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
