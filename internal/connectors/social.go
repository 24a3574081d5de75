package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SocialConnector polls a JSON feed endpoint (e.g. a social platform's
// public search API) for posts mentioning tracked topics. Social sources
// are always classified low-credibility regardless of content, per the
// data model's classification table, so this connector does no content
// analysis of its own.
type SocialConnector struct {
	feedURL    string
	sourceName string
	client     *http.Client
}

func NewSocialConnector(feedURL, sourceName string, client *http.Client) *SocialConnector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &SocialConnector{feedURL: feedURL, sourceName: sourceName, client: client}
}

func (c *SocialConnector) Name() string { return "social" }

type socialFeedResponse struct {
	Posts []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		URL       string    `json:"url"`
		Author    string    `json:"author"`
		Language  string    `json:"language"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"posts"`
}

func (c *SocialConnector) Fetch(ctx context.Context) ([]Item, error) {
	if c.feedURL == "" {
		return nil, fmt.Errorf("social: no feed URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var decoded socialFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	items := make([]Item, 0, len(decoded.Posts))
	for _, p := range decoded.Posts {
		language := p.Language
		if language == "" {
			language = "en"
		}
		items = append(items, Item{
			Kind:        "social",
			SourceName:  c.sourceName,
			URL:         p.URL,
			Title:       p.Author,
			Body:        p.Text,
			Language:    language,
			PublishedAt: p.CreatedAt,
		})
	}
	return items, nil
}
