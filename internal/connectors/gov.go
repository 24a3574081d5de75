package connectors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// GovConnector fetches a fixed list of government bulletin pages. It
// reuses the news connector's article extraction since government press
// releases are served as plain HTML pages too, but runs on its own
// rate limiter and is tagged Kind: "gov" so credibility classification
// treats it as a high-trust source regardless of source name.
type GovConnector struct {
	sources []NewsSource
	client  *http.Client
	limiter *rate.Limiter
}

func NewGovConnector(sources []NewsSource, client *http.Client) *GovConnector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &GovConnector{
		sources: sources,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

func (c *GovConnector) Name() string { return "gov" }

func (c *GovConnector) Fetch(ctx context.Context) ([]Item, error) {
	var items []Item
	var lastErr error

	for _, src := range c.sources {
		if err := c.limiter.Wait(ctx); err != nil {
			return items, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", "ramaverify-ingest/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", src.Name, err)
			continue
		}
		body, title, err := extractArticle(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", src.Name, err)
			continue
		}

		items = append(items, Item{
			Kind:        "gov",
			SourceName:  src.Name,
			URL:         src.URL,
			Title:       title,
			Body:        body,
			Language:    "en",
			PublishedAt: time.Now(),
		})
	}

	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}
