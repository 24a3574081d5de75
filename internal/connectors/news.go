package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// NewsSource names one feed or page this connector polls.
type NewsSource struct {
	Name string
	URL  string
}

// NewsConnector fetches a fixed list of news pages, politeness-checks each
// host's robots.txt before fetching, extracts the article body with a
// plain HTML text walk, and rate-limits outbound requests with one limiter
// shared by every source it polls.
type NewsConnector struct {
	sources  []NewsSource
	client   *http.Client
	limiter  *rate.Limiter
	politeness *PolitenessChecker
}

func NewNewsConnector(sources []NewsSource, client *http.Client, politeness *PolitenessChecker) *NewsConnector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &NewsConnector{
		sources:    sources,
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		politeness: politeness,
	}
}

func (c *NewsConnector) Name() string { return "news" }

func (c *NewsConnector) Fetch(ctx context.Context) ([]Item, error) {
	var items []Item
	var lastErr error

	for _, src := range c.sources {
		if err := c.limiter.Wait(ctx); err != nil {
			return items, err
		}

		if c.politeness != nil {
			allowed, err := c.politeness.Allowed(ctx, src.URL)
			if err == nil && !allowed {
				lastErr = fmt.Errorf("%s: disallowed by robots.txt", src.Name)
				continue
			}
		}

		item, err := c.fetchOne(ctx, src)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", src.Name, err)
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

func (c *NewsConnector) fetchOne(ctx context.Context, src NewsSource) (Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Item{}, err
	}
	req.Header.Set("User-Agent", "ramaverify-ingest/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return Item{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, title, err := extractArticle(resp.Body)
	if err != nil {
		return Item{}, err
	}

	return Item{
		Kind:        "news",
		SourceName:  src.Name,
		URL:         src.URL,
		Title:       title,
		Body:        body,
		Language:    "en",
		PublishedAt: time.Now(),
	}, nil
}

// extractArticle walks the HTML tree collecting visible text from
// paragraph-like elements, skipping script/style/nav content.
func extractArticle(r io.Reader) (body, title string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var skip = map[string]bool{"script": true, "style": true, "nav": true, "footer": true, "header": true}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			if skip[n.Data] {
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.TrimSpace(sb.String()), title, nil
}
