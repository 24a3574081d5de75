// Package connectors implements C1: source connector clients that fetch
// raw items from news, government, social, and fact-check sources.
package connectors

import (
	"context"
	"time"
)

// Item is one document fetched by a connector, before chunking or
// credibility classification.
type Item struct {
	Kind        string // "news", "gov", "social", "factcheck"
	SourceName  string
	URL         string
	Title       string
	Body        string
	Language    string
	PublishedAt time.Time

	// FactCheck-only fields, populated when Kind == "factcheck".
	Verdict     string
	Tags        []string
}

// Connector is one C1 client. Every connector runs under a caller-supplied
// deadline (T_CONNECTOR) and returns whatever it fetched. A non-nil error
// reports a failure (a missed deadline, a failed request) and may come
// together with the items fetched before it.
type Connector interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}
