// Package docstore implements C4: the durable Postgres collections behind
// the vector index's metadata — raw ingested items, verified claims,
// claim logs, ingest logs, feedback, and the ingest-run singleton gate.
package docstore

import "time"

// RawItem is a connector-fetched document before chunking, kept forever
// and never mutated once ingested.
type RawItem struct {
	ID          string
	Kind        string // "news", "gov", "social", "factcheck"
	SourceName  string
	URL         string
	Title       string
	Body        string
	Language    string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// VerifiedClaim is a canon entry: a claim with a settled verdict, upserted
// by ClaimID so re-ingesting the same fact-check updates rather than
// duplicates it.
type VerifiedClaim struct {
	ClaimID     string
	ClaimText   string
	Verdict     string
	Explanation string
	Source      string
	URL         string
	Tags        []string
	Language    string
	CreatedAt   time.Time
}

// ClaimLog is one append-only record of a /verify request and its
// response, written off the request path by the fire-and-forget queue.
type ClaimLog struct {
	ID                  string
	ClaimText           string
	Verdict             string
	Confidence          float64
	ContradictionScore  float64
	Mode                string
	ModelUsed           string
	SourcesUsed         []string
	ClientFingerprint   string
	LatencyMS           int64
	CorrelationID       string
	CreatedAt           time.Time
}

// IngestLog is one append-only record of a completed ingestion run,
// summarizing what a connector produced.
type IngestLog struct {
	ID        string
	Source    string
	Count     int
	Errors    []string
	CreatedAt time.Time
}

// Feedback is one append-only user-submitted correction or comment on a
// verdict.
type Feedback struct {
	ID             string
	ClaimText      string
	VerdictReturned string
	Comment        string
	ScreenshotURL  string
	CreatedAt      time.Time
}

// IngestRun is the singleton-gate row the orchestrator uses to serialize
// runs: written once at start (RUNNING) and updated once at end
// (OK|PARTIAL|FAILED).
type IngestRun struct {
	ID          string
	Status      string // RUNNING, OK, PARTIAL, FAILED
	StartedAt   time.Time
	FinishedAt  *time.Time
	Ingested    int
	Errors      []string
}
