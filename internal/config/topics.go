package config

const (
	// TopicIngestDispatch carries a run-completed notification published
	// after every ingestion run, so an operator dashboard or audit
	// consumer can react to an ingest run without polling /admin/ingest.
	// ClaimLog writes use the in-process bounded queue instead of NSQ
	// (see internal/logqueue) since that path needs drop-oldest-on-
	// overflow semantics, not at-least-once delivery.
	TopicIngestDispatch = "ingest.dispatch"
)
