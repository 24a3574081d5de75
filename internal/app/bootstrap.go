// Package app wires every component package into a runnable server: it
// owns process-wide handles for Postgres, Weaviate, and the background
// workers, constructed once at startup and passed down explicitly rather
// than reached for through package globals.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/ramaverify/backend/internal/config"
	"github.com/ramaverify/backend/internal/vectorindex"
)

// Dependencies holds the process-wide handles constructed once at
// bootstrap: a Postgres connection (document store), a Weaviate client
// (vector index), and an NSQ producer for the ingest-run notification
// topic, shared explicitly across every component that needs them.
type Dependencies struct {
	DB          *sql.DB
	Weaviate    *weaviate.Client
	NSQProducer *nsq.Producer
}

// Bootstrap opens the database, runs migrations, connects to Weaviate,
// ensures its schema exists, and creates the NSQ producer. The database
// ping and the schema check are retried, since in a container deployment
// the database and vector store may still be starting up; the other steps
// are tried once.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	if err := retry(cfg.BootstrapRetryAttempts, retryDelay, func() error { return db.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("app: failed to ping db: %w", err)
	}

	if err := runMigrations(db, cfg.MigrationPath); err != nil {
		return nil, err
	}

	wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		return nil, fmt.Errorf("app: failed to create weaviate client: %w", err)
	}

	if err := retry(cfg.BootstrapRetryAttempts, retryDelay, func() error {
		return vectorindex.EnsureSchema(ctx, wClient)
	}); err != nil {
		return nil, fmt.Errorf("app: failed to ensure weaviate schema: %w", err)
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("app: nsq producer error: %w", err)
	}
	createTopics(cfg.NSQDHTTP)

	return &Dependencies{DB: db, Weaviate: wClient, NSQProducer: producer}, nil
}

// createTopics pre-creates the topics this service publishes to. NSQ
// creates topics lazily on first publish, but a consumer that queries
// nsqlookupd before then sees a 404, so the teacher's pattern of hitting
// the nsqd HTTP API directly at startup avoids that race.
func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("app: failed to create nsq topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("app: failed to close nsq topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestDispatch)
	}()
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("app: failed to open db: %w", err)
	}
	return db, nil
}

func runMigrations(db *sql.DB, migrationPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("app: migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(migrationPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("app: migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("app: migration up error: %w", err)
	}
	return nil
}

// retry runs fn up to attempts times, sleeping delay between failures. It
// returns the last error if every attempt fails.
func retry(attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		slog.Warn("app: retrying after failure", "attempt", i+1, "attempts", attempts, "error", err)
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}

// corsMiddleware applies the configured origin allowlist per §6's
// CORS_ORIGINS knob. A "*" entry (or an empty list) allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case set[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
