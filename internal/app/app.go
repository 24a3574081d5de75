package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/ramaverify/backend/internal/api"
	"github.com/ramaverify/backend/internal/config"
	"github.com/ramaverify/backend/internal/connectors"
	"github.com/ramaverify/backend/internal/docstore"
	"github.com/ramaverify/backend/internal/embedding"
	"github.com/ramaverify/backend/internal/ingest"
	"github.com/ramaverify/backend/internal/logqueue"
	"github.com/ramaverify/backend/internal/modelgateway"
	"github.com/ramaverify/backend/internal/vectorindex"
	"github.com/ramaverify/backend/internal/verify"
)

// App holds the fully wired server: an HTTP handler plus the background
// workers (log queue, health sampler, ingest-run audit consumer) that must
// run alongside it.
type App struct {
	Handler     http.Handler
	health      *modelgateway.HealthTracker
	gateway     *modelgateway.Gateway
	logq        *logqueue.Queue
	nsqConsumer *nsq.Consumer
	cfg         *config.Config
}

// New wires every component package — embedding chain, model gateway,
// vector index, document store, connectors, ingestion orchestrator,
// verification engine — into one HTTP handler, following the control flow
// in the system overview: C9 on top, backed by C8/C6, which themselves
// depend on C1-C5/C7.
func New(cfg *config.Config, deps *Dependencies, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	docs := docstore.NewStore(deps.DB)
	index := vectorindex.NewWeaviateStore(deps.Weaviate)

	chain := buildEmbeddingChain(cfg, log)
	health := modelgateway.NewHealthTracker(log)
	backends := buildBackends(cfg)
	gateway := modelgateway.New(log, health, backends,
		modelgateway.WithPerCallDeadline(time.Duration(cfg.TModelSec)*time.Second),
		modelgateway.WithForceOffline(cfg.ForceOfflineMode),
	)

	newsConn, govConn, factCheckConn, socialConn := buildConnectors(cfg)
	conns := []connectors.Connector{newsConn, govConn, factCheckConn, socialConn}

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.Cooldown = time.Duration(cfg.TCooldownSec) * time.Second
	ingestCfg.ConnectorDeadline = time.Duration(cfg.TConnectorSec) * time.Second
	ingestCfg.BatchEmbedSize = cfg.BatchEmbedSize
	ingestCfg.ChunkWindow = cfg.ChunkSize
	ingestCfg.ChunkOverlap = cfg.ChunkOverlap
	orchestrator := ingest.New(ingestCfg, conns, chain, index, docs, log,
		ingest.WithOnComplete(publishIngestReport(deps.NSQProducer, log)),
	)

	// Phase 2's live fetch (§4.7) reuses the same connector instances the
	// ingestion orchestrator polls, so a live claim-time pull and a batch
	// ingestion run see the same fixed source list.
	engineCfg := verify.DefaultConfig()
	engineCfg.TauCanon = cfg.CanonThreshold
	engineCfg.KContext = cfg.ContextEvidence
	engine := verify.New(engineCfg, chain, index, gateway, docs, log,
		verify.WithLiveNews(newsConn),
		verify.WithLiveFactCheck(factCheckConn),
	)

	logq := logqueue.New(docs, cfg.LogQueueSize, log)

	requestDeadline := time.Duration(cfg.TRequestSec) * time.Second
	if cfg.ForceOfflineMode {
		requestDeadline = 20 * time.Second
	}

	handler := api.NewHandler(engine, orchestrator, docs, health, logq.Enqueue,
		cfg.XAdminToken, cfg.ForceOfflineMode, requestDeadline, log)

	mux := handler.NewMux()
	wrapped := corsMiddleware(splitOrigins(cfg.CORSOrigins))(mux)

	consumer, err := newIngestAuditConsumer(cfg, log)
	if err != nil {
		return nil, err
	}

	return &App{Handler: wrapped, health: health, gateway: gateway, logq: logq, nsqConsumer: consumer, cfg: cfg}, nil
}

// ingestNotification is the payload published on TopicIngestDispatch after
// every ingestion run, giving an operator dashboard or audit trail a push
// feed instead of polling /admin/ingest.
type ingestNotification struct {
	RunID      string         `json:"run_id"`
	Status     string         `json:"status"`
	Ingested   int            `json:"ingested"`
	ByKind     map[string]int `json:"by_kind"`
	Errors     []string       `json:"errors"`
	LastSynced time.Time      `json:"last_synced"`
}

// publishIngestReport returns an ingest.Option hook that fire-and-forgets
// the run's Report onto NSQ; a publish failure is logged, never surfaced
// to the admin caller, since the synchronous HTTP response already
// carries the authoritative result.
func publishIngestReport(producer *nsq.Producer, log *slog.Logger) func(ingest.Report) {
	return func(report ingest.Report) {
		if producer == nil {
			return
		}
		body, err := json.Marshal(ingestNotification{
			RunID: report.RunID, Status: report.Status, Ingested: report.Ingested,
			ByKind: report.ByKind, Errors: report.Errors, LastSynced: report.LastSynced,
		})
		if err != nil {
			log.Warn("app: failed to marshal ingest notification", "error", err)
			return
		}
		if err := producer.Publish(config.TopicIngestDispatch, body); err != nil {
			log.Warn("app: failed to publish ingest notification", "error", err)
		}
	}
}

// newIngestAuditConsumer subscribes to TopicIngestDispatch on a dedicated
// channel and logs every run-completed notification, the downstream
// consumer side of publishIngestReport.
func newIngestAuditConsumer(cfg *config.Config, log *slog.Logger) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(config.TopicIngestDispatch, "audit", nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("app: nsq consumer error: %w", err)
	}
	consumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		var note ingestNotification
		if err := json.Unmarshal(m.Body, &note); err != nil {
			log.Warn("app: failed to decode ingest notification", "error", err)
			return nil
		}
		log.Info("app: ingest run notification", "run_id", note.RunID, "status", note.Status, "ingested", note.Ingested)
		return nil
	}))
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		log.Warn("app: failed to connect ingest audit consumer to nsqlookupd", "error", err)
	}
	return consumer, nil
}

// Run starts the background workers (the fire-and-forget log writer and
// the periodic backend health sampler) and blocks serving HTTP until ctx
// is cancelled, then drains the log queue before returning so no pending
// ClaimLog write is lost on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	go a.logq.Run(ctx)
	go a.health.RunSampler(ctx, a.gateway.Backends(), time.Duration(a.cfg.THealthSec)*time.Second)

	srv := &http.Server{Addr: ":" + strconv.Itoa(a.cfg.ServerPort), Handler: a.Handler}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("app: server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("app: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("app: server shutdown failed", "error", err)
		}
		if a.nsqConsumer != nil {
			a.nsqConsumer.Stop()
		}
		<-a.logq.Done()
		return nil
	case err := <-errCh:
		return err
	}
}

func buildEmbeddingChain(cfg *config.Config, log *slog.Logger) *embedding.Chain {
	var providers []embedding.Provider
	if cfg.GeminiAPIKey != "" && !cfg.ForceOfflineMode {
		providers = append(providers, embedding.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiEmbedModel))
	}
	if cfg.OpenRouterAPIKey != "" && !cfg.ForceOfflineMode {
		providers = append(providers, embedding.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterEmbedModel))
	}
	if !cfg.ForceOfflineMode {
		providers = append(providers, embedding.NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaEmbedModel))
	}
	providers = append(providers, embedding.NewLocalProvider())
	return embedding.NewChain(log, providers...)
}

// buildBackends constructs the full configured backend chain regardless of
// ForceOfflineMode: the health sampler needs every backend to ping (§4.6),
// and the gateway itself already skips remote backends per call while
// offline (gateway.go's forceOffline guard), so building them here never
// risks an offline request actually reaching one.
func buildBackends(cfg *config.Config) []modelgateway.Backend {
	var backends []modelgateway.Backend
	if cfg.GeminiAPIKey != "" {
		backends = append(backends, modelgateway.NewGeminiBackend(cfg.GeminiAPIKey, cfg.GeminiModel))
	}
	if cfg.OpenRouterAPIKey != "" {
		backends = append(backends, modelgateway.NewOpenRouterBackend(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.OpenRouterModel))
	}
	backends = append(backends, modelgateway.NewOllamaBackend(cfg.OllamaEndpoint, cfg.OllamaModel))
	return backends
}

func buildConnectors(cfg *config.Config) (news *connectors.NewsConnector, gov *connectors.GovConnector, factCheck *connectors.FactCheckConnector, social *connectors.SocialConnector) {
	client := &http.Client{Timeout: time.Duration(cfg.TConnectorSec) * time.Second}
	politeness := connectors.NewPolitenessChecker("ramaverify-bot/1.0")

	newsSources := []connectors.NewsSource{
		{Name: "BBC", URL: "https://www.bbc.com/news"},
		{Name: "Reuters", URL: "https://www.reuters.com"},
		{Name: "The Hindu", URL: "https://www.thehindu.com"},
	}
	govSources := []connectors.NewsSource{
		{Name: "PIB", URL: "https://pib.gov.in/PressReleaseIframePage.aspx"},
		{Name: "WHO", URL: "https://www.who.int/news"},
	}
	factCheckQueries := []string{"misinformation", "viral claim", "fact check"}

	news = connectors.NewNewsConnector(newsSources, client, politeness)
	gov = connectors.NewGovConnector(govSources, client)
	factCheck = connectors.NewFactCheckConnector(cfg.GoogleFactCheckAPIKey, factCheckQueries)
	social = connectors.NewSocialConnector("", "social-sampler", client)
	return
}
