package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"rama"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"rama"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Backend credentials and endpoints (spec.md §6 "Environment configuration").
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	OllamaEndpoint   string `envconfig:"OLLAMA_ENDPOINT" default:"http://localhost:11434"`
	ForceOfflineMode bool   `envconfig:"FORCE_OFFLINE_MODE" default:"false"`

	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	GeminiEmbedModel     string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"models/text-embedding-004"`
	OpenRouterModel      string `envconfig:"OPENROUTER_MODEL" default:"gpt-oss-20b:free"`
	OpenRouterEmbedModel string `envconfig:"OPENROUTER_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	OpenRouterBaseURL    string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OllamaModel          string `envconfig:"OLLAMA_MODEL" default:"mistral"`
	OllamaEmbedModel     string `envconfig:"OLLAMA_EMBEDDING_MODEL" default:"nomic-embed-text"`

	GoogleFactCheckAPIKey string `envconfig:"GOOGLE_FACTCHECK_API_KEY"`

	XAdminToken string `envconfig:"X_ADMIN_TOKEN" default:"dev_admin_token_change_in_production"`

	MongoDBURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/"`
	ChromaPersistPath string `envconfig:"CHROMA_PERSIST_PATH" default:"./data/chroma"`

	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	MinSimilarity  float64 `envconfig:"MIN_SIMILARITY" default:"0.65"`
	CanonThreshold float64 `envconfig:"CANON_SIMILARITY" default:"0.85"`
	ChunkSize      int     `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap   int     `envconfig:"CHUNK_OVERLAP" default:"120"`

	TCooldownSec  int `envconfig:"T_COOLDOWN_SEC" default:"600"`
	TConnectorSec int `envconfig:"T_CONNECTOR_SEC" default:"60"`
	TModelSec     int `envconfig:"T_MODEL_SEC" default:"30"`
	THealthSec    int `envconfig:"T_HEALTH_SEC" default:"60"`
	TRequestSec   int `envconfig:"T_REQUEST_SEC" default:"15"`

	BatchEmbedSize  int `envconfig:"B_EMBED" default:"32"`
	ContextEvidence int `envconfig:"K_CONTEXT" default:"25"`
	SnippetChars    int `envconfig:"S_SNIPPET" default:"500"`
	LogQueueSize    int `envconfig:"Q_LOG" default:"1024"`
	ModelRetryMax   int `envconfig:"MODEL_RETRY_ATTEMPTS" default:"3"`

	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors: env vars might already be set by the shell/container.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.XAdminToken == "" {
		return fmt.Errorf("%w: X_ADMIN_TOKEN", ErrMissingRequired)
	}
	return nil
}
