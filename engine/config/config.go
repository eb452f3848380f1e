// Package config loads docrag settings from an optional YAML file, a .env
// file, and DOCRAG_* environment variables, in that order of precedence
// (environment wins), then validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Store     StoreConfig     `yaml:"store"`
	Query     QueryConfig     `yaml:"query"`
	Server    ServerConfig    `yaml:"server"`
	NATS      NATSConfig      `yaml:"nats"`
}

type ChunkerConfig struct {
	WindowSize int    `yaml:"window_size" validate:"gte=1"`
	Overlap    int    `yaml:"overlap" validate:"gte=0"`
	Splitter   string `yaml:"splitter" validate:"oneof=punkt rules"`
}

type EmbedderConfig struct {
	Provider string `yaml:"provider" validate:"oneof=ollama openai gemini hash"`
	// Model is the provider's model name; empty means the provider default.
	Model    string `yaml:"model"`
	// BaseURL overrides the provider endpoint; empty means the provider default.
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	APIKey    string `yaml:"-"`
	Dimension int    `yaml:"dimension" validate:"gte=0"`
	MaxTokens int    `yaml:"max_tokens" validate:"gte=1"`
	BatchSize int    `yaml:"batch_size" validate:"gte=1"`
	Workers   int    `yaml:"workers" validate:"gte=1"`
	// RateLimit is requests per second across workers; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
}

type GeneratorConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=ollama openai deepseek anthropic gemini echo"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey      string  `yaml:"-"`
	MaxTokens   int     `yaml:"max_new_tokens" validate:"gte=1"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=badger qdrant memory"`
	Collection string `yaml:"collection" validate:"required"`
	PersistDir string `yaml:"persist_dir" validate:"required_if=Backend badger"`
	QdrantAddr string `yaml:"qdrant_addr" validate:"required_if=Backend qdrant"`
}

type QueryConfig struct {
	TopK int `yaml:"n_results" validate:"gte=1"`
}

type ServerConfig struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	MetricsPort int    `yaml:"metrics_port" validate:"gte=0,lte=65535"`
	CORSOrigin  string `yaml:"cors_origin"`
	// DocsDir is the only directory the HTTP API and worker ingest from.
	DocsDir string `yaml:"docs_dir" validate:"required"`
	// AllowRemote lets API and worker callers ingest http(s) URLs.
	AllowRemote bool `yaml:"allow_remote"`
}

type NATSConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Chunker: ChunkerConfig{
			WindowSize: 3,
			Overlap:    1,
			Splitter:   "punkt",
		},
		Embedder: EmbedderConfig{
			Provider:  "ollama",
			MaxTokens: 512,
			BatchSize: 8,
			Workers:   4,
		},
		Generator: GeneratorConfig{
			Provider:    "ollama",
			MaxTokens:   200,
			Temperature: 0.7,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Collection: "postgres_docs",
			PersistDir: "./chroma_db",
			QdrantAddr: "localhost:6334",
		},
		Query: QueryConfig{TopK: 3},
		Server: ServerConfig{
			Port:        "8080",
			MetricsPort: 9091,
			CORSOrigin:  "*",
			DocsDir:     "./docs",
		},
		NATS: NATSConfig{URL: "nats://localhost:4222"},
	}
}

// Load reads defaults, then path (if non-empty), then .env, then the
// environment. A missing .env is not an error; a missing YAML path is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: .env not loaded", "err", err)
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct tags and the window/overlap relation.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := domain.ValidateWindow(c.Chunker.WindowSize, c.Chunker.Overlap); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.LogLevel = envOr("DOCRAG_LOG_LEVEL", c.LogLevel)

	c.Chunker.WindowSize = envInt("DOCRAG_WINDOW_SIZE", c.Chunker.WindowSize)
	c.Chunker.Overlap = envInt("DOCRAG_OVERLAP", c.Chunker.Overlap)
	c.Chunker.Splitter = envOr("DOCRAG_SPLITTER", c.Chunker.Splitter)

	c.Embedder.SetProvider(os.Getenv("DOCRAG_EMBED_PROVIDER"))
	c.Embedder.Model = envOr("DOCRAG_EMBED_MODEL", c.Embedder.Model)
	c.Embedder.BaseURL = envOr("DOCRAG_EMBED_URL", c.Embedder.BaseURL)
	c.Embedder.APIKey = providerKey(c.Embedder.Provider, c.Embedder.APIKey)
	c.Embedder.Dimension = envInt("DOCRAG_EMBED_DIMENSION", c.Embedder.Dimension)
	c.Embedder.MaxTokens = envInt("DOCRAG_EMBED_MAX_TOKENS", c.Embedder.MaxTokens)
	c.Embedder.BatchSize = envInt("DOCRAG_EMBED_BATCH", c.Embedder.BatchSize)
	c.Embedder.Workers = envInt("DOCRAG_EMBED_WORKERS", c.Embedder.Workers)
	c.Embedder.RateLimit = envFloat("DOCRAG_EMBED_RATE", c.Embedder.RateLimit)

	c.Generator.SetProvider(os.Getenv("DOCRAG_LLM_PROVIDER"))
	c.Generator.Model = envOr("DOCRAG_LLM_MODEL", c.Generator.Model)
	c.Generator.BaseURL = envOr("DOCRAG_LLM_URL", c.Generator.BaseURL)
	c.Generator.APIKey = providerKey(c.Generator.Provider, c.Generator.APIKey)
	c.Generator.MaxTokens = envInt("DOCRAG_MAX_NEW_TOKENS", c.Generator.MaxTokens)
	c.Generator.Temperature = envFloat("DOCRAG_TEMPERATURE", c.Generator.Temperature)

	c.Store.Backend = envOr("DOCRAG_STORE", c.Store.Backend)
	c.Store.Collection = envOr("DOCRAG_COLLECTION", c.Store.Collection)
	c.Store.PersistDir = envOr("DOCRAG_PERSIST_DIR", c.Store.PersistDir)
	c.Store.QdrantAddr = envOr("QDRANT_URL", c.Store.QdrantAddr)

	c.Query.TopK = envInt("DOCRAG_N_RESULTS", c.Query.TopK)

	c.Server.Port = envOr("PORT", c.Server.Port)
	c.Server.MetricsPort = envInt("METRICS_PORT", c.Server.MetricsPort)
	c.Server.CORSOrigin = envOr("CORS_ORIGIN", c.Server.CORSOrigin)
	c.Server.DocsDir = envOr("DOCRAG_DOCS_DIR", c.Server.DocsDir)
	c.Server.AllowRemote = envBool("DOCRAG_ALLOW_REMOTE", c.Server.AllowRemote)

	c.NATS.URL = envOr("NATS_URL", c.NATS.URL)
}

// SetProvider switches to provider p. A model and API key chosen for the
// previous provider are dropped so p falls back to its own defaults. An empty
// p or the current provider is a no-op.
func (e *EmbedderConfig) SetProvider(p string) {
	if p == "" || p == e.Provider {
		return
	}
	e.Provider, e.Model, e.APIKey = p, "", ProviderKey(p)
}

// SetProvider switches to provider p; see EmbedderConfig.SetProvider.
func (g *GeneratorConfig) SetProvider(p string) {
	if p == "" || p == g.Provider {
		return
	}
	g.Provider, g.Model, g.APIKey = p, "", ProviderKey(p)
}

// ProviderKeyEnv names the API key variable each hosted provider reads.
var ProviderKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// ProviderKey returns the API key for a provider from the environment.
func ProviderKey(provider string) string {
	if name, ok := ProviderKeyEnv[provider]; ok {
		return os.Getenv(name)
	}
	return ""
}

func providerKey(provider, current string) string {
	if k := ProviderKey(provider); k != "" {
		return k
	}
	return current
}

// ParseLevel maps the log_level setting to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("config: ignoring non-integer env", "key", key, "value", v)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("config: ignoring non-boolean env", "key", key, "value", v)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("config: ignoring non-numeric env", "key", key, "value", v)
	}
	return fallback
}
