// Package config loads and validates the Parallax configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/parallax/config.yaml)
//  3. Project config (.parallax.yaml in the working directory)
//  4. Environment variables (PARALLAX_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Parallax configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Catalog     CatalogConfig     `yaml:"catalog" json:"catalog"`
	CloudSearch CloudSearchConfig `yaml:"cloudsearch" json:"cloudsearch"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Ingest      IngestConfig      `yaml:"ingest" json:"ingest"`
	Limits      LimitsConfig      `yaml:"limits" json:"limits"`
	Retry       RetryConfig       `yaml:"retry" json:"retry"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// CatalogConfig configures the Postgres catalog that backs the vector
// and graph stores.
type CatalogConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`

	// EmbeddingDim is the pgvector column dimension. Must match the
	// embedding model.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`

	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
}

// CloudSearchConfig configures the managed search service adapter.
type CloudSearchConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`

	// ConnectorID is the pre-provisioned connector used by the
	// "existing" ingestion mode.
	ConnectorID string `yaml:"connector_id" json:"connector_id"`

	// ConnectorPrefix names connectors provisioned by the "new" mode.
	ConnectorPrefix string `yaml:"connector_prefix" json:"connector_prefix"`

	// RequireNativeTenantScoping rejects the adapter at setup when set,
	// since the service only supports post-filtered tenant scoping.
	RequireNativeTenantScoping bool `yaml:"require_native_tenant_scoping" json:"require_native_tenant_scoping"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// EmbeddingsConfig configures the query/chunk embedding provider.
type EmbeddingsConfig struct {
	Host       string `yaml:"host" json:"host"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig configures hybrid search merging.
type SearchConfig struct {
	// Weights are the per-backend merge weights. They are renormalized
	// over the backends that return results, so they need not sum to 1.
	CloudSearchWeight float64 `yaml:"cloudsearch_weight" json:"cloudsearch_weight"`
	GraphWeight       float64 `yaml:"graph_weight" json:"graph_weight"`
	VectorWeight      float64 `yaml:"vector_weight" json:"vector_weight"`

	MaxResults int           `yaml:"max_results" json:"max_results"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// IngestConfig configures the ingestion orchestrator.
type IngestConfig struct {
	// Mode selects the cloud-search connector strategy:
	// "existing", "new", or "skip".
	Mode string `yaml:"mode" json:"mode"`

	// Workers caps concurrent documents within one ingestion call.
	Workers int `yaml:"workers" json:"workers"`
}

// LimitsConfig configures per-tenant admission limits.
type LimitsConfig struct {
	MaxConcurrentIngest int     `yaml:"max_concurrent_ingest" json:"max_concurrent_ingest"`
	QueryRate           float64 `yaml:"query_rate" json:"query_rate"`
	QueryBurst          int     `yaml:"query_burst" json:"query_burst"`
}

// RetryConfig configures the backend retry policy.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format" json:"format"`

	// File is an optional log file path. Empty logs to stderr.
	File string `yaml:"file" json:"file"`
}

// NewConfig creates a Config with the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Catalog: CatalogConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "parallax",
			Database:     "parallax",
			SSLMode:      "disable",
			EmbeddingDim: 768,
			MaxOpenConns: 8,
		},
		CloudSearch: CloudSearchConfig{
			ConnectorPrefix: "parallax",
			Timeout:         15 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Host:       "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			Timeout:    30 * time.Second,
		},
		Search: SearchConfig{
			CloudSearchWeight: 0.45,
			GraphWeight:       0.30,
			VectorWeight:      0.25,
			MaxResults:        10,
			Timeout:           10 * time.Second,
		},
		Ingest: IngestConfig{
			Mode:    "existing",
			Workers: 4,
		},
		Limits: LimitsConfig{
			MaxConcurrentIngest: 4,
			QueryRate:           10,
			QueryBurst:          20,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// UserConfigPath returns the path to the user configuration file,
// following the XDG Base Directory convention.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "parallax", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "parallax", "config.yaml")
	}
	return filepath.Join(home, ".config", "parallax", "config.yaml")
}

// Load loads configuration for the given working directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .parallax.yaml or .parallax.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".parallax.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".parallax.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Catalog
	if other.Catalog.Host != "" {
		c.Catalog.Host = other.Catalog.Host
	}
	if other.Catalog.Port != 0 {
		c.Catalog.Port = other.Catalog.Port
	}
	if other.Catalog.User != "" {
		c.Catalog.User = other.Catalog.User
	}
	if other.Catalog.Password != "" {
		c.Catalog.Password = other.Catalog.Password
	}
	if other.Catalog.Database != "" {
		c.Catalog.Database = other.Catalog.Database
	}
	if other.Catalog.SSLMode != "" {
		c.Catalog.SSLMode = other.Catalog.SSLMode
	}
	if other.Catalog.EmbeddingDim != 0 {
		c.Catalog.EmbeddingDim = other.Catalog.EmbeddingDim
	}
	if other.Catalog.MaxOpenConns != 0 {
		c.Catalog.MaxOpenConns = other.Catalog.MaxOpenConns
	}

	// CloudSearch
	if other.CloudSearch.BaseURL != "" {
		c.CloudSearch.BaseURL = other.CloudSearch.BaseURL
	}
	if other.CloudSearch.APIKey != "" {
		c.CloudSearch.APIKey = other.CloudSearch.APIKey
	}
	if other.CloudSearch.ConnectorID != "" {
		c.CloudSearch.ConnectorID = other.CloudSearch.ConnectorID
	}
	if other.CloudSearch.ConnectorPrefix != "" {
		c.CloudSearch.ConnectorPrefix = other.CloudSearch.ConnectorPrefix
	}
	if other.CloudSearch.RequireNativeTenantScoping {
		c.CloudSearch.RequireNativeTenantScoping = true
	}
	if other.CloudSearch.Timeout != 0 {
		c.CloudSearch.Timeout = other.CloudSearch.Timeout
	}

	// Embeddings
	if other.Embeddings.Host != "" {
		c.Embeddings.Host = other.Embeddings.Host
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}

	// Search
	if other.Search.CloudSearchWeight != 0 {
		c.Search.CloudSearchWeight = other.Search.CloudSearchWeight
	}
	if other.Search.GraphWeight != 0 {
		c.Search.GraphWeight = other.Search.GraphWeight
	}
	if other.Search.VectorWeight != 0 {
		c.Search.VectorWeight = other.Search.VectorWeight
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.Timeout != 0 {
		c.Search.Timeout = other.Search.Timeout
	}

	// Ingest
	if other.Ingest.Mode != "" {
		c.Ingest.Mode = other.Ingest.Mode
	}
	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}

	// Limits
	if other.Limits.MaxConcurrentIngest != 0 {
		c.Limits.MaxConcurrentIngest = other.Limits.MaxConcurrentIngest
	}
	if other.Limits.QueryRate != 0 {
		c.Limits.QueryRate = other.Limits.QueryRate
	}
	if other.Limits.QueryBurst != 0 {
		c.Limits.QueryBurst = other.Limits.QueryBurst
	}

	// Retry
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.InitialDelay != 0 {
		c.Retry.InitialDelay = other.Retry.InitialDelay
	}
	if other.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = other.Retry.MaxDelay
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies PARALLAX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARALLAX_CATALOG_HOST"); v != "" {
		c.Catalog.Host = v
	}
	if v := os.Getenv("PARALLAX_CATALOG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Catalog.Port = p
		}
	}
	if v := os.Getenv("PARALLAX_CATALOG_USER"); v != "" {
		c.Catalog.User = v
	}
	if v := os.Getenv("PARALLAX_CATALOG_PASSWORD"); v != "" {
		c.Catalog.Password = v
	}
	if v := os.Getenv("PARALLAX_CATALOG_DATABASE"); v != "" {
		c.Catalog.Database = v
	}
	if v := os.Getenv("PARALLAX_CLOUDSEARCH_URL"); v != "" {
		c.CloudSearch.BaseURL = v
	}
	if v := os.Getenv("PARALLAX_CLOUDSEARCH_API_KEY"); v != "" {
		c.CloudSearch.APIKey = v
	}
	if v := os.Getenv("PARALLAX_CLOUDSEARCH_CONNECTOR_ID"); v != "" {
		c.CloudSearch.ConnectorID = v
	}
	if v := os.Getenv("PARALLAX_EMBEDDINGS_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("PARALLAX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("PARALLAX_INGEST_MODE"); v != "" {
		c.Ingest.Mode = v
	}
	if v := os.Getenv("PARALLAX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PARALLAX_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Weights support explicit zero values via env vars
	if v := os.Getenv("PARALLAX_CLOUDSEARCH_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Search.CloudSearchWeight = w
		}
	}
	if v := os.Getenv("PARALLAX_GRAPH_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Search.GraphWeight = w
		}
	}
	if v := os.Getenv("PARALLAX_VECTOR_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 {
			c.Search.VectorWeight = w
		}
	}
}

// Validate checks the final configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Ingest.Mode {
	case "existing", "new", "skip":
	default:
		return fmt.Errorf("ingest.mode must be existing, new, or skip, got %q", c.Ingest.Mode)
	}

	if c.Search.CloudSearchWeight < 0 || c.Search.GraphWeight < 0 || c.Search.VectorWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	if c.Search.CloudSearchWeight+c.Search.GraphWeight+c.Search.VectorWeight == 0 {
		return fmt.Errorf("at least one search weight must be positive")
	}

	if c.Ingest.Mode == "existing" && c.CloudSearch.BaseURL != "" && c.CloudSearch.ConnectorID == "" {
		return fmt.Errorf("ingest.mode existing requires cloudsearch.connector_id")
	}

	if c.Catalog.EmbeddingDim <= 0 {
		return fmt.Errorf("catalog.embedding_dim must be positive")
	}
	if c.Embeddings.Dimensions != 0 && c.Embeddings.Dimensions != c.Catalog.EmbeddingDim {
		return fmt.Errorf("embeddings.dimensions (%d) must match catalog.embedding_dim (%d)",
			c.Embeddings.Dimensions, c.Catalog.EmbeddingDim)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
