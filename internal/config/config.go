package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// ProjectConfigName is the project-level configuration file.
const ProjectConfigName = ".docrag.yaml"

// DefaultAzureAPIVersion is the Azure OpenAI REST API version used when
// embeddings.azure_api_version is not set.
const DefaultAzureAPIVersion = "2024-12-01-preview"

// Config is the complete docrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures how extracted text is split.
type ChunkingConfig struct {
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	Separator    string `yaml:"separator" json:"separator"`
}

// EmbeddingsConfig configures the embedding provider and the adapter around it.
type EmbeddingsConfig struct {
	// Provider is one of azure, openai, ollama, static. Empty or "auto" detects.
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"` // 0 = unlimited
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	BreakerFailures   int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerReset      time.Duration `yaml:"breaker_reset" json:"breaker_reset"`
	QueryCacheSize    int           `yaml:"query_cache_size" json:"query_cache_size"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	AzureEndpoint   string `yaml:"azure_endpoint" json:"azure_endpoint"`
	AzureAPIKey     string `yaml:"azure_api_key" json:"-"`
	AzureAPIVersion string `yaml:"azure_api_version" json:"azure_api_version"`
	AzureDeployment string `yaml:"azure_deployment" json:"azure_deployment"`
	OpenAIAPIKey    string `yaml:"openai_api_key" json:"-"`
	OpenAIBaseURL   string `yaml:"openai_base_url" json:"openai_base_url"`
}

// IndexConfig configures vector index selection.
type IndexConfig struct {
	Kind             string `yaml:"kind" json:"kind"` // auto, flat, ivf, graph
	FlatThreshold    int    `yaml:"flat_threshold" json:"flat_threshold"`
	MaxClusters      int    `yaml:"max_clusters" json:"max_clusters"`
	MaxProbes        int    `yaml:"max_probes" json:"max_probes"`
	KMeansIterations int    `yaml:"kmeans_iterations" json:"kmeans_iterations"`
	Seed             int64  `yaml:"seed" json:"seed"`
	GraphM           int    `yaml:"graph_m" json:"graph_m"`
	GraphEfSearch    int    `yaml:"graph_ef_search" json:"graph_ef_search"`
}

// CacheConfig configures the on-disk bundle cache and the catalog.
type CacheConfig struct {
	Dir           string `yaml:"dir" json:"dir"`
	CatalogPath   string `yaml:"catalog_path" json:"catalog_path"`
	MemoryBundles int    `yaml:"memory_bundles" json:"memory_bundles"`
	ArchiveDir    string `yaml:"archive_dir" json:"archive_dir"`
}

// RetrievalConfig configures query defaults.
type RetrievalConfig struct {
	TopK            int  `yaml:"top_k" json:"top_k"`
	ExcludeDegraded bool `yaml:"exclude_degraded" json:"exclude_degraded"`
}

// WatchConfig configures the drop-directory watcher.
type WatchConfig struct {
	Dir        string        `yaml:"dir" json:"dir"`
	Debounce   time.Duration `yaml:"debounce" json:"debounce"`
	Extensions []string      `yaml:"extensions" json:"extensions"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"` // empty = ~/.docrag/logs/docrag.log
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			Separator:    "\n",
		},
		Embeddings: EmbeddingsConfig{
			Provider:        "",
			Dimensions:      1536,
			BatchSize:       32,
			Concurrency:     4,
			MaxRetries:      2,
			RetryDelay:      500 * time.Millisecond,
			Timeout:         60 * time.Second,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
			QueryCacheSize:  1000,
			AzureAPIVersion: DefaultAzureAPIVersion,
			AzureDeployment: "text-embedding-ada-002",
		},
		Index: IndexConfig{
			Kind:             "auto",
			FlatThreshold:    100,
			MaxClusters:      100,
			MaxProbes:        10,
			KMeansIterations: 25,
			Seed:             1234,
			GraphM:           16,
			GraphEfSearch:    64,
		},
		Cache: CacheConfig{
			Dir:           filepath.Join(".docrag", "embeddings"),
			CatalogPath:   filepath.Join(".docrag", "catalog.db"),
			MemoryBundles: 16,
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Watch: WatchConfig{
			Dir:        filepath.Join(".docrag", "raw"),
			Debounce:   500 * time.Millisecond,
			Extensions: []string{".pdf", ".txt", ".md"},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user-level config path, honouring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/docrag/config.yaml)
//  3. Project config (.docrag.yaml or .docrag.yml in dir)
//  4. Environment variables, with dir/.env filling in unset ones
//
// Relative paths are resolved against dir and the result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(envLookup(dotenv))

	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads .docrag.yaml, falling back to .docrag.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".docrag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path over the current values; keys absent from the file
// keep whatever the lower-precedence layers set.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return docerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// readDotEnv reads a .env file without touching the process environment.
func readDotEnv(path string) (map[string]string, error) {
	if !fileExists(path) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, docerrors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return values, nil
}

// envLookup prefers the real environment over .env values.
func envLookup(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

// applyEnvOverrides applies DOCRAG_* variables and the standard provider credentials.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	setString(&c.Embeddings.Provider, "DOCRAG_EMBEDDINGS_PROVIDER")
	setString(&c.Embeddings.Model, "DOCRAG_EMBEDDINGS_MODEL")
	setInt(&c.Embeddings.Dimensions, "DOCRAG_EMBEDDINGS_DIMENSIONS")
	setInt(&c.Embeddings.BatchSize, "DOCRAG_EMBEDDINGS_BATCH_SIZE")
	setString(&c.Embeddings.OllamaHost, "OLLAMA_HOST", "DOCRAG_OLLAMA_HOST")
	if v := getenv("DOCRAG_EMBEDDINGS_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 {
			c.Embeddings.RequestsPerSecond = f
		}
	}

	setString(&c.Embeddings.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	setString(&c.Embeddings.AzureAPIKey, "AZURE_OPENAI_API_KEY")
	setString(&c.Embeddings.AzureAPIVersion, "AZURE_OPENAI_API_VERSION")
	setString(&c.Embeddings.AzureDeployment, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	setString(&c.Embeddings.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Embeddings.OpenAIBaseURL, "OPENAI_BASE_URL")

	setInt(&c.Chunking.ChunkSize, "DOCRAG_CHUNK_SIZE")
	setInt(&c.Chunking.ChunkOverlap, "DOCRAG_CHUNK_OVERLAP")
	setString(&c.Index.Kind, "DOCRAG_INDEX_KIND")
	setString(&c.Cache.Dir, "DOCRAG_CACHE_DIR")
	setInt(&c.Retrieval.TopK, "DOCRAG_TOP_K")
	if v := getenv("DOCRAG_EXCLUDE_DEGRADED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Retrieval.ExcludeDegraded = b
		}
	}
	setString(&c.Logging.Level, "DOCRAG_LOG_LEVEL")
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Cache.Dir, &c.Cache.CatalogPath, &c.Cache.ArchiveDir, &c.Watch.Dir} {
		if *p == "" || *p == ":memory:" || filepath.IsAbs(*p) {
			continue
		}
		*p = filepath.Join(dir, *p)
	}
}

// Validate rejects configurations that would fail later at runtime.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return docerrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	ch := c.Chunking
	if ch.ChunkSize <= 0 {
		return invalid("chunking.chunk_size must be positive, got %d", ch.ChunkSize)
	}
	if ch.ChunkOverlap < 0 {
		return invalid("chunking.chunk_overlap must be non-negative, got %d", ch.ChunkOverlap)
	}
	if ch.ChunkOverlap >= ch.ChunkSize {
		return invalid("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)", ch.ChunkOverlap, ch.ChunkSize)
	}

	e := c.Embeddings
	switch strings.ToLower(e.Provider) {
	case "", "auto", "azure", "openai", "ollama", "static":
	default:
		return invalid("embeddings.provider must be azure, openai, ollama, static or empty (auto-detect), got %s", e.Provider)
	}
	if e.Dimensions < 0 {
		return invalid("embeddings.dimensions must be non-negative, got %d", e.Dimensions)
	}
	if e.BatchSize <= 0 {
		return invalid("embeddings.batch_size must be positive, got %d", e.BatchSize)
	}
	if e.Concurrency <= 0 {
		return invalid("embeddings.concurrency must be positive, got %d", e.Concurrency)
	}
	if e.RequestsPerSecond < 0 {
		return invalid("embeddings.requests_per_second must be non-negative, got %g", e.RequestsPerSecond)
	}
	if e.MaxRetries < 0 {
		return invalid("embeddings.max_retries must be non-negative, got %d", e.MaxRetries)
	}

	switch strings.ToLower(c.Index.Kind) {
	case "auto", "flat", "ivf", "graph":
	default:
		return invalid("index.kind must be auto, flat, ivf or graph, got %s", c.Index.Kind)
	}
	if c.Index.FlatThreshold < 0 || c.Index.MaxClusters <= 0 || c.Index.MaxProbes <= 0 {
		return invalid("index thresholds must be positive")
	}

	if c.Retrieval.TopK < 0 {
		return invalid("retrieval.top_k must be non-negative, got %d", c.Retrieval.TopK)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level must be debug, info, warn or error, got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with API keys masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Watch.Extensions = append([]string(nil), c.Watch.Extensions...)
	if out.Embeddings.AzureAPIKey != "" {
		out.Embeddings.AzureAPIKey = "***"
	}
	if out.Embeddings.OpenAIAPIKey != "" {
		out.Embeddings.OpenAIAPIKey = "***"
	}
	return &out
}

// FindProjectRoot walks up from startDir looking for .git or a docrag config
// file. It returns the absolute startDir when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigName)) ||
			fileExists(filepath.Join(currentDir, ".docrag.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
