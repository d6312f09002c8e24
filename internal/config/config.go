package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relevant-segments/ragcore/internal/rse"
)

// Config is the complete ragcore configuration: the RSE tuning knobs plus the
// retrieval, embedding, LLM, and server settings around them.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	RSE        RSEConfig        `yaml:"rse" json:"rse"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// RSEConfig holds the segment-extraction parameters. Zero values mean "use the
// default"; Profile selects a named preset applied before individual fields.
type RSEConfig struct {
	// Profile selects a named parameter preset: "" or "default", or
	// "financebench" for the evaluation profile.
	Profile string `yaml:"profile" json:"profile"`

	MaxLength                 int     `yaml:"max_length" json:"max_length"`
	OverallMaxLength          int     `yaml:"overall_max_length" json:"overall_max_length"`
	OverallMaxLengthExtension int     `yaml:"overall_max_length_extension" json:"overall_max_length_extension"`
	MinimumValue              float64 `yaml:"minimum_value" json:"minimum_value"`
	IrrelevantChunkPenalty    float64 `yaml:"irrelevant_chunk_penalty" json:"irrelevant_chunk_penalty"`
	DecayRate                 int     `yaml:"decay_rate" json:"decay_rate"`
	TopKForDocumentSelection  int     `yaml:"top_k_for_document_selection" json:"top_k_for_document_selection"`
}

// SearchConfig configures the hybrid retrieval that produces the ranked
// result lists RSE consumes.
type SearchConfig struct {
	// BM25Weight is the weight for BM25 keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`

	// SemanticWeight is the weight for semantic similarity (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k). Default 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// BM25Backend selects the BM25 index backend: "sqlite" (default,
	// concurrent access via FTS5) or "bleve".
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	// MaxResults is the per-query ranked-list length handed to RSE.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// MaxQueries caps how many search queries one question may fan out to,
	// whether supplied by the caller or generated by the LLM.
	MaxQueries int `yaml:"max_queries" json:"max_queries"`
}

// StoreConfig configures chunk-text and vector persistence.
type StoreConfig struct {
	// DataDir is where the SQLite chunk store, BM25 index, and HNSW vectors
	// live. Default: ".ragcore" under the project root.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// VectorBackend selects the vector store: "hnsw" (in-process, default)
	// or "pgvector" (Postgres).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`

	// PostgresDSN is the connection string for the pgvector backend.
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"`

	// SQLiteCacheMB is the SQLite page-cache size in MB (default: 64).
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static", or "" for auto-detection
	// (Ollama when reachable, static fallback otherwise).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the vector dimension; 0 auto-detects from the embedder.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is how many texts are embedded per request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the embedding LRU cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the optional LLM collaborator used for auto-query
// generation and response synthesis. The RSE core never touches it.
type LLMConfig struct {
	// Provider is "anthropic" or "" to disable LLM features entirely.
	Provider string `yaml:"provider" json:"provider"`

	// Model is the model name passed to the provider.
	Model string `yaml:"model" json:"model"`

	// MaxTokens bounds synthesized responses.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// AutoQuery enables LLM query generation when a caller supplies a single
	// question instead of pre-formed search queries.
	AutoQuery bool `yaml:"auto_query" json:"auto_query"`
}

// CacheConfig configures the optional Redis answer cache in front of the
// query pipeline.
type CacheConfig struct {
	// Enabled turns the Redis cache on. Off by default; the pipeline is fully
	// functional without it.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Addr is the Redis address (host:port).
	Addr string `yaml:"addr" json:"addr"`

	// TTL is the cache entry lifetime, as a duration string ("10m", "1h").
	TTL string `yaml:"ttl" json:"ttl"`
}

// ServerConfig configures the MCP and HTTP serving surfaces.
type ServerConfig struct {
	// Transport is "stdio" (MCP over stdio) or "http" (HTTP API).
	Transport string `yaml:"transport" json:"transport"`

	// Addr is the HTTP listen address when Transport is "http".
	Addr string `yaml:"addr" json:"addr"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	defaults := rse.DefaultRseParams()
	return &Config{
		Version: 1,
		RSE: RSEConfig{
			Profile:                   "",
			MaxLength:                 defaults.MaxLength,
			OverallMaxLength:          defaults.OverallMaxLength,
			OverallMaxLengthExtension: defaults.OverallMaxLengthExtension,
			MinimumValue:              defaults.MinimumValue,
			IrrelevantChunkPenalty:    defaults.IrrelevantChunkPenalty,
			DecayRate:                 defaults.DecayRate,
			TopKForDocumentSelection:  defaults.TopKForDocumentSelection,
		},
		Search: SearchConfig{
			BM25Weight:     0.35,
			SemanticWeight: 0.65,
			// RRF constant k=60 is industry standard (Azure AI Search, OpenSearch)
			RRFConstant: 60,
			BM25Backend: "sqlite",
			MaxResults:  50,
			MaxQueries:  6,
		},
		Store: StoreConfig{
			DataDir:       ".ragcore",
			VectorBackend: "hnsw",
			SQLiteCacheMB: 64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // auto-detect: Ollama when reachable, static fallback
			Model:      "nomic-embed-text",
			Dimensions: 0, // auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "",
			CacheSize:  4096,
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
			AutoQuery: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     "15m",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      "127.0.0.1:8765",
			LogLevel:  "info",
		},
	}
}

// RseParams materializes the RSE section into the core's parameter struct,
// applying the named profile first and explicit fields on top.
func (c *Config) RseParams() rse.RseParams {
	var p rse.RseParams
	switch strings.ToLower(c.RSE.Profile) {
	case "financebench":
		p = rse.FinanceBenchRseParams()
	default:
		p = rse.DefaultRseParams()
	}
	if c.RSE.MaxLength > 0 {
		p.MaxLength = c.RSE.MaxLength
	}
	if c.RSE.OverallMaxLength > 0 {
		p.OverallMaxLength = c.RSE.OverallMaxLength
	}
	if c.RSE.OverallMaxLengthExtension > 0 {
		p.OverallMaxLengthExtension = c.RSE.OverallMaxLengthExtension
	}
	if c.RSE.MinimumValue != 0 {
		p.MinimumValue = c.RSE.MinimumValue
	}
	if c.RSE.IrrelevantChunkPenalty != 0 {
		p.IrrelevantChunkPenalty = c.RSE.IrrelevantChunkPenalty
	}
	if c.RSE.DecayRate > 0 {
		p.DecayRate = c.RSE.DecayRate
	}
	if c.RSE.TopKForDocumentSelection > 0 {
		p.TopKForDocumentSelection = c.RSE.TopKForDocumentSelection
	}
	return p
}

// FinanceBenchProfile returns a Config whose RSE section carries the
// FinanceBench evaluation preset.
func FinanceBenchProfile() *Config {
	cfg := NewConfig()
	cfg.RSE.Profile = "financebench"
	p := rse.FinanceBenchRseParams()
	cfg.RSE.MaxLength = p.MaxLength
	cfg.RSE.OverallMaxLength = p.OverallMaxLength
	cfg.RSE.OverallMaxLengthExtension = p.OverallMaxLengthExtension
	cfg.RSE.MinimumValue = p.MinimumValue
	cfg.RSE.IrrelevantChunkPenalty = p.IrrelevantChunkPenalty
	return cfg
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory convention:
//   - $XDG_CONFIG_HOME/ragcore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragcore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragcore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragcore", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragcore", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the given project directory, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/ragcore/config.yaml)
//  3. Project config (.ragcore.yaml in the project root)
//  4. Environment variables (RAGCORE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
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

// loadFromFile attempts to load configuration from .ragcore.yaml or .ragcore.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".ragcore.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".ragcore.yml")
	if _, err := os.Stat(ymlPath); err == nil {
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

	// RSE
	if other.RSE.Profile != "" {
		c.RSE.Profile = other.RSE.Profile
	}
	if other.RSE.MaxLength != 0 {
		c.RSE.MaxLength = other.RSE.MaxLength
	}
	if other.RSE.OverallMaxLength != 0 {
		c.RSE.OverallMaxLength = other.RSE.OverallMaxLength
	}
	if other.RSE.OverallMaxLengthExtension != 0 {
		c.RSE.OverallMaxLengthExtension = other.RSE.OverallMaxLengthExtension
	}
	if other.RSE.MinimumValue != 0 {
		c.RSE.MinimumValue = other.RSE.MinimumValue
	}
	if other.RSE.IrrelevantChunkPenalty != 0 {
		c.RSE.IrrelevantChunkPenalty = other.RSE.IrrelevantChunkPenalty
	}
	if other.RSE.DecayRate != 0 {
		c.RSE.DecayRate = other.RSE.DecayRate
	}
	if other.RSE.TopKForDocumentSelection != 0 {
		c.RSE.TopKForDocumentSelection = other.RSE.TopKForDocumentSelection
	}

	// Search
	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.MaxQueries != 0 {
		c.Search.MaxQueries = other.Search.MaxQueries
	}

	// Store
	if other.Store.DataDir != "" {
		c.Store.DataDir = other.Store.DataDir
	}
	if other.Store.VectorBackend != "" {
		c.Store.VectorBackend = other.Store.VectorBackend
	}
	if other.Store.PostgresDSN != "" {
		c.Store.PostgresDSN = other.Store.PostgresDSN
	}
	if other.Store.SQLiteCacheMB != 0 {
		c.Store.SQLiteCacheMB = other.Store.SQLiteCacheMB
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// LLM
	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}
	if other.LLM.AutoQuery {
		c.LLM.AutoQuery = true
	}

	// Cache
	if other.Cache.Enabled {
		c.Cache.Enabled = true
	}
	if other.Cache.Addr != "" {
		c.Cache.Addr = other.Cache.Addr
	}
	if other.Cache.TTL != "" {
		c.Cache.TTL = other.Cache.TTL
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies RAGCORE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGCORE_BM25_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("RAGCORE_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("RAGCORE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}

	if v := os.Getenv("RAGCORE_RSE_PROFILE"); v != "" {
		c.RSE.Profile = v
	}
	if v := os.Getenv("RAGCORE_RSE_MINIMUM_VALUE"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.RSE.MinimumValue = f
		}
	}
	if v := os.Getenv("RAGCORE_RSE_PENALTY"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			c.RSE.IrrelevantChunkPenalty = f
		}
	}

	if v := os.Getenv("RAGCORE_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RAGCORE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGCORE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}

	if v := os.Getenv("RAGCORE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("RAGCORE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv("RAGCORE_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("RAGCORE_REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}

	if v := os.Getenv("RAGCORE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RAGCORE_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// FindProjectRoot finds the project root directory by walking up from
// startDir looking for a .git directory or a .ragcore.yaml/.yml file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".ragcore.yaml")) ||
			fileExists(filepath.Join(currentDir, ".ragcore.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	// Search weights
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	sum := c.Search.BM25Weight + c.Search.SemanticWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("bm25_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxQueries < 1 {
		return fmt.Errorf("max_queries must be at least 1, got %d", c.Search.MaxQueries)
	}
	switch strings.ToLower(c.Search.BM25Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("search.bm25_backend must be 'sqlite' or 'bleve', got %s", c.Search.BM25Backend)
	}

	// RSE parameters are validated by the core itself; surface the same
	// boundary check here so a bad config file fails at load time.
	if err := c.RseParams().Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.RSE.Profile) {
	case "", "default", "financebench":
	default:
		return fmt.Errorf("rse.profile must be 'default' or 'financebench', got %s", c.RSE.Profile)
	}

	// Store
	switch strings.ToLower(c.Store.VectorBackend) {
	case "hnsw":
	case "pgvector":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required when vector_backend is 'pgvector'")
		}
	default:
		return fmt.Errorf("store.vector_backend must be 'hnsw' or 'pgvector', got %s", c.Store.VectorBackend)
	}

	// Embeddings provider (empty string allowed for auto-detection)
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	// LLM provider (empty disables LLM features)
	if c.LLM.Provider != "" && strings.ToLower(c.LLM.Provider) != "anthropic" {
		return fmt.Errorf("llm.provider must be 'anthropic' or empty, got %s", c.LLM.Provider)
	}

	// Server
	validTransports := map[string]bool{"stdio": true, "http": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'http', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns the field names that were added, for upgrade reporting.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Search.MaxQueries == 0 {
		c.Search.MaxQueries = defaults.Search.MaxQueries
		added = append(added, "search.max_queries")
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = defaults.Search.MaxResults
		added = append(added, "search.max_results")
	}
	if c.Embeddings.CacheSize == 0 {
		c.Embeddings.CacheSize = defaults.Embeddings.CacheSize
		added = append(added, "embeddings.cache_size")
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaults.LLM.MaxTokens
		added = append(added, "llm.max_tokens")
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = defaults.Cache.TTL
		added = append(added, "cache.ttl")
	}
	if c.Store.SQLiteCacheMB == 0 {
		c.Store.SQLiteCacheMB = defaults.Store.SQLiteCacheMB
		added = append(added, "store.sqlite_cache_mb")
	}

	return added
}
