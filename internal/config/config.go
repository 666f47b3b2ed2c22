package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

const (
	defaultBatchPauseMillis = 1000
	defaultEmbedRetries     = 3
	defaultLLMRetries       = 2
)

// EmbedderConfig selects the embedding provider and configures batching.
// BatchPauseMillis and MaxRetries are pointers so an explicit 0 in YAML
// disables them instead of falling back to the default.
type EmbedderConfig struct {
	Type              string                 `yaml:"type"`
	BatchSize         int                    `yaml:"batch_size"`
	BatchPauseMillis  *int                   `yaml:"batch_pause_ms"`
	RequestsPerMinute int                    `yaml:"requests_per_minute"`
	MaxRetries        *int                   `yaml:"max_retries"`
	TimeoutSecs       int                    `yaml:"timeout_secs"`
	OpenAI            *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing           *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

// PauseMillis returns the pause between sub-batches in milliseconds.
func (c EmbedderConfig) PauseMillis() int {
	return intOr(c.BatchPauseMillis, defaultBatchPauseMillis)
}

// Retries returns how often a transient embedding failure is retried.
func (c EmbedderConfig) Retries() int {
	return intOr(c.MaxRetries, defaultEmbedRetries)
}

// ChunkerConfig configures how text is split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	Size              int    `yaml:"size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// StoreConfig selects where chunks are kept.
type StoreConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// CrawlerConfig bounds website crawling.
type CrawlerConfig struct {
	MaxPages      int    `yaml:"max_pages"`
	MaxPagesLimit int    `yaml:"max_pages_limit"`
	Workers       int    `yaml:"workers"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
	MaxBytes      int64  `yaml:"max_bytes"`
	UserAgent     string `yaml:"user_agent"`
	Scope         string `yaml:"scope"`
}

// RetrieverConfig configures ranking.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// OpenAILLMConfig holds configuration for an OpenAI-compatible chat model.
type OpenAILLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  *int    `yaml:"max_retries"`
}

// Retries returns the SDK retry budget for a chat completion.
func (c OpenAILLMConfig) Retries() int {
	return intOr(c.MaxRetries, defaultLLMRetries)
}

// LLMConfig selects the completion provider used to answer questions.
type LLMConfig struct {
	Type         string           `yaml:"type"`
	MaxSentences int              `yaml:"max_sentences"`
	OpenAI       *OpenAILLMConfig `yaml:"openai,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Store     StoreConfig     `yaml:"store"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Retriever RetrieverConfig `yaml:"retriever"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunker.Type == "window" || c.Chunker.Type == "" {
		if c.Chunker.Size <= 0 {
			return fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size)
		}
		if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
			return fmt.Errorf("chunker.overlap must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap)
		}
	}
	if c.Embedder.BatchSize <= 0 {
		return fmt.Errorf("embedder.batch_size must be positive, got %d", c.Embedder.BatchSize)
	}
	if n := c.Embedder.Retries(); n < 0 {
		return fmt.Errorf("embedder.max_retries must not be negative, got %d", n)
	}
	if n := c.Embedder.PauseMillis(); n < 0 {
		return fmt.Errorf("embedder.batch_pause_ms must not be negative, got %d", n)
	}
	if c.LLM.OpenAI != nil && c.LLM.OpenAI.Retries() < 0 {
		return fmt.Errorf("llm.openai.max_retries must not be negative, got %d", c.LLM.OpenAI.Retries())
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be positive, got %d", c.Crawler.Workers)
	}
	switch c.Crawler.Scope {
	case "prefix", "host":
	default:
		return fmt.Errorf("crawler.scope must be prefix or host, got %q", c.Crawler.Scope)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "hashing"},
		Chunker:  ChunkerConfig{Type: "window"},
		Store:    StoreConfig{Type: "file"},
		LLM:      LLMConfig{Type: "extractive"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 20
	}
	if cfg.Embedder.BatchPauseMillis == nil {
		cfg.Embedder.BatchPauseMillis = intPtr(defaultBatchPauseMillis)
	}
	if cfg.Embedder.MaxRetries == nil {
		cfg.Embedder.MaxRetries = intPtr(defaultEmbedRetries)
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "window"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 500
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 100
		}
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "file"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join("data", "chunks.json")
	}

	if cfg.Crawler.MaxPages == 0 {
		cfg.Crawler.MaxPages = 20
	}
	if cfg.Crawler.MaxPagesLimit == 0 {
		cfg.Crawler.MaxPagesLimit = 200
	}
	if cfg.Crawler.Workers == 0 {
		cfg.Crawler.Workers = 1
	}
	if cfg.Crawler.TimeoutSecs == 0 {
		cfg.Crawler.TimeoutSecs = 15
	}
	if cfg.Crawler.MaxBytes == 0 {
		cfg.Crawler.MaxBytes = 5 << 20
	}
	if cfg.Crawler.UserAgent == "" {
		cfg.Crawler.UserAgent = "docrag-crawler/1.0"
	}
	if cfg.Crawler.Scope == "" {
		cfg.Crawler.Scope = "prefix"
	}

	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 5
	}

	if cfg.LLM.Type == "" {
		cfg.LLM.Type = "extractive"
	}
	if cfg.LLM.MaxSentences == 0 {
		cfg.LLM.MaxSentences = 5
	}
	if cfg.LLM.Type == "openai" {
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAILLMConfig{}
		}
		if cfg.LLM.OpenAI.BaseURL == "" {
			cfg.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.OpenAI.APIKeyEnv == "" {
			cfg.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.OpenAI.Model == "" {
			cfg.LLM.OpenAI.Model = "gpt-4o-mini"
		}
		if cfg.LLM.OpenAI.TimeoutSecs == 0 {
			cfg.LLM.OpenAI.TimeoutSecs = 60
		}
		if cfg.LLM.OpenAI.MaxRetries == nil {
			cfg.LLM.OpenAI.MaxRetries = intPtr(defaultLLMRetries)
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func intPtr(v int) *int { return &v }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("DOCRAG_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DOCRAG_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
