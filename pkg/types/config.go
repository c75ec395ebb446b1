// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DiscoveryMode selects the source discovery strategy.
type DiscoveryMode string

const (
	// DiscoveryAllowList combines an explicit links file with a walk of the source root.
	DiscoveryAllowList DiscoveryMode = "allowlist"

	// DiscoveryScan walks the source root and also harvests URLs embedded in file text.
	DiscoveryScan DiscoveryMode = "scan"
)

// Default values applied by DefaultConfig and Normalize.
const (
	DefaultSourcesDir     = "sources"
	DefaultDataDir        = "data"
	DefaultIndexFile      = "index.txt"
	DefaultCacheDirName   = "web_cache"
	DefaultMaxSourceBytes = 2 << 20
	DefaultFetchTimeout   = 20 * time.Second
	DefaultUserAgent      = "kbindex/0.1"
	DefaultAIBaseURL      = "https://api.openai.com/v1"
	DefaultAIModel        = "gpt-4o-mini"
	DefaultAITimeout      = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
	DefaultWatchDebounce  = 2 * time.Second
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single fetch, including reading the body.
	Timeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AIConfig holds settings for the summarization endpoint.
type AIConfig struct {
	// BaseURL is the root of an OpenAI-compatible API (".../v1").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Model is the model identifier sent with every request.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is sent as a Bearer token when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of additional attempts after the first one.
	// Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBaseDelay is the first backoff delay; it doubles on every retry.
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay" mapstructure:"retry_base_delay"`

	// Timeout bounds each individual attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RequestsPerSecond caps the request rate. Zero means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// ProjectContext is an optional system message describing the project.
	ProjectContext string `json:"project_context,omitempty" yaml:"project_context,omitempty" mapstructure:"project_context"`

	// SummarizationPrompt replaces the built-in summarization instruction when set.
	SummarizationPrompt string `json:"summarization_prompt,omitempty" yaml:"summarization_prompt,omitempty" mapstructure:"summarization_prompt"`
}

// KnowledgeBaseConfig holds settings for index building and source resolution.
type KnowledgeBaseConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SourcesDir is the source root. File identifiers are relative to it.
	SourcesDir string `json:"sources_dir" yaml:"sources_dir" mapstructure:"sources_dir"`

	// LinksFile is the optional newline-delimited URL allow-list.
	LinksFile string `json:"links_file,omitempty" yaml:"links_file,omitempty" mapstructure:"links_file"`

	// DataDir holds the build ledger and default artifact locations.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// IndexPath is the index artifact file.
	IndexPath string `json:"index_path" yaml:"index_path" mapstructure:"index_path"`

	// CacheDir is the content-addressed web fetch cache.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// Discovery selects the source discovery strategy.
	Discovery DiscoveryMode `json:"discovery" yaml:"discovery" mapstructure:"discovery"`

	// MaxSourceBytes is the largest fetched body accepted.
	MaxSourceBytes int64 `json:"max_source_bytes" yaml:"max_source_bytes" mapstructure:"max_source_bytes"`

	// WatchDebounce is the quiet period before a watch-triggered rebuild.
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce" mapstructure:"watch_debounce"`
}

// Config groups all settings for one kbindex process.
type Config struct {
	KnowledgeBase KnowledgeBaseConfig `json:"knowledge_base" yaml:",inline" mapstructure:",squash"`
	AI            AIConfig            `json:"ai" yaml:"ai" mapstructure:"ai"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var c Config
	c.AI.MaxRetries = DefaultMaxRetries
	c.Normalize()
	return c
}

// Normalize fills zero-valued fields with defaults. Paths derived from
// DataDir are only filled when left empty.
func (c *Config) Normalize() {
	kb := &c.KnowledgeBase
	if kb.SourcesDir == "" {
		kb.SourcesDir = DefaultSourcesDir
	}
	if kb.DataDir == "" {
		kb.DataDir = DefaultDataDir
	}
	if kb.IndexPath == "" {
		kb.IndexPath = kb.DataDir + "/" + DefaultIndexFile
	}
	if kb.CacheDir == "" {
		kb.CacheDir = kb.DataDir + "/" + DefaultCacheDirName
	}
	if kb.Discovery == "" {
		kb.Discovery = DiscoveryAllowList
	}
	if kb.MaxSourceBytes <= 0 {
		kb.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if kb.Timeout <= 0 {
		kb.Timeout = DefaultFetchTimeout
	}
	if kb.UserAgent == "" {
		kb.UserAgent = DefaultUserAgent
	}
	if kb.WatchDebounce <= 0 {
		kb.WatchDebounce = DefaultWatchDebounce
	}

	ai := &c.AI
	if ai.BaseURL == "" {
		ai.BaseURL = DefaultAIBaseURL
	}
	if ai.Model == "" {
		ai.Model = DefaultAIModel
	}
	if ai.MaxRetries < 0 {
		ai.MaxRetries = 0
	}
	if ai.RetryBaseDelay <= 0 {
		ai.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if ai.Timeout <= 0 {
		ai.Timeout = DefaultAITimeout
	}
	if ai.RequestsPerSecond < 0 {
		ai.RequestsPerSecond = 0
	}
}
