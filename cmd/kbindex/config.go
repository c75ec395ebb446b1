// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/kbindex/internal/cache"
	"github.com/pdiddy/kbindex/internal/discover"
	"github.com/pdiddy/kbindex/internal/fetch"
	"github.com/pdiddy/kbindex/internal/index"
	"github.com/pdiddy/kbindex/internal/resolve"
	"github.com/pdiddy/kbindex/internal/secrets"
	"github.com/pdiddy/kbindex/internal/summarize"
	"github.com/pdiddy/kbindex/pkg/types"
)

// setDefaults registers every config key so AutomaticEnv can resolve it.
// Paths derived from data_dir default to empty and are filled by Normalize.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("sources_dir", d.KnowledgeBase.SourcesDir)
	v.SetDefault("links_file", "")
	v.SetDefault("data_dir", d.KnowledgeBase.DataDir)
	v.SetDefault("index_path", "")
	v.SetDefault("cache_dir", "")
	v.SetDefault("discovery", string(d.KnowledgeBase.Discovery))
	v.SetDefault("max_source_bytes", d.KnowledgeBase.MaxSourceBytes)
	v.SetDefault("fetch_timeout", d.KnowledgeBase.Timeout)
	v.SetDefault("user_agent", d.KnowledgeBase.UserAgent)
	v.SetDefault("watch_debounce", d.KnowledgeBase.WatchDebounce)

	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.max_retries", d.AI.MaxRetries)
	v.SetDefault("ai.retry_base_delay", d.AI.RetryBaseDelay)
	v.SetDefault("ai.timeout", d.AI.Timeout)
	v.SetDefault("ai.requests_per_second", d.AI.RequestsPerSecond)
	v.SetDefault("ai.project_context", "")
	v.SetDefault("ai.summarization_prompt", "")
}

// loadConfig decodes v into a normalized Config. The API key falls back to
// the .secrets directory when neither config nor environment sets it.
func loadConfig(v *viper.Viper, secretsDir string, l *slog.Logger) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}

	key, err := secrets.APIKey(cfg.AI.APIKey, secretsDir, l)
	if err != nil {
		return types.Config{}, err
	}
	cfg.AI.APIKey = key

	cfg.Normalize()
	switch cfg.KnowledgeBase.Discovery {
	case types.DiscoveryAllowList, types.DiscoveryScan:
	default:
		return types.Config{}, fmt.Errorf("invalid discovery %q: use %s or %s",
			cfg.KnowledgeBase.Discovery, types.DiscoveryAllowList, types.DiscoveryScan)
	}
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels or formats are errors
// so typos on the command line do not go unnoticed.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q: use text or json", format)
	}
}

// env holds the collaborators shared by commands. The HTTP client lives for
// one command; close releases its idle connections.
type env struct {
	cfg    types.Config
	client *http.Client
	logger *slog.Logger
}

func newEnv() (*env, error) {
	cfg, err := loadConfig(viper.GetViper(), secrets.DefaultDir, logger)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, client: &http.Client{}, logger: logger}, nil
}

func (e *env) close() {
	e.client.CloseIdleConnections()
}

func (e *env) cache() *cache.FileCache {
	return cache.New(e.cfg.KnowledgeBase.CacheDir)
}

func (e *env) fetcher() *fetch.Fetcher {
	return fetch.New(e.client, e.cache(), e.cfg.KnowledgeBase, e.logger)
}

func (e *env) store() *index.Store {
	return index.NewStore(e.cfg.KnowledgeBase.IndexPath)
}

func (e *env) resolver() *resolve.Resolver {
	return resolve.New(e.cfg.KnowledgeBase.SourcesDir, e.fetcher(), e.logger)
}

func (e *env) builder() (*index.Builder, error) {
	kb := e.cfg.KnowledgeBase
	enum, err := discover.New(kb.Discovery, kb.SourcesDir, kb.LinksFile, e.logger)
	if err != nil {
		return nil, err
	}
	summarizer := summarize.New(e.client, e.cfg.AI, e.logger)
	return index.NewBuilder(kb, enum, e.fetcher(), summarizer, e.store(), e.logger), nil
}
