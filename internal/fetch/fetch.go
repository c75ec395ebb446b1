// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves the text of remote web sources through the
// content-addressed cache.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/pdiddy/kbindex/internal/cache"
	"github.com/pdiddy/kbindex/pkg/types"
)

// Fetcher returns the decoded text of a URL, serving repeat requests from
// the cache. The HTTP client is owned by the caller.
type Fetcher struct {
	client    *http.Client
	cache     *cache.FileCache
	timeout   time.Duration
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

// New creates a Fetcher. Timeout, UserAgent and MaxSourceBytes come from cfg.
func New(client *http.Client, c *cache.FileCache, cfg types.KnowledgeBaseConfig, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    client,
		cache:     c,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxSourceBytes,
		logger:    logger,
	}
}

// Fetch returns the text of url. It never fails: an unreachable, non-2xx,
// oversized or empty source yields "" and a logged warning. Only non-empty
// successes are cached, so failures are retried on the next call.
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	if f.cache != nil {
		text, ok, err := f.cache.Get(url)
		if err != nil {
			f.logger.Warn("kb.cache_read_error", "url", url, "error", err)
		} else if ok {
			f.logger.Debug("kb.cache_hit", "url", url)
			return text
		}
	}

	text, err := f.download(ctx, url)
	if err != nil {
		f.logger.Warn("kb.fetch_error", "url", url, "error", err)
		return ""
	}
	if strings.TrimSpace(text) == "" {
		f.logger.Warn("kb.fetch_empty", "url", url)
		return ""
	}

	if f.cache != nil {
		if err := f.cache.Put(url, text); err != nil {
			f.logger.Warn("kb.cache_write_error", "url", url, "error", err)
		}
	}
	return text
}

// download issues a single GET and returns the lossily decoded body.
func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("body exceeds %d bytes", f.maxBytes)
	}

	return DecodeLossy(data), nil
}

// DecodeLossy decodes data as UTF-8, replacing every invalid sequence with
// U+FFFD. It never fails.
func DecodeLossy(data []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
