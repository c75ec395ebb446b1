// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/kbindex/internal/discover"
	"github.com/pdiddy/kbindex/pkg/types"
)

// Fetcher returns the text of a remote source, or "" when it is unavailable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Summarizer turns source text into an index description.
type Summarizer interface {
	Summarize(ctx context.Context, sourceID, text string) (string, error)
}

// Builder runs the full pipeline: enumerate, obtain text, summarize, write.
type Builder struct {
	Root       string
	Enumerator discover.Enumerator
	Fetcher    Fetcher
	Summarizer Summarizer
	Store      *Store
	Logger     *slog.Logger

	// Now is replaceable in tests.
	Now func() time.Time
}

// NewBuilder assembles a Builder rooted at cfg.SourcesDir.
func NewBuilder(cfg types.KnowledgeBaseConfig, enum discover.Enumerator, fetcher Fetcher, summarizer Summarizer, store *Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		Root:       cfg.SourcesDir,
		Enumerator: enum,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		Store:      store,
		Logger:     logger,
		Now:        time.Now,
	}
}

// Build rebuilds the whole index. Files are processed before URLs, each
// group in sorted order, one source at a time. A source that cannot be read
// or summarized is recorded and the build moves on. The artifact is written
// once at the end, so a cancelled build leaves the previous one in place.
//
// A missing source root is not an error: the report has RootMissing set and
// nothing is written.
func (b *Builder) Build(ctx context.Context) (*types.BuildReport, error) {
	report := &types.BuildReport{IndexPath: b.Store.Path, StartedAt: b.Now()}
	defer func() { report.FinishedAt = b.Now() }()

	info, err := os.Stat(b.Root)
	if os.IsNotExist(err) {
		b.Logger.Warn("kb.sources_dir_missing", "path", b.Root)
		report.RootMissing = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking source root %s: %w", b.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", b.Root)
	}

	set, err := b.Enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating sources: %w", err)
	}

	sources := set.Sources()
	blocks := make([]string, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			b.Logger.Warn("kb.build_cancelled", "processed", i, "total", len(sources))
			return nil, err
		}
		b.Logger.Info("kb.progress", "current", i+1, "total", len(sources), "source_id", src.ID)

		block, status, reason := b.processSource(ctx, src)
		report.Record(src, status, reason)
		if status == types.StatusIndexed {
			blocks = append(blocks, block)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.Store.WriteText(strings.Join(blocks, entrySeparator)); err != nil {
		return nil, err
	}

	b.Logger.Info("kb.index_written",
		"path", b.Store.Path,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// processSource returns the formatted entry for src and its outcome.
func (b *Builder) processSource(ctx context.Context, src types.Source) (string, types.SourceStatus, string) {
	text, err := b.sourceText(ctx, src)
	if err != nil {
		b.Logger.Warn("kb.source_read_error", "source_id", src.ID, "error", err)
		return "", types.StatusFailed, err.Error()
	}
	if strings.TrimSpace(text) == "" {
		b.Logger.Info("kb.source_empty", "source_id", src.ID)
		return "", types.StatusSkipped, "no content"
	}

	summary, err := b.Summarizer.Summarize(ctx, src.ID, text)
	if err != nil {
		b.Logger.Error("kb.summarize_error", "source_id", src.ID, "error", err)
		return "", types.StatusFailed, err.Error()
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		b.Logger.Info("kb.summary_empty", "source_id", src.ID)
		return "", types.StatusSkipped, "empty summary"
	}
	if collapsed, changed := collapseBlankLines(summary); changed {
		b.Logger.Warn("kb.summary_blank_line", "source_id", src.ID)
		summary = collapsed
	}
	return formatEntry(src.ID, summary), types.StatusIndexed, ""
}

func (b *Builder) sourceText(ctx context.Context, src types.Source) (string, error) {
	if src.Kind == types.SourceURL {
		return b.Fetcher.Fetch(ctx, src.ID), nil
	}

	data, err := os.ReadFile(filepath.Join(b.Root, filepath.FromSlash(src.ID)))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", src.ID, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("decoding %s: %w", src.ID, types.ErrInvalid)
	}
	return string(data), nil
}
