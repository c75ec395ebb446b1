// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover enumerates the file and URL sources that make up the
// knowledge base. Two strategies share the Enumerator interface: AllowList
// reads URLs from a links file, Scan also harvests URLs embedded in files.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/kbindex/pkg/types"
)

// Enumerator produces the deduplicated source set for one build.
type Enumerator interface {
	Enumerate(ctx context.Context) (types.SourceSet, error)
}

// New returns the Enumerator for mode.
func New(mode types.DiscoveryMode, root, linksFile string, logger *slog.Logger) (Enumerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch mode {
	case types.DiscoveryAllowList, "":
		return &AllowList{Root: root, LinksFile: linksFile, Logger: logger}, nil
	case types.DiscoveryScan:
		return &Scan{Root: root, LinksFile: linksFile, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown discovery mode %q: use %s or %s", mode, types.DiscoveryAllowList, types.DiscoveryScan)
	}
}

// AllowList combines the URLs listed in LinksFile with every text file under Root.
type AllowList struct {
	Root      string
	LinksFile string
	Logger    *slog.Logger
}

// Enumerate implements Enumerator.
func (a *AllowList) Enumerate(ctx context.Context) (types.SourceSet, error) {
	b := newSetBuilder()
	for _, u := range readLinksFile(a.LinksFile, a.Logger) {
		b.addURL(u)
	}
	err := walkText(ctx, a.Root, a.Logger, func(rel, _ string) {
		b.addFile(rel)
	})
	if err != nil {
		return types.SourceSet{}, err
	}
	set := b.build()
	a.Logger.Info("kb.sources_found", "files", len(set.Files), "urls", len(set.URLs))
	return set, nil
}

// Scan walks Root like AllowList and additionally adds every URL found in
// the text of those files. URLs from LinksFile, when set, are merged in.
type Scan struct {
	Root      string
	LinksFile string
	Logger    *slog.Logger
}

// Enumerate implements Enumerator.
func (s *Scan) Enumerate(ctx context.Context) (types.SourceSet, error) {
	b := newSetBuilder()
	for _, u := range readLinksFile(s.LinksFile, s.Logger) {
		b.addURL(u)
	}
	err := walkText(ctx, s.Root, s.Logger, func(rel, text string) {
		b.addFile(rel)
		for _, u := range ExtractURLs(text) {
			b.addURL(u)
		}
	})
	if err != nil {
		return types.SourceSet{}, err
	}
	set := b.build()
	s.Logger.Info("kb.sources_found", "files", len(set.Files), "urls", len(set.URLs))
	return set, nil
}

// urlPattern is deliberately permissive; trailing punctuation is trimmed afterwards.
var urlPattern = regexp.MustCompile(`https?://(?:[-\w.]|(?:%[\da-fA-F]{2}))+[^\s]*`)

// urlTrailing are characters stripped from the end of a matched URL.
const urlTrailing = `.,;)"'`

// ExtractURLs returns the URLs embedded in text, in order of appearance,
// with trailing punctuation and quotes removed.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		u := strings.TrimRight(m, urlTrailing)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// ParseLinks returns the URLs in a links file body, skipping blank lines
// and lines starting with '#'. Lines have no length limit.
func ParseLinks(data []byte) []string {
	var urls []string
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// readLinksFile loads the allow-list. A missing or unreadable file yields
// no URLs; only the latter is logged.
func readLinksFile(path string, logger *slog.Logger) []string {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("kb.links_file_read_error", "path", path, "error", err)
		}
		return nil
	}
	urls := ParseLinks(data)
	logger.Info("kb.links_file_loaded", "path", path, "count", len(urls))
	return urls
}

// walkText visits every regular, non-hidden, valid UTF-8 file under root.
// rel is the forward-slash path relative to root. A symlinked root is
// followed; links below it are not. Hidden directories are not descended
// into; undecodable files are skipped with a warning.
func walkText(ctx context.Context, root string, logger *slog.Logger, visit func(rel, text string)) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == resolved {
				return err
			}
			logger.Warn("kb.walk_error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path != resolved && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("kb.file_read_error", "path", path, "error", err)
			return nil
		}
		if !utf8.Valid(data) {
			logger.Warn("kb.file_decode_error", "path", path)
			return nil
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		visit(filepath.ToSlash(rel), string(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}

// setBuilder deduplicates sources by identity key.
type setBuilder struct {
	files map[string]struct{}
	urls  map[string]struct{}
}

func newSetBuilder() *setBuilder {
	return &setBuilder{files: map[string]struct{}{}, urls: map[string]struct{}{}}
}

func (b *setBuilder) addFile(rel string) { b.files[rel] = struct{}{} }
func (b *setBuilder) addURL(u string)    { b.urls[u] = struct{}{} }

func (b *setBuilder) build() types.SourceSet {
	return types.SourceSet{Files: sortedKeys(b.files), URLs: sortedKeys(b.urls)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
