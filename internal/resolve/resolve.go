// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve maps an index source identifier back to its full text.
// File identifiers are confined to the source root: any path that would
// leave it, lexically or through a symlink, is rejected before reading.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/kbindex/pkg/types"
)

// Fetcher returns the text of a remote source, or "" when it is unavailable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Resolver resolves identifiers against Root and, for URLs, Fetcher.
type Resolver struct {
	Root    string
	Fetcher Fetcher
	Logger  *slog.Logger
}

// New returns a Resolver for the source root.
func New(root string, fetcher Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Root: root, Fetcher: fetcher, Logger: logger}
}

// Resolve returns the full content behind sourceID.
//
// Errors: types.ErrNotFound for a missing file or an unavailable URL,
// types.ErrOutOfBounds for a path outside the root, types.ErrInvalid for a
// file that is not UTF-8 text or is blank.
func (r *Resolver) Resolve(ctx context.Context, sourceID string) (types.SourceContent, error) {
	if err := ctx.Err(); err != nil {
		return types.SourceContent{}, err
	}

	id := strings.TrimSpace(sourceID)
	if types.IsURL(id) {
		return r.resolveURL(ctx, id)
	}

	path, err := r.locate(id)
	if err != nil {
		r.Logger.Warn("kb.resolve_rejected", "source_id", sourceID, "error", err)
		return types.SourceContent{}, err
	}

	text, err := readText(path)
	if err != nil {
		return types.SourceContent{}, fmt.Errorf("resolving %s: %w", sourceID, err)
	}
	return types.SourceContent{SourceID: sourceID, Text: text}, nil
}

func (r *Resolver) resolveURL(ctx context.Context, url string) (types.SourceContent, error) {
	if r.Fetcher == nil {
		return types.SourceContent{}, fmt.Errorf("resolving %s: no fetcher configured: %w", url, types.ErrNotFound)
	}
	text := r.Fetcher.Fetch(ctx, url)
	if text == "" {
		return types.SourceContent{}, fmt.Errorf("resolving %s: %w", url, types.ErrNotFound)
	}
	return types.SourceContent{SourceID: url, Text: text}, nil
}

// locate returns the symlink-free path for id after confirming it stays
// inside the root.
func (r *Resolver) locate(id string) (string, error) {
	absRoot, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("resolving source root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("source root %s: %w", r.Root, types.ErrNotFound)
		}
		return "", fmt.Errorf("resolving source root: %w", err)
	}

	var candidate string
	if filepath.IsAbs(id) {
		candidate = filepath.Clean(id)
		if !within(absRoot, candidate) && !within(realRoot, candidate) {
			return "", fmt.Errorf("%s: %w", id, types.ErrOutOfBounds)
		}
	} else {
		rel := normalize(id, r.Root)
		candidate = filepath.Join(absRoot, filepath.FromSlash(rel))
		if !within(absRoot, candidate) {
			return "", fmt.Errorf("%s: %w", id, types.ErrOutOfBounds)
		}
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", id, types.ErrNotFound)
		}
		return "", fmt.Errorf("resolving %s: %w", id, err)
	}
	if !within(realRoot, resolved) {
		return "", fmt.Errorf("%s: %w", id, types.ErrOutOfBounds)
	}
	return resolved, nil
}

// normalize turns id into a slash-separated path relative to root. The
// root's own name is stripped once when id repeats it, so "sources/a.txt"
// and "a.txt" name the same file under root "sources".
func normalize(id, root string) string {
	id = strings.ReplaceAll(id, `\`, "/")
	id = strings.TrimLeft(id, "/")

	prefix := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(root)), "./")
	if prefix != "" && prefix != "." && strings.HasPrefix(id, prefix+"/") {
		id = strings.TrimPrefix(id, prefix+"/")
	}
	return id
}

// within reports whether path is root or a descendant of it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func readText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.ErrNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", path, types.ErrNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.ErrNotFound
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("decoding %s: %w", path, types.ErrInvalid)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%s is empty: %w", path, types.ErrInvalid)
	}
	return string(data), nil
}
