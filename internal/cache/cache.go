// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores fetched web content on disk, one file per URL,
// named by the hex SHA-256 of the URL.
//
// Only successful, non-empty fetches are stored. Entries never expire;
// invalidation is done by deleting files (or Delete).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/kbindex/internal/fsutil"
)

// FileCache is a content-addressed store rooted at Dir.
type FileCache struct {
	Dir string
}

// New returns a FileCache rooted at dir. The directory is created lazily on
// the first Put.
func New(dir string) *FileCache {
	return &FileCache{Dir: dir}
}

// Key returns the cache key for url: the lowercase hex SHA-256 of the URL string.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Path returns the file that holds the entry for url.
func (c *FileCache) Path(url string) string {
	return filepath.Join(c.Dir, Key(url))
}

// Get returns the cached text for url. ok is false when no entry exists.
func (c *FileCache) Get(url string) (text string, ok bool, err error) {
	data, err := os.ReadFile(c.Path(url))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading cache entry: %w", err)
	}
	return string(data), true, nil
}

// Put stores text for url, replacing any existing entry. The write is
// atomic, so concurrent puts of the same key are safe.
func (c *FileCache) Put(url, text string) error {
	if err := fsutil.WriteFileAtomic(c.Path(url), []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for url. A missing entry is not an error.
func (c *FileCache) Delete(url string) error {
	err := os.Remove(c.Path(url))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}
