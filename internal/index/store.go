// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index builds the knowledge-base index and reads it back.
//
// The artifact is plain UTF-8: each entry is the source identifier on its
// own line followed by the description, and entries are separated by one
// blank line. A description that itself contains a blank line cannot be
// read back as a single entry.
package index

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdiddy/kbindex/internal/fsutil"
	"github.com/pdiddy/kbindex/pkg/types"
)

const entrySeparator = "\n\n"

// Store reads and writes the index artifact at Path.
type Store struct {
	Path string
}

// NewStore returns a Store for the artifact at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// LoadText returns the raw artifact. A missing file is an empty index.
func (s *Store) LoadText() (string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index %s: %w", s.Path, err)
	}
	return string(data), nil
}

// LoadEntries parses the artifact into entries.
func (s *Store) LoadEntries() ([]types.IndexEntry, error) {
	text, err := s.LoadText()
	if err != nil {
		return nil, err
	}
	return ParseEntries(text), nil
}

// WriteText replaces the artifact atomically.
func (s *Store) WriteText(text string) error {
	if err := fsutil.WriteFileAtomic(s.Path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing index %s: %w", s.Path, err)
	}
	return nil
}

// ParseEntries splits artifact text into entries. Within each block the
// first line is the source identifier and the remaining lines form the
// description. Blank blocks are ignored.
func ParseEntries(text string) []types.IndexEntry {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var entries []types.IndexEntry
	for _, block := range strings.Split(text, entrySeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		id, rest, _ := strings.Cut(block, "\n")
		entries = append(entries, types.IndexEntry{
			SourceID:    strings.TrimSpace(id),
			Description: strings.TrimSpace(rest),
		})
	}
	return entries
}

// FormatEntries renders entries in artifact form. No trailing newline is
// added; an empty slice renders as "".
func FormatEntries(entries []types.IndexEntry) string {
	blocks := make([]string, len(entries))
	for i, e := range entries {
		blocks[i] = formatEntry(e.SourceID, e.Description)
	}
	return strings.Join(blocks, entrySeparator)
}

func formatEntry(id, description string) string {
	return id + "\n" + description
}

// collapseBlankLines drops blank and whitespace-only lines from a
// description, which would otherwise end its entry early. It reports
// whether anything was removed.
func collapseBlankLines(description string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(description, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), len(kept) != len(lines)
}
