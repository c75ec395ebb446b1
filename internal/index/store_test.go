// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbindex/pkg/types"
)

func TestParseEntries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []types.IndexEntry
	}{
		{"empty", "", nil},
		{"whitespace", "  \n\n \n", nil},
		{
			"two entries",
			"notes/a.txt\nGreeting.\n\nhttps://example.com/doc\nDoc.",
			[]types.IndexEntry{
				{SourceID: "notes/a.txt", Description: "Greeting."},
				{SourceID: "https://example.com/doc", Description: "Doc."},
			},
		},
		{
			"multi-line description and padding",
			"\n  a.md  \n line one\nline two \n\n\n\nb.md\nB.\n",
			[]types.IndexEntry{
				{SourceID: "a.md", Description: "line one\nline two"},
				{SourceID: "b.md", Description: "B."},
			},
		},
		{"identifier only", "lonely.txt", []types.IndexEntry{{SourceID: "lonely.txt"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEntries(tt.text))
		})
	}
}

func TestFormatEntries(t *testing.T) {
	assert.Equal(t, "", FormatEntries(nil))
	assert.Equal(t, "notes/a.txt\nGreeting.\n\nhttps://example.com/doc\nDoc.", FormatEntries([]types.IndexEntry{
		{SourceID: "notes/a.txt", Description: "Greeting."},
		{SourceID: "https://example.com/doc", Description: "Doc."},
	}))
}

func TestFormatParseRoundTrip(t *testing.T) {
	entries := []types.IndexEntry{
		{SourceID: "a.txt", Description: "First file."},
		{SourceID: "dir/b.md", Description: "Spans\ntwo lines."},
		{SourceID: "https://example.com/x?y=1", Description: "A page."},
	}
	assert.Equal(t, entries, ParseEntries(FormatEntries(entries)))
}

func TestParseEntries_BlankLineInDescriptionSplits(t *testing.T) {
	text := FormatEntries([]types.IndexEntry{{SourceID: "a.txt", Description: "para one\n\npara two"}})
	got := ParseEntries(text)
	require.Len(t, got, 2)
	assert.Equal(t, "para two", got[1].SourceID)
}

func TestStore_LoadTextMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.txt"))

	text, err := s.LoadText()
	require.NoError(t, err)
	assert.Empty(t, text)

	entries, err := s.LoadEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_WriteTextCreatesParentsAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "index.txt")
	s := NewStore(path)

	require.NoError(t, s.WriteText("old\nOld."))
	require.NoError(t, s.WriteText("new\nNew."))

	text, err := s.LoadText()
	require.NoError(t, err)
	assert.Equal(t, "new\nNew.", text)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".index.txt.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStore_LoadTextUnreadable(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	_, err := s.LoadText()
	assert.Error(t, err, "a directory is not a readable index")
}

func writeIndex(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.txt")
	require.NoError(t, os.WriteFile(path, []byte("notes/a.txt\nGreeting.\n\nhttps://example.com/doc\nDoc."), 0o644))
	return NewStore(path)
}

func TestStore_ExportJSON(t *testing.T) {
	s := writeIndex(t)

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(&buf))

	var got []ExportEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []ExportEntry{
		{SourceID: "notes/a.txt", Kind: types.SourceFile, Description: "Greeting."},
		{SourceID: "https://example.com/doc", Kind: types.SourceURL, Description: "Doc."},
	}, got)
}

func TestStore_ExportYAML(t *testing.T) {
	s := writeIndex(t)

	var buf bytes.Buffer
	require.NoError(t, s.ExportYAML(&buf))
	assert.Contains(t, buf.String(), "source_id: notes/a.txt")

	var got []ExportEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, types.SourceURL, got[1].Kind)
	assert.Equal(t, "Doc.", got[1].Description)
}

func TestStore_ExportEmptyIndex(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "index.txt"))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(&buf))
	assert.JSONEq(t, "[]", buf.String())
}

func TestCollapseBlankLines(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{"One line.", "One line.", false},
		{"Line one.\nLine two.", "Line one.\nLine two.", false},
		{"A.\n\nB.", "A.\nB.", true},
		{"A.\n  \n\n\tB.", "A.\n\tB.", true},
		{"A.\r\n\r\nB.", "A.\nB.", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, changed := collapseBlankLines(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}
