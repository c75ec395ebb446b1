// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// SourceKind discriminates file sources from URL sources.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Source is a unit of ingestible content. ID is a forward-slash path
// relative to the source root for files, or the absolute URL for URLs.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`
	ID   string     `json:"id" yaml:"id"`
}

// IsURL reports whether id carries an http or https scheme prefix.
func IsURL(id string) bool {
	return strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://")
}

// SourceSet is the deduplicated output of source discovery. Both slices
// are sorted lexicographically and contain no duplicates.
type SourceSet struct {
	Files []string `json:"files" yaml:"files"`
	URLs  []string `json:"urls" yaml:"urls"`
}

// Len returns the number of sources in the set.
func (s SourceSet) Len() int {
	return len(s.Files) + len(s.URLs)
}

// Sources returns every source in processing order: files first, then URLs.
func (s SourceSet) Sources() []Source {
	out := make([]Source, 0, s.Len())
	for _, f := range s.Files {
		out = append(out, Source{Kind: SourceFile, ID: f})
	}
	for _, u := range s.URLs {
		out = append(out, Source{Kind: SourceURL, ID: u})
	}
	return out
}

// IndexEntry is one summarized source in the index artifact.
type IndexEntry struct {
	SourceID    string `json:"source_id" yaml:"source_id"`
	Description string `json:"description" yaml:"description"`
}

// SourceContent is the full text of a resolved source.
type SourceContent struct {
	SourceID string `json:"source_id" yaml:"source_id"`
	Text     string `json:"text" yaml:"text"`
}
