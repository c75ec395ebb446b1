// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbindex/pkg/types"
)

// ExportEntry is an index entry annotated with its source kind.
type ExportEntry struct {
	SourceID    string           `json:"source_id" yaml:"source_id"`
	Kind        types.SourceKind `json:"kind" yaml:"kind"`
	Description string           `json:"description" yaml:"description"`
}

// ExportYAML writes the current index to w as a YAML sequence.
func (s *Store) ExportYAML(w io.Writer) error {
	entries, err := s.exportEntries()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the current index to w as an indented JSON array.
func (s *Store) ExportJSON(w io.Writer) error {
	entries, err := s.exportEntries()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries() ([]ExportEntry, error) {
	entries, err := s.LoadEntries()
	if err != nil {
		return nil, fmt.Errorf("loading entries for export: %w", err)
	}

	out := make([]ExportEntry, len(entries))
	for i, e := range entries {
		kind := types.SourceFile
		if types.IsURL(e.SourceID) {
			kind = types.SourceURL
		}
		out[i] = ExportEntry{SourceID: e.SourceID, Kind: kind, Description: e.Description}
	}
	return out, nil
}
