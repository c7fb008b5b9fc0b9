// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// Format selects an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ExportEntry is a run as written by Export.
type ExportEntry struct {
	Run     `json:",inline" yaml:",inline"`
	Elapsed string `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// Export writes the most recent runs to w in the given format.
func (s *Store) Export(ctx context.Context, w io.Writer, format Format, limit int) error {
	runs, err := s.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(runs))
	for i, r := range runs {
		entries[i] = ExportEntry{Run: r}
		if d := r.Elapsed(); d > 0 {
			entries[i].Elapsed = d.String()
		}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
	case FormatYAML, "":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}
