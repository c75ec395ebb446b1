// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbindex/internal/fsutil"
	"github.com/pdiddy/kbindex/internal/index"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the index to YAML or JSON",
	Long: `Export writes the index entries, with their source kind, as structured
YAML or JSON. Output goes to stdout unless --out names a file, which is
replaced atomically.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	var buf bytes.Buffer
	if err := exportTo(&buf, e.store(), format); err != nil {
		return err
	}

	if outPath == "" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := fsutil.WriteFileAtomic(outPath, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", outPath)
	return nil
}

func exportTo(w io.Writer, store *index.Store, format string) error {
	switch format {
	case "yaml", "":
		return store.ExportYAML(w)
	case "json":
		return store.ExportJSON(w)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().String("out", "", "write to this file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}
