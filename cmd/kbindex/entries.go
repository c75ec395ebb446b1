// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbindex/pkg/types"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List the entries in the current index",
	Long: `Entries reads the index file and lists each source identifier with the
first line of its description. A missing index is reported as empty.`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

func runEntries(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	entries, err := e.store().LoadEntries()
	if err != nil {
		return err
	}
	return formatEntries(cmd.OutOrStdout(), entries, jsonOutput)
}

func formatEntries(w io.Writer, entries []types.IndexEntry, jsonOutput bool) error {
	if jsonOutput {
		if entries == nil {
			entries = []types.IndexEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}

	fmt.Fprintf(w, "%-50s  %s\n", "Source", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, en := range entries {
		id := truncate(en.SourceID, 50)
		desc, _, _ := strings.Cut(en.Description, "\n")
		fmt.Fprintf(w, "%-50s  %s\n", id, truncate(desc, 58))
	}
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	entriesCmd.Flags().Bool("json", false, "output entries as JSON")

	rootCmd.AddCommand(entriesCmd)
}
