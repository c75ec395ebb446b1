// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbindex/internal/history"
	"github.com/pdiddy/kbindex/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent index builds",
	Long: `History lists recorded builds, newest first. Given a run ID it prints
the per-source outcome of that build.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ledger, err := history.Open(filepath.Join(e.cfg.KnowledgeBase.DataDir, history.DBFile))
	if err != nil {
		return err
	}
	defer ledger.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := ledger.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, run)
		}
		printRun(out, run)
		return nil
	}

	runs, err := ledger.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		if runs == nil {
			runs = []history.Run{}
		}
		return writeJSON(out, runs)
	}
	printRuns(out, runs)
	return nil
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No builds recorded.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %8s  %8s  %8s  %s\n",
		"Run", "Started", "Indexed", "Skipped", "Failed", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %8d  %8d  %8d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Indexed, r.Skipped, r.Failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
}

func printRun(w io.Writer, run history.Run) {
	fmt.Fprintf(w, "run:      %s\n", run.ID)
	fmt.Fprintf(w, "started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "finished: %s\n", run.FinishedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "index:    %s\n", run.IndexPath)
	if run.RootMissing {
		fmt.Fprintln(w, "source directory was missing")
	}
	fmt.Fprintln(w)
	for _, r := range run.Results {
		line := fmt.Sprintf("%-8s %s", r.Status, r.Source.ID)
		if r.Status != types.StatusIndexed && r.Reason != "" {
			line += ": " + r.Reason
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\nindexed: %d, skipped: %d, failed: %d\n", run.Indexed, run.Skipped, run.Failed)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	historyCmd.Flags().Int("limit", 10, "maximum builds to list (0 = all)")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}
