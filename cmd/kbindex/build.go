// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbindex/internal/fsutil"
	"github.com/pdiddy/kbindex/internal/history"
	"github.com/pdiddy/kbindex/internal/watch"
	"github.com/pdiddy/kbindex/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the knowledge-base index",
	Long: `Build enumerates every source, reads local files, fetches web pages
(through the cache), asks the summarization endpoint for a short description
of each, and atomically replaces the index file.

A source that fails is reported and skipped; the rest of the index is still
written. The command exits non-zero when any source failed.

With --watch, build keeps running and rebuilds whenever the source tree or
the links file changes.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	watchMode, _ := cmd.Flags().GetBool("watch")
	reportPath, _ := cmd.Flags().GetString("report")

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	builder, err := e.builder()
	if err != nil {
		return err
	}

	ledger, err := history.Open(filepath.Join(e.cfg.KnowledgeBase.DataDir, history.DBFile))
	if err != nil {
		return err
	}
	defer ledger.Close()

	out := cmd.OutOrStdout()
	buildOnce := func(ctx context.Context) error {
		report, err := builder.Build(ctx)
		if err != nil {
			return err
		}
		printReport(out, report)

		if run, err := ledger.Record(ctx, report); err != nil {
			e.logger.Warn("kb.ledger_write_error", "error", err)
		} else {
			fmt.Fprintf(out, "run %s\n", run.ID)
		}
		if reportPath != "" {
			if err := writeReport(reportPath, report); err != nil {
				return err
			}
		}
		if report.HasFailures() {
			return fmt.Errorf("%d source(s) failed", report.Failed)
		}
		return nil
	}

	ctx := cmd.Context()
	if !watchMode {
		return buildOnce(ctx)
	}

	if err := buildOnce(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("kb.build_failed", "error", err)
	}
	kb := e.cfg.KnowledgeBase
	return watch.New(kb.SourcesDir, kb.LinksFile, kb.WatchDebounce, buildOnce, e.logger).Run(ctx)
}

func printReport(w io.Writer, report *types.BuildReport) {
	if report.RootMissing {
		fmt.Fprintf(w, "source directory missing, index not written\n")
		return
	}
	for _, r := range report.Results {
		if r.Status == types.StatusIndexed {
			continue
		}
		fmt.Fprintf(w, "%-8s %s: %s\n", r.Status, r.Source.ID, r.Reason)
	}
	fmt.Fprintf(w, "\nindexed: %d, skipped: %d, failed: %d (%s)\n",
		report.Indexed, report.Skipped, report.Failed, report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "index written to %s\n", report.IndexPath)
}

func writeReport(path string, report *types.BuildReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func init() {
	buildCmd.Flags().Bool("watch", false, "keep running and rebuild on source changes")
	buildCmd.Flags().String("report", "", "write the build report as YAML to this file")

	rootCmd.AddCommand(buildCmd)
}
