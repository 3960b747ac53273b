package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shelver/internal/pipeline"
	"shelver/internal/preflight"
)

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var workers int
	var jsonOutput bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "rename <path>...",
		Short: "Identify, name, and file documents",
		Long: "Resolve each file's real format, ask the configured name sources for a\n" +
			"title and author, and move it into the output directory under a unique\n" +
			"name. Files that cannot be identified or named go to the quarantine or\n" +
			"failed directories.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, !dryRun)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				if blocking := preflight.Blocking(preflight.RunAll(runCtx, cfg)); len(blocking) > 0 {
					names := make([]string, 0, len(blocking))
					for _, r := range blocking {
						names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
					}
					return fmt.Errorf("preflight failed:\n  %s", strings.Join(names, "\n  "))
				}
			}

			files, err := pipeline.Discover(args, pipeline.DiscoverOptionsFromConfig(cfg))
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching files found.")
				return nil
			}

			p, err := pipeline.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			report, runErr := p.Run(runCtx, files, pipeline.Options{DryRun: dryRun, Workers: workers})
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printRenameReport(cmd, report)
			}
			if runErr != nil && runCtx.Err() != nil {
				return context.Canceled
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the planned names without moving anything")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Files processed concurrently (default pipeline.workers)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not check tools and directories before the run")
	return cmd
}

func printRenameReport(cmd *cobra.Command, report pipeline.Report) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Records))
	for _, rec := range report.Records {
		dest := "-"
		if rec.FinalPath != "" {
			dest = rec.FinalPath
		}
		detail := rec.Reason
		if rec.Outcome == pipeline.OutcomeRenamed && rec.Source != "" {
			detail = rec.Source
			if rec.Transcoded {
				detail += ", transcoded"
			}
		}
		rows = append(rows, []string{
			filepath.Base(rec.OriginalPath),
			string(rec.Format),
			colorize(out, string(rec.Outcome)),
			dest,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Format", "Outcome", "Destination", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))

	parts := make([]string, 0, len(pipeline.Outcomes))
	for _, o := range pipeline.Outcomes {
		parts = append(parts, fmt.Sprintf("%s %d", o, report.Count(o)))
	}
	prefix := "Run"
	if report.DryRun {
		prefix = "Dry run"
	}
	fmt.Fprintf(out, "%s %s: %s (%s)\n", prefix, report.RunID, strings.Join(parts, ", "), report.Elapsed.Round(time.Millisecond))
	if report.LogPath != "" {
		fmt.Fprintf(out, "Journal: %s\n", report.LogPath)
	}
}
