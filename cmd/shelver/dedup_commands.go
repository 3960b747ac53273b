package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"shelver/internal/allocator"
	"shelver/internal/dedup"
)

type dedupMoveView struct {
	Group string `json:"group"`
	From  string `json:"from"`
	To    string `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

type dedupView struct {
	DryRun bool            `json:"dry_run,omitempty"`
	Groups int             `json:"groups"`
	Kept   []string        `json:"kept"`
	Moves  []dedupMoveView `json:"moves"`
	Moved  int             `json:"moved"`
	Failed int             `json:"failed"`
}

func newDedupCommand(ctx *commandContext) *cobra.Command {
	var prefixLength int
	var dryRun bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dedup <dir>",
		Short: "Move duplicate documents out of a directory",
		Long: "Group the files in <dir> by the first --prefix-length characters of\n" +
			"their names. In each group the longest name stays and the rest move to\n" +
			"paths.duplicates_dir. Run `shelver sign` first so names start with a\n" +
			"content signature.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, !dryRun)
			if err != nil {
				return err
			}
			if prefixLength <= 0 {
				prefixLength = cfg.Dedup.PrefixLength
			}
			groups, err := dedup.Scan(args[0], prefixLength)
			if err != nil {
				return err
			}
			if !dryRun {
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
			}
			session := allocator.NewSessionFromConfig(cfg, logger)
			result, err := dedup.Apply(cmd.Context(), groups, cfg.Paths.DuplicatesDir, session, dedup.Options{DryRun: dryRun, Logger: logger})

			view := dedupView{DryRun: dryRun, Groups: result.Groups, Kept: result.Kept, Moved: result.Moved(), Failed: result.Failed()}
			if view.Kept == nil {
				view.Kept = []string{}
			}
			view.Moves = make([]dedupMoveView, 0, len(result.Moves))
			for _, m := range result.Moves {
				mv := dedupMoveView{Group: m.Key, From: m.From, To: m.To}
				if m.Err != nil {
					mv.Error = m.Err.Error()
				}
				view.Moves = append(view.Moves, mv)
			}
			if jsonOutput {
				if jerr := writeJSON(cmd, view); jerr != nil {
					return jerr
				}
				return err
			}

			out := cmd.OutOrStdout()
			if len(view.Moves) == 0 {
				fmt.Fprintln(out, "No duplicates found.")
				return err
			}
			rows := make([][]string, 0, len(view.Moves))
			for _, m := range view.Moves {
				status := "moved"
				dest := m.To
				switch {
				case m.Error != "":
					status, dest = "failed", m.Error
				case dryRun:
					status, dest = "would move", cfg.Paths.DuplicatesDir
				}
				rows = append(rows, []string{m.Group, filepath.Base(m.From), colorize(out, status), dest})
			}
			fmt.Fprintln(out, renderTable([]string{"Group", "File", "Status", "Destination"}, rows, nil))
			fmt.Fprintf(out, "%d groups, %d moved, %d failed\n", view.Groups, view.Moved, view.Failed)
			return err
		},
	}

	cmd.Flags().IntVar(&prefixLength, "prefix-length", 0, "Characters compared (default dedup.prefix_length)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the duplicates without moving them")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func newSignCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sign <dir>",
		Short: "Prefix file names with their signature",
		Long: "Rename every file in <dir> to <signature>_<name> so `shelver dedup`\n" +
			"groups identical files. --mode content hashes the bytes; --mode name\n" +
			"hashes the file name so near-identical names share a prefix.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			signMode, err := dedup.ParseSignMode(mode)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, !dryRun)
			if err != nil {
				return err
			}
			session := allocator.NewSessionFromConfig(cfg, logger)
			signed, err := dedup.Sign(cmd.Context(), args[0], session, dedup.SignOptions{Mode: signMode, DryRun: dryRun, Logger: logger})

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(signed))
			failed := 0
			for _, s := range signed {
				target := filepath.Base(s.To)
				if s.Err != nil {
					failed++
					target = s.Err.Error()
				}
				rows = append(rows, []string{filepath.Base(s.From), target})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"File", "Signed name"}, rows, nil))
			}
			verb := "signed"
			if dryRun {
				verb = "would sign"
			}
			fmt.Fprintf(out, "%s %d files, %d failed\n", verb, len(signed)-failed, failed)
			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(dedup.SignContent), "Signature source: content or name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the new names without renaming")
	return cmd
}

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var threshold int
	var minCosine float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "similar <dir>",
		Short: "List files with near-identical names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := dedup.Similar(args[0], threshold, minCosine)
			if err != nil {
				return err
			}
			if jsonOutput {
				if pairs == nil {
					pairs = []dedup.Pair{}
				}
				return writeJSON(cmd, pairs)
			}
			out := cmd.OutOrStdout()
			if len(pairs) == 0 {
				fmt.Fprintln(out, "No similar names found.")
				return nil
			}
			rows := make([][]string, 0, len(pairs))
			for _, p := range pairs {
				rows = append(rows, []string{
					filepath.Base(p.A),
					filepath.Base(p.B),
					strconv.Itoa(p.Distance),
					strconv.FormatFloat(p.Cosine, 'f', 2, 64),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Similar to", "Distance", "Cosine"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", 8, "Maximum differing signature bits")
	cmd.Flags().Float64Var(&minCosine, "min-cosine", 0, "Also pair names whose word similarity reaches this value (0 disables)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print pairs as JSON")
	return cmd
}
