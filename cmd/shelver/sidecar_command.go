package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shelver/internal/config"
	"shelver/internal/sidecar"
)

func newSidecarCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var logsDir string
	var outputDir string
	var exts string

	cmd := &cobra.Command{
		Use:   "sidecar",
		Short: "Write JSON metadata sidecars for renamed documents",
		Long: "Write <file>.json next to every matching document under --input-dir\n" +
			"(or into --output-dir). Titles, authors, and original names come from the\n" +
			"rename journals in --logs-dir, falling back to the file name.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, false)
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(inputDir)
			if err != nil {
				return fmt.Errorf("resolve input dir: %w", err)
			}
			var logs, output string
			if logsDir != "" {
				if logs, err = config.ExpandPath(logsDir); err != nil {
					return fmt.Errorf("resolve logs dir: %w", err)
				}
			}
			if outputDir != "" {
				if output, err = config.ExpandPath(outputDir); err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
			}
			var extList []string
			for _, ext := range strings.Split(exts, ",") {
				if ext = strings.TrimSpace(ext); ext != "" {
					extList = append(extList, ext)
				}
			}

			gen, err := sidecar.NewFromConfig(cfg, logs, output, extList, logger)
			if err != nil {
				return err
			}
			result, err := gen.Run(cmd.Context(), input)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Written) == 0 && result.Failed == 0 {
				fmt.Fprintln(out, "No files found matching provided extensions.")
				return nil
			}
			for _, path := range result.Written {
				fmt.Fprintln(out, path)
			}
			fmt.Fprintf(out, "Generated %d sidecar JSON files.\n", len(result.Written))
			if result.Failed > 0 {
				return fmt.Errorf("%d sidecars could not be written", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input-dir", "i", "", "Directory containing renamed documents")
	cmd.Flags().StringVarP(&logsDir, "logs-dir", "l", "", "Directory containing rename journals (default paths.log_dir)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory to collect sidecars in (default alongside each file)")
	cmd.Flags().StringVar(&exts, "exts", "", "Comma-separated extensions to include (default discovery.extensions)")
	_ = cmd.MarkFlagRequired("input-dir")
	return cmd
}
