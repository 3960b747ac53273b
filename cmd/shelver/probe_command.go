package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shelver/internal/filetype"
	"shelver/internal/signature"
)

type probeView struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Extension  string `json:"extension,omitempty"`
	Classifier string `json:"classifier,omitempty"`
	Signature  string `json:"signature,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <file>...",
		Short: "Show the resolved format and signature of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, false)
			if err != nil {
				return err
			}
			resolver, err := filetype.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}

			views := make([]probeView, 0, len(args))
			for _, path := range args {
				format, classifier := resolver.ResolveDetail(cmd.Context(), path)
				view := probeView{
					Path:       path,
					Format:     format.String(),
					Extension:  format.Extension(),
					Classifier: classifier,
				}
				if token, err := signature.FromFile(path); err != nil {
					view.Error = err.Error()
				} else {
					view.Signature = token.String()
				}
				views = append(views, view)
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				sig := v.Signature
				if sig == "" {
					sig = "-"
				}
				by := v.Classifier
				if by == "" {
					by = "-"
				}
				rows = append(rows, []string{filepath.Base(v.Path), v.Format, by, sig})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"File", "Format", "Matched by", "Signature"}, rows, nil))
			fmt.Fprintf(out, "Probe order: %s\n", strings.Join(resolver.Classifiers(), ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
