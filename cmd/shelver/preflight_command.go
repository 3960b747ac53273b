package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelver/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, external tools, and the LLM endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "pass"
				switch {
				case !r.Passed && r.Optional:
					status = "warn"
				case !r.Passed:
					status = "fail"
				}
				rows = append(rows, []string{r.Name, colorize(out, status), yesNo(!r.Optional), r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Required", "Detail"}, rows, nil))
			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%d required checks failed", len(blocking))
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}
