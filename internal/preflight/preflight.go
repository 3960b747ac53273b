package preflight

import (
	"context"

	"shelver/internal/config"
	"shelver/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	// Optional results never block a run.
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// The LLM endpoint is checked only when the llm name source is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, dir := range []struct{ name, path string }{
		{"Output directory", cfg.Paths.OutputDir},
		{"Failed directory", cfg.Paths.FailedDir},
		{"Quarantine directory", cfg.Paths.QuarantineDir},
		{"Duplicates directory", cfg.Paths.DuplicatesDir},
		{"Log directory", cfg.Paths.LogDir},
		{"State directory", cfg.Paths.StateDir},
	} {
		results = append(results, CheckTargetDirectory(dir.name, dir.path))
	}
	if cfg.Paths.ScratchDir != "" {
		results = append(results, CheckTargetDirectory("Scratch directory", cfg.Paths.ScratchDir))
	}

	results = append(results, CheckTools(ctx, cfg)...)

	if cfg.UsesSource("llm") {
		results = append(results, CheckLLM(ctx, "LLM", cfg.GetLLM()))
	}
	return results
}

// Blocking returns the failed results that must stop a run.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

// CheckTools reports the external binaries as preflight results.
func CheckTools(ctx context.Context, cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(ctx, deps.Requirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Detail
		if s.Available {
			detail = s.Command
			if s.Version != "" {
				detail += " (" + s.Version + ")"
			}
		}
		results = append(results, Result{
			Name:     s.Name,
			Passed:   s.Available,
			Optional: s.Optional,
			Detail:   detail,
		})
	}
	return results
}
