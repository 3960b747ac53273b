// Package deps checks the external binaries shelver shells out to.
package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"shelver/internal/config"
)

const versionTimeout = 5 * time.Second

// Requirement defines an external dependency shelver relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to report its version.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Requirements lists the binaries the configuration needs. pdftotext is
// required when PDF text must be extracted for the llm source; ebook-convert
// is required when any format is transcoded.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "pdftotext",
			Command:     cfg.Tools.PDFToText,
			Description: "Extracts PDF text for the llm name source and damaged-PDF probing",
			Optional:    !cfg.UsesSource("llm"),
			VersionArgs: []string{"-v"},
		},
		{
			Name:        "ebook-convert",
			Command:     cfg.Tools.EbookConvert,
			Description: "Converts MOBI and CHM files and extracts their text",
			Optional:    !cfg.Transcode.Enabled || len(cfg.Transcode.Formats) == 0,
			VersionArgs: []string{"--version"},
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		if len(req.VersionArgs) > 0 {
			status.Version = probeVersion(ctx, path, req.VersionArgs)
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

// probeVersion returns the first non-empty output line of the version
// command. Tools such as pdftotext print it on stderr and exit non-zero.
func probeVersion(ctx context.Context, path string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	output, _ := exec.CommandContext(ctx, path, args...).CombinedOutput() //nolint:gosec
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
