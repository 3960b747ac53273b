package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/services"
)

// Converter runs ebook-convert.
type Converter struct {
	Binary      string
	ScratchRoot string
	Timeout     time.Duration
	logger      *slog.Logger
}

// New returns a converter. A zero timeout means no deadline beyond ctx.
func New(binary, scratchRoot string, timeout time.Duration, logger *slog.Logger) *Converter {
	return &Converter{
		Binary:      binary,
		ScratchRoot: scratchRoot,
		Timeout:     timeout,
		logger:      logging.NewComponentLogger(logger, "transcode"),
	}
}

// NewFromConfig returns the converter described by the tools and transcode
// sections.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Converter {
	return New(
		cfg.Tools.EbookConvert,
		cfg.Paths.ScratchDir,
		time.Duration(cfg.Transcode.TimeoutSeconds)*time.Second,
		logger,
	)
}

// Available reports whether the configured binary can be found.
func (c *Converter) Available() bool {
	if c == nil || strings.TrimSpace(c.Binary) == "" {
		return false
	}
	_, err := exec.LookPath(c.Binary)
	return err == nil
}

// Output is a converted file in its private scratch directory.
type Output struct {
	Path string
	dir  string
}

// Cleanup removes the scratch directory and anything left in it.
func (o Output) Cleanup() error {
	if o.dir == "" {
		return nil
	}
	return os.RemoveAll(o.dir)
}

// Convert writes src converted to the target extension (epub, pdf, txt)
// into a new scratch directory.
func (c *Converter) Convert(ctx context.Context, src, target string) (Output, error) {
	target = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(target)), ".")
	if target == "" {
		return Output{}, services.Wrap(services.ErrValidation, "transcode", "target", "empty target format", nil)
	}
	if !c.Available() {
		return Output{}, services.Wrap(services.ErrExternalTool, "transcode", "lookup", fmt.Sprintf("%q not found", c.Binary), nil)
	}
	if c.ScratchRoot != "" {
		if err := os.MkdirAll(c.ScratchRoot, 0o755); err != nil {
			return Output{}, services.Wrap(services.ErrConfiguration, "transcode", "scratch", c.ScratchRoot, err)
		}
	}
	dir, err := os.MkdirTemp(c.ScratchRoot, "transcode-")
	if err != nil {
		return Output{}, services.Wrap(services.ErrConfiguration, "transcode", "scratch", c.ScratchRoot, err)
	}
	out := Output{dir: dir}

	stem, _ := fileutil.SplitExt(src)
	out.Path = filepath.Join(dir, stem+"."+target)

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	started := time.Now()
	cmd := exec.CommandContext(runCtx, c.Binary, src, out.Path) //nolint:gosec
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		_ = out.Cleanup()
		marker := services.ErrExternalTool
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return Output{}, services.Wrap(marker, "transcode", "ebook-convert",
			fmt.Sprintf("%s: %s", filepath.Base(src), lastLine(output)), runErr)
	}
	info, err := os.Stat(out.Path)
	if err != nil || info.Size() == 0 {
		_ = out.Cleanup()
		return Output{}, services.Wrap(services.ErrExternalTool, "transcode", "ebook-convert",
			fmt.Sprintf("%s produced no %s output", filepath.Base(src), target), err)
	}
	logging.WithContext(ctx, c.logger).Debug("converted",
		logging.String("source", src),
		logging.String("target", target),
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
