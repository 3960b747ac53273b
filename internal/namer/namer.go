package namer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"shelver/internal/config"
	"shelver/internal/filetype"
	"shelver/internal/logging"
	"shelver/internal/naming"
	"shelver/internal/services"
	"shelver/internal/services/llm"
)

// Source names, as used in naming.sources.
const (
	SourceMetadata = "metadata"
	SourceLLM      = "llm"
	SourceFilename = "filename"
)

// ErrNoSuggestion reports that a source had nothing to offer for a file.
var ErrNoSuggestion = fmt.Errorf("%w: no name suggestion", services.ErrExtractionFailed)

// Request describes the document to name.
type Request struct {
	Path   string
	Format filetype.Format
	// Excerpt returns the document text. Sources that need it call it; the
	// pipeline memoizes the result so extraction runs at most once.
	Excerpt func(context.Context) (string, error)
	// Rejected lists earlier candidates for this file that failed validation.
	Rejected []string
}

// Suggestion is a proposed name plus whatever descriptive metadata the
// source produced along the way.
type Suggestion struct {
	Name            string
	Source          string
	Title           string
	Author          string
	PublicationDate string
	Summary         string
	Topics          []string
	// Confidence is set only by sources that report one.
	Confidence *float64
	Model      string
	Endpoint   string
}

// Namer proposes a name for one document.
type Namer interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// Chain tries namers in order.
type Chain struct {
	namers    []named
	logger    *slog.Logger
	sanitizer *naming.Sanitizer
}

type named struct {
	source string
	namer  Namer
}

// NewChain returns an empty chain; add sources with Add.
func NewChain(logger *slog.Logger) *Chain {
	return &Chain{logger: logging.NewComponentLogger(logger, "namer")}
}

// WithSanitizer sets the label prefixes used when screening suggestions.
func (c *Chain) WithSanitizer(s *naming.Sanitizer) *Chain {
	c.sanitizer = s
	return c
}

func (c *Chain) acceptable(name string) bool {
	if c.sanitizer == nil {
		return naming.Acceptable(name)
	}
	return c.sanitizer.Acceptable(name)
}

// Add appends a source to the chain.
func (c *Chain) Add(source string, n Namer) *Chain {
	c.namers = append(c.namers, named{source: source, namer: n})
	return c
}

// Sources returns the source names in order.
func (c *Chain) Sources() []string {
	out := make([]string, 0, len(c.namers))
	for _, n := range c.namers {
		out = append(out, n.source)
	}
	return out
}

// Suggest returns the first acceptable suggestion not listed in
// req.Rejected. When no source succeeds the error wraps
// services.ErrExtractionFailed.
func (c *Chain) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	logger := logging.WithContext(ctx, c.logger)
	var lastErr error
	for _, n := range c.namers {
		if err := ctx.Err(); err != nil {
			return Suggestion{}, err
		}
		s, err := n.namer.Suggest(ctx, req)
		if err != nil {
			logger.Debug("name source failed", logging.String("source", n.source), logging.Error(err))
			lastErr = err
			continue
		}
		if !c.acceptable(s.Name) || rejected(req.Rejected, s.Name) {
			logger.Debug("name source returned unusable name",
				logging.String("source", n.source),
				logging.String("candidate", s.Name),
			)
			continue
		}
		if s.Source == "" {
			s.Source = n.source
		}
		return s, nil
	}
	if lastErr == nil {
		lastErr = ErrNoSuggestion
	}
	return Suggestion{}, services.Wrap(services.ErrExtractionFailed, "naming", "sources",
		fmt.Sprintf("no usable name for %s", filepath.Base(req.Path)), lastErr)
}

func rejected(list []string, name string) bool {
	name = strings.TrimSpace(name)
	for _, r := range list {
		if strings.EqualFold(strings.TrimSpace(r), name) {
			return true
		}
	}
	return false
}

// NewFromConfig builds the chain for naming.sources. The LLM client is
// created only when the llm source is enabled.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, llmOpts ...llm.Option) *Chain {
	chain := NewChain(logger).WithSanitizer(naming.NewSanitizer(cfg.Naming.BoilerplatePrefixes, cfg.Naming.MaxNameLength))
	for _, source := range cfg.Naming.Sources {
		switch source {
		case SourceMetadata:
			chain.Add(source, Embedded{})
		case SourceLLM:
			llmCfg := cfg.GetLLM()
			opts := append([]llm.Option{llm.WithRetryMaxAttempts(llmCfg.RetryAttempts)}, llmOpts...)
			client := llm.NewClient(llm.Config{
				APIKey:         llmCfg.APIKey,
				BaseURL:        llmCfg.BaseURL,
				Model:          llmCfg.Model,
				Referer:        llmCfg.Referer,
				Title:          llmCfg.Title,
				TimeoutSeconds: llmCfg.TimeoutSeconds,
			}, opts...)
			chain.Add(source, NewLLM(client))
		case SourceFilename:
			chain.Add(source, Filename{})
		}
	}
	return chain
}
