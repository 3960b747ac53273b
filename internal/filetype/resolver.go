package filetype

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"shelver/internal/config"
	"shelver/internal/logging"
)

const (
	defaultSampleBytes = 64 << 10
	defaultTimeout     = 30 * time.Second
)

// Options tune a Resolver.
type Options struct {
	// ScratchRoot is the parent of per-probe scratch directories; empty uses os.TempDir.
	ScratchRoot string
	Timeout     time.Duration
	SampleBytes int
	Logger      *slog.Logger
}

// Resolver runs classifiers in order and returns the first match.
type Resolver struct {
	classifiers []Classifier
	scratchRoot string
	timeout     time.Duration
	sampleBytes int
	logger      *slog.Logger
}

// New builds a resolver over the given classifiers.
func New(classifiers []Classifier, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.SampleBytes <= 0 {
		opts.SampleBytes = defaultSampleBytes
	}
	return &Resolver{
		classifiers: classifiers,
		scratchRoot: opts.ScratchRoot,
		timeout:     opts.Timeout,
		sampleBytes: opts.SampleBytes,
		logger:      logging.NewComponentLogger(opts.Logger, "filetype"),
	}
}

// NewFromConfig builds the resolver described by the probe section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Resolver, error) {
	classifiers := make([]Classifier, 0, len(cfg.Probe.Order))
	covered := make(map[Format]bool)
	for _, name := range cfg.Probe.Order {
		c, err := ClassifierByName(name, cfg)
		if err != nil {
			return nil, err
		}
		if m, ok := c.(MIMEClassifier); ok {
			for f := range covered {
				m.Skip[f] = true
			}
			c = m
		}
		if f, ok := structuralFormats[name]; ok {
			covered[f] = true
		}
		classifiers = append(classifiers, c)
	}
	return New(classifiers, Options{
		ScratchRoot: cfg.Paths.ScratchDir,
		Timeout:     time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		SampleBytes: cfg.Probe.TextSampleBytes,
		Logger:      logger,
	}), nil
}

var structuralFormats = map[string]Format{
	ClassifierPDF:  FormatPDF,
	ClassifierEPUB: FormatEPUB,
	ClassifierMOBI: FormatMOBI,
	ClassifierCHM:  FormatCHM,
	ClassifierText: FormatText,
}

// ClassifierByName returns the classifier registered under name.
func ClassifierByName(name string, cfg *config.Config) (Classifier, error) {
	switch name {
	case ClassifierPDF:
		c := PDFClassifier{}
		if cfg != nil {
			c.PDFToText = cfg.Tools.PDFToText
		}
		return c, nil
	case ClassifierEPUB:
		return EPUBClassifier{}, nil
	case ClassifierMOBI:
		return MOBIClassifier{}, nil
	case ClassifierCHM:
		return CHMClassifier{}, nil
	case ClassifierText:
		return TextClassifier{}, nil
	case ClassifierMIME:
		return MIMEClassifier{Skip: make(map[Format]bool)}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
}

// Classifiers returns the configured classifier names in order.
func (r *Resolver) Classifiers() []string {
	names := make([]string, 0, len(r.classifiers))
	for _, c := range r.classifiers {
		names = append(names, c.Name())
	}
	return names
}

// Resolve returns the format of the file at path. It never fails: unreadable
// files and files no classifier accepts resolve to FormatUnknown.
func (r *Resolver) Resolve(ctx context.Context, path string) Format {
	format, _ := r.ResolveDetail(ctx, path)
	return format
}

// ResolveDetail is Resolve plus the name of the classifier that matched.
func (r *Resolver) ResolveDetail(ctx context.Context, path string) (Format, string) {
	logger := logging.WithContext(ctx, r.logger)
	head, size, err := readHead(path, r.sampleBytes)
	if err != nil {
		logger.Debug("probe read failed", logging.String(logging.FieldFile, path), logging.Error(err))
		return FormatUnknown, ""
	}
	probe := Probe{Path: path, Head: head, Size: size}
	for _, c := range r.classifiers {
		if ctx.Err() != nil {
			return FormatUnknown, ""
		}
		format, ok, err := r.run(ctx, c, probe)
		if err != nil {
			logger.Debug("classifier error",
				logging.String("classifier", c.Name()),
				logging.String(logging.FieldFile, path),
				logging.Error(err),
			)
		}
		if ok && format.Known() {
			logger.Debug("format resolved",
				logging.String("classifier", c.Name()),
				logging.String("format", string(format)),
				logging.String(logging.FieldFile, path),
			)
			return format, c.Name()
		}
	}
	return FormatUnknown, ""
}

func (r *Resolver) run(ctx context.Context, c Classifier, probe Probe) (Format, bool, error) {
	if r.scratchRoot != "" {
		if err := os.MkdirAll(r.scratchRoot, 0o755); err != nil {
			return FormatUnknown, false, fmt.Errorf("create scratch root: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(r.scratchRoot, "probe-"+c.Name()+"-")
	if err != nil {
		return FormatUnknown, false, fmt.Errorf("create probe scratch: %w", err)
	}
	defer os.RemoveAll(scratch)

	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	probe.ScratchDir = scratch
	return c.Classify(probeCtx, probe)
}

func readHead(path string, limit int) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%s is not a regular file", path)
	}
	head, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	return head, info.Size(), nil
}
