package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"shelver/internal/allocator"
	"shelver/internal/config"
	"shelver/internal/extract"
	"shelver/internal/filetype"
	"shelver/internal/logging"
	"shelver/internal/namer"
	"shelver/internal/naming"
	"shelver/internal/runlog"
	"shelver/internal/services"
	"shelver/internal/services/llm"
	"shelver/internal/transcode"
)

// Resolver classifies a file by content.
type Resolver interface {
	Resolve(ctx context.Context, path string) filetype.Format
}

// Extractor returns the plain text of a document.
type Extractor interface {
	Extract(ctx context.Context, path string, format filetype.Format) (string, error)
}

// Transcoder converts a file into another container format.
type Transcoder interface {
	Convert(ctx context.Context, src, target string) (transcode.Output, error)
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	Resolver  Resolver
	Extractor Extractor
	Namer     namer.Namer
	Allocator *allocator.Session
	Converter Transcoder
}

// Options tune a single run.
type Options struct {
	DryRun bool
	// Workers overrides pipeline.workers when positive.
	Workers int
}

// Pipeline renames batches of files according to cfg.
type Pipeline struct {
	cfg       *config.Config
	deps      Deps
	sanitizer *naming.Sanitizer
	logger    *slog.Logger
}

// New returns a pipeline over explicit collaborators.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	if deps.Allocator == nil {
		deps.Allocator = allocator.NewSessionFromConfig(cfg, logger)
	}
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		sanitizer: naming.NewSanitizer(cfg.Naming.BoilerplatePrefixes, cfg.Naming.MaxNameLength),
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// NewFromConfig wires the production collaborators.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, llmOpts ...llm.Option) (*Pipeline, error) {
	resolver, err := filetype.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	converter := transcode.NewFromConfig(cfg, logger)
	return New(cfg, Deps{
		Resolver:  resolver,
		Extractor: extract.NewFromConfig(cfg, converter, logger),
		Namer:     namer.NewFromConfig(cfg, logger, llmOpts...),
		Allocator: allocator.NewSessionFromConfig(cfg, logger),
		Converter: converter,
	}, logger), nil
}

// Run processes paths and returns one record per path in input order.
// Per-file failures are reported in the records; the returned error is
// non-nil only for environment failures or cancellation, in which case the
// report still describes every file.
func (p *Pipeline) Run(ctx context.Context, paths []string, opts Options) (Report, error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	report := Report{RunID: runID, DryRun: opts.DryRun, Records: make([]Record, len(paths))}
	for i, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		report.Records[i].OriginalPath = abs
	}

	var journal *runlog.Writer
	if !opts.DryRun {
		if err := p.cfg.EnsureDirectories(); err != nil {
			return p.abandon(report, started), services.Wrap(services.ErrConfiguration, "pipeline", "directories", "", err)
		}
		var err error
		journal, err = runlog.Create(p.cfg.Paths.LogDir, runID)
		if err != nil {
			return p.abandon(report, started), services.Wrap(services.ErrConfiguration, "pipeline", "run log", "", err)
		}
		report.LogPath = journal.Path()
		defer func() {
			if err := journal.Close(); err != nil {
				logging.WarnWithContext(logger, "run log close failed", "run_log_close_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "journal may be incomplete"),
				)
			}
		}()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = p.cfg.Pipeline.Workers
	}
	workers = max(workers, 1)

	logger.Info("rename run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("files", len(paths)),
		logging.Int("workers", workers),
		logging.Bool("dry_run", opts.DryRun),
	)

	slots := make(chan int, workers)
	for i := range workers {
		slots <- i
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range report.Records {
		rec := &report.Records[i]
		if gctx.Err() != nil {
			markCanceled(rec)
			continue
		}
		g.Go(func() error {
			worker := <-slots
			defer func() { slots <- worker }()

			p.process(services.WithWorker(gctx, worker), rec, opts)
			if journal != nil {
				if err := journal.Write(rec.journalEntry(runID)); err != nil {
					logging.WarnWithContext(logger, "run log write failed", "run_log_write_failed",
						logging.String(logging.FieldFile, rec.OriginalPath),
						logging.Error(err),
						logging.String(logging.FieldImpact, "record missing from journal"),
					)
				}
			}
			if services.IsFatal(rec.Err) {
				return rec.Err
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report.tally()
	report.Elapsed = time.Since(started)
	logger.Info("rename run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("renamed", report.Count(OutcomeRenamed)),
		logging.Int("quarantined", report.Count(OutcomeQuarantined)),
		logging.Int("skipped", report.Count(OutcomeSkipped)),
		logging.Int("failed", report.Count(OutcomeFailed)),
		logging.Duration("elapsed", report.Elapsed),
	)
	if err != nil && services.IsFatal(err) {
		logging.ErrorWithContext(logger, "rename run aborted", "run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the configured directories are writable"),
		)
	}
	return report, err
}

// abandon marks every record as skipped when the run cannot start.
func (p *Pipeline) abandon(report Report, started time.Time) Report {
	for i := range report.Records {
		report.Records[i].Outcome = OutcomeSkipped
		report.Records[i].Reason = "run aborted"
	}
	report.tally()
	report.Elapsed = time.Since(started)
	return report
}

func markCanceled(rec *Record) {
	rec.Outcome = OutcomeSkipped
	rec.Reason = ReasonCanceled
	rec.FinalPath = ""
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
