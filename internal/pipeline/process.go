package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/namer"
	"shelver/internal/naming"
	"shelver/internal/services"
	"shelver/internal/signature"
)

const (
	stageSignature = "signature"
	stageResolve   = "resolve"
	stageNaming    = "naming"
	stageTranscode = "transcode"
	stagePlace     = "place"
)

// process drives one record to its terminal outcome.
func (p *Pipeline) process(ctx context.Context, rec *Record, opts Options) {
	if ctx.Err() != nil {
		markCanceled(rec)
		return
	}
	started := time.Now()
	defer func() { rec.Elapsed = time.Since(started) }()
	ctx = services.WithFile(ctx, rec.OriginalPath)

	sig, err := signature.FromFile(rec.OriginalPath)
	if err != nil {
		p.route(services.WithStage(ctx, stageSignature), rec, err, opts)
		return
	}
	rec.Signature = sig

	resolveCtx := services.WithStage(ctx, stageResolve)
	rec.Format = p.deps.Resolver.Resolve(resolveCtx, rec.OriginalPath)
	if !rec.Format.Known() {
		p.route(resolveCtx, rec, services.Wrap(services.ErrTypeUnknown, stageResolve, "probe",
			"no classifier matched "+filepath.Base(rec.OriginalPath), nil), opts)
		return
	}

	namingCtx := services.WithStage(ctx, stageNaming)
	stem, err := p.name(namingCtx, rec)
	if err != nil {
		p.route(namingCtx, rec, err, opts)
		return
	}

	if p.cfg.TranscodeFormat(rec.Format.String()) {
		p.placeTranscoded(ctx, rec, stem, opts)
		return
	}
	placeCtx := services.WithStage(ctx, stagePlace)
	if err := p.placeRenamed(placeCtx, rec, rec.OriginalPath, stem, rec.Format.Extension(), opts); err != nil {
		p.route(placeCtx, rec, err, opts)
	}
}

// name asks the name sources for a candidate until one survives
// sanitization, and returns the final stem.
func (p *Pipeline) name(ctx context.Context, rec *Record) (string, error) {
	logger := logging.WithContext(ctx, p.logger)
	excerpt := p.excerptFunc(rec)
	attempts := max(p.cfg.Naming.RetryAttempts, 1)

	var rejected []string
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rec.Attempts = attempt
		suggestion, err := p.deps.Namer.Suggest(ctx, namer.Request{
			Path:     rec.OriginalPath,
			Format:   rec.Format,
			Excerpt:  excerpt,
			Rejected: rejected,
		})
		if err != nil {
			lastErr = err
			logger.Debug("no name this attempt", logging.Int("attempt", attempt), logging.Error(err))
			continue
		}
		rec.CandidateName = suggestion.Name
		sanitized, err := p.sanitizer.Sanitize(suggestion.Name)
		if err == nil && (!p.sanitizer.Acceptable(suggestion.Name) || !naming.IsAcceptable(sanitized)) {
			err = services.Wrap(services.ErrNameRejected, stageNaming, "validate",
				fmt.Sprintf("%q is not a usable name", suggestion.Name), nil)
		}
		if err != nil {
			rejected = append(rejected, suggestion.Name)
			lastErr = err
			logger.Debug("candidate name rejected",
				logging.Int("attempt", attempt),
				logging.String("candidate", suggestion.Name),
				logging.Error(err),
			)
			continue
		}

		rec.SanitizedName = sanitized
		rec.Source = suggestion.Source
		rec.Suggestion = suggestion
		if p.cfg.Naming.PrefixSignature {
			return naming.WithSignature(rec.Signature.String(), sanitized), nil
		}
		return sanitized, nil
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrExtractionFailed, stageNaming, "sources", "no name sources configured", nil)
	}
	return "", lastErr
}

// excerptFunc extracts text at most once per record, on first demand.
func (p *Pipeline) excerptFunc(rec *Record) func(context.Context) (string, error) {
	if p.deps.Extractor == nil {
		return nil
	}
	var (
		once sync.Once
		text string
		err  error
	)
	return func(ctx context.Context) (string, error) {
		once.Do(func() {
			text, err = p.deps.Extractor.Extract(ctx, rec.OriginalPath, rec.Format)
		})
		return text, err
	}
}

// placeRenamed files src into the output directory as stem.ext.
func (p *Pipeline) placeRenamed(ctx context.Context, rec *Record, src, stem, ext string, opts Options) error {
	var (
		final string
		err   error
	)
	if opts.DryRun {
		final, err = p.deps.Allocator.Reserve(p.cfg.Paths.OutputDir, stem, ext)
	} else {
		final, err = p.deps.Allocator.Place(ctx, src, p.cfg.Paths.OutputDir, stem, ext)
	}
	if err != nil {
		return err
	}
	rec.FinalPath = final
	rec.Outcome = OutcomeRenamed
	logging.WithContext(ctx, p.logger).Info("file renamed",
		logging.String(logging.FieldEventType, "file_renamed"),
		logging.String("format", rec.Format.String()),
		logging.String("source", rec.Source),
		logging.Path("destination", final),
		logging.Bool("dry_run", opts.DryRun),
	)
	return nil
}

// placeTranscoded converts the original, places the converted copy and
// only then removes the original.
func (p *Pipeline) placeTranscoded(ctx context.Context, rec *Record, stem string, opts Options) {
	target := p.cfg.Transcode.Target
	rec.Transcoded = true
	placeCtx := services.WithStage(ctx, stagePlace)
	if opts.DryRun {
		if err := p.placeRenamed(placeCtx, rec, rec.OriginalPath, stem, target, opts); err != nil {
			p.route(placeCtx, rec, err, opts)
		}
		return
	}

	transcodeCtx := services.WithStage(ctx, stageTranscode)
	if p.deps.Converter == nil {
		p.route(transcodeCtx, rec, services.Wrap(services.ErrExternalTool, stageTranscode, "converter", "no converter configured", nil), opts)
		return
	}
	out, err := p.deps.Converter.Convert(transcodeCtx, rec.OriginalPath, target)
	if err != nil {
		p.route(transcodeCtx, rec, err, opts)
		return
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			p.logger.Debug("transcode scratch cleanup failed", logging.Error(err))
		}
	}()

	if err := p.placeRenamed(placeCtx, rec, out.Path, stem, target, opts); err != nil {
		p.route(placeCtx, rec, err, opts)
		return
	}
	if err := os.Remove(rec.OriginalPath); err != nil {
		logging.WarnWithContext(logging.WithContext(transcodeCtx, p.logger), "original kept after transcode", "transcode_original_kept",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the original manually"),
			logging.String(logging.FieldImpact, "the source file and its converted copy both exist"),
		)
	}
}

// route turns a per-file error into the record's outcome and moves the file
// where the outcome says it belongs.
func (p *Pipeline) route(ctx context.Context, rec *Record, err error, opts Options) {
	if canceled(ctx, err) {
		markCanceled(rec)
		return
	}
	rec.fail(err)
	logger := logging.WithContext(ctx, p.logger)

	if services.IsFatal(err) {
		rec.Outcome = OutcomeFailed
		return
	}
	switch services.FailureRoute(err) {
	case services.RouteSkip:
		rec.Outcome = OutcomeSkipped
		logging.WarnWithContext(logger, "file skipped", "file_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the file is readable and not empty"),
			logging.String(logging.FieldImpact, "file left in place"),
		)
	case services.RouteQuarantine:
		rec.Outcome = OutcomeQuarantined
		p.park(ctx, rec, p.cfg.Paths.QuarantineDir, opts)
		logging.WarnWithContext(logger, "file quarantined", "file_quarantined",
			logging.Path("destination", rec.FinalPath),
			logging.String(logging.FieldErrorHint, "unrecognised content; inspect manually"),
			logging.String(logging.FieldImpact, "file moved to quarantine"),
		)
	default:
		rec.Outcome = OutcomeFailed
		p.park(ctx, rec, p.cfg.Paths.FailedDir, opts)
		logging.WarnWithContext(logger, "file failed", "file_failed",
			logging.Error(err),
			logging.Path("destination", rec.FinalPath),
			logging.String(logging.FieldErrorHint, "see error; rerun after fixing the cause"),
			logging.String(logging.FieldImpact, "file moved to failed directory under its original name"),
		)
	}
}

// park moves the original file unchanged into dir. If that fails the file
// stays where it was and the placement error joins the record's error.
func (p *Pipeline) park(ctx context.Context, rec *Record, dir string, opts Options) {
	stem, ext := fileutil.SplitExt(rec.OriginalPath)
	var (
		final string
		err   error
	)
	if opts.DryRun {
		final, err = p.deps.Allocator.Reserve(dir, stem, ext)
	} else {
		final, err = p.deps.Allocator.Place(services.WithStage(ctx, stagePlace), rec.OriginalPath, dir, stem, ext)
	}
	if err != nil {
		if canceled(ctx, err) {
			markCanceled(rec)
			return
		}
		rec.Err = errors.Join(rec.Err, err)
		rec.Error = rec.Err.Error()
		return
	}
	rec.FinalPath = final
}
