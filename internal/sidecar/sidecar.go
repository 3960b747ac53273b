package sidecar

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/naming"
	"shelver/internal/runlog"
)

// Metadata source labels.
const (
	SourceLLM      = "llm"
	SourceFilename = "filename"
	SourceUnknown  = "unknown"
)

// LLMInfo identifies the model behind the metadata, when known.
type LLMInfo struct {
	Model      string   `json:"model"`
	Endpoint   string   `json:"endpoint"`
	Confidence *float64 `json:"confidence"`
}

// Entry is the sidecar document.
type Entry struct {
	SourcePath        string    `json:"source_path"`
	CanonicalFilename string    `json:"canonical_filename"`
	OriginalFilename  string    `json:"original_filename"`
	FileFormat        string    `json:"file_format"`
	MIMEType          string    `json:"mime_type"`
	SizeBytes         int64     `json:"size_bytes"`
	SHA256            string    `json:"sha256"`
	Title             string    `json:"title"`
	Author            string    `json:"author"`
	PublicationDate   string    `json:"publication_date"`
	Summary           string    `json:"summary"`
	DomainTopics      []string  `json:"domain_topics"`
	LLM               LLMInfo   `json:"llm"`
	MetadataSource    string    `json:"metadata_source"`
	CreatedAt         time.Time `json:"created_at"`
}

// Options configure a Generator.
type Options struct {
	// OutputDir collects sidecars flat; empty writes them beside each file.
	OutputDir string
	// Extensions filters input files, with or without the leading dot.
	Extensions []string
	// Model and Endpoint are the defaults reported when the journal has none.
	Model    string
	Endpoint string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Generator builds and writes sidecars.
type Generator struct {
	mapping runlog.Mapping
	opts    Options
	exts    map[string]struct{}
	logger  *slog.Logger
}

// Result summarises a Run.
type Result struct {
	Written []string
	Failed  int
}

// New returns a generator over the given journal mapping.
func New(mapping runlog.Mapping, opts Options) *Generator {
	if mapping == nil {
		mapping = runlog.Mapping{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts[ext] = struct{}{}
		}
	}
	return &Generator{
		mapping: mapping,
		opts:    opts,
		exts:    exts,
		logger:  logging.NewComponentLogger(logger, "sidecar"),
	}
}

// NewFromConfig reads the journal under cfg's log directory unless logsDir
// overrides it.
func NewFromConfig(cfg *config.Config, logsDir, outputDir string, exts []string, logger *slog.Logger) (*Generator, error) {
	if logsDir == "" {
		logsDir = cfg.Paths.LogDir
	}
	mapping, err := runlog.BuildMapping(logsDir)
	if err != nil {
		return nil, err
	}
	if len(exts) == 0 {
		exts = cfg.Discovery.Extensions
	}
	llm := cfg.GetLLM()
	return New(mapping, Options{
		OutputDir:  outputDir,
		Extensions: exts,
		Model:      llm.Model,
		Endpoint:   llm.BaseURL,
		Logger:     logger,
	}), nil
}

// Build assembles the sidecar for path without writing it.
func (g *Generator) Build(path string) (Entry, error) {
	canonical := runlog.CanonicalPath(path)
	info, err := os.Stat(canonical)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "stat %s", path)
	}
	sum, err := fileutil.SHA256File(canonical)
	if err != nil {
		return Entry{}, err
	}
	name := filepath.Base(canonical)
	stem, ext := fileutil.SplitExt(name)

	entry := Entry{
		SourcePath:        canonical,
		CanonicalFilename: name,
		FileFormat:        strings.ToLower(ext),
		SizeBytes:         info.Size(),
		SHA256:            sum,
		DomainTopics:      []string{},
		LLM:               LLMInfo{Model: g.opts.Model, Endpoint: g.opts.Endpoint},
		MetadataSource:    SourceUnknown,
		CreatedAt:         g.opts.Now().UTC(),
	}
	if mtype, err := mimetype.DetectFile(canonical); err == nil {
		entry.MIMEType = mtype.String()
	}

	if mapped, ok := g.mapping[canonical]; ok {
		if mapped.OriginalPath != "" {
			entry.OriginalFilename = filepath.Base(mapped.OriginalPath)
		}
		md := mapped.Metadata
		entry.Title = md.Title
		entry.Author = md.Author
		entry.PublicationDate = md.PublicationDate
		entry.Summary = md.Summary
		if md.DomainTopics != nil {
			entry.DomainTopics = md.DomainTopics
		}
		if mapped.LLM.Model != "" {
			entry.LLM.Model = mapped.LLM.Model
		}
		if mapped.LLM.Endpoint != "" {
			entry.LLM.Endpoint = mapped.LLM.Endpoint
		}
		if mapped.LLM.Confidence != nil {
			entry.LLM.Confidence = mapped.LLM.Confidence
		}
		if mapped.HasMetadata {
			entry.MetadataSource = SourceLLM
			if mapped.Source != "" {
				entry.MetadataSource = mapped.Source
			}
		}
	}

	if entry.Title == "" && entry.Author == "" {
		if inferred, ok := naming.InferFromFilename(stem); ok {
			entry.Title = inferred.Title
			entry.Author = inferred.Author
			if inferred.Year != "" {
				entry.PublicationDate = inferred.Year
			}
			entry.MetadataSource = SourceFilename
		} else {
			entry.MetadataSource = SourceUnknown
		}
	}
	return entry, nil
}

// TargetPath returns where the sidecar for path is written.
func (g *Generator) TargetPath(path string) string {
	if g.opts.OutputDir != "" {
		return filepath.Join(g.opts.OutputDir, filepath.Base(path)+".json")
	}
	return path + ".json"
}

// Write stores entry as indented JSON and returns the sidecar path.
func (g *Generator) Write(path string, entry Entry) (string, error) {
	target := g.TargetPath(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrapf(err, "create sidecar dir for %s", target)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entry); err != nil {
		return "", errors.Wrap(err, "encode sidecar")
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(err, "write sidecar %s", target)
	}
	return target, nil
}

// Files lists the matching files under inputDir in walk order.
func (g *Generator) Files(inputDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		_, ext := fileutil.SplitExt(d.Name())
		if _, ok := g.exts[strings.ToLower(ext)]; !ok && len(g.exts) > 0 {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", inputDir)
	}
	return files, nil
}

// Run writes a sidecar for every matching file under inputDir. Per-file
// failures are logged and counted.
func (g *Generator) Run(ctx context.Context, inputDir string) (Result, error) {
	var result Result
	info, err := os.Stat(inputDir)
	if err != nil {
		return result, errors.Wrapf(err, "input dir %s", inputDir)
	}
	if !info.IsDir() {
		return result, errors.Errorf("input %s is not a directory", inputDir)
	}
	files, err := g.Files(inputDir)
	if err != nil {
		return result, err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entry, err := g.Build(path)
		if err == nil {
			var target string
			target, err = g.Write(path, entry)
			if err == nil {
				result.Written = append(result.Written, target)
				g.logger.Debug("sidecar written", logging.String(logging.FieldFile, path), logging.String("sidecar", target))
				continue
			}
		}
		result.Failed++
		logging.WarnWithContext(g.logger, "sidecar failed", "sidecar_failed",
			logging.String(logging.FieldFile, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions"),
		)
	}
	return result, nil
}
