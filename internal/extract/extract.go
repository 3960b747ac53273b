package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"shelver/internal/config"
	"shelver/internal/epub"
	"shelver/internal/filetype"
	"shelver/internal/logging"
	"shelver/internal/mobi"
	"shelver/internal/pdfdoc"
	"shelver/internal/services"
	"shelver/internal/transcode"
)

// DefaultCharBudget caps extracted text when no budget is configured.
const DefaultCharBudget = 26000

// pdfPageLimit bounds how many pages pdftotext converts; the budget is
// normally reached well before.
const pdfPageLimit = 40

// Extractor turns documents into bounded plain text.
type Extractor struct {
	pdfToText   string
	converter   *transcode.Converter
	scratchRoot string
	charBudget  int
	timeout     time.Duration
	logger      *slog.Logger
}

// Options configure an Extractor.
type Options struct {
	PDFToText   string
	Converter   *transcode.Converter
	ScratchRoot string
	CharBudget  int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// New returns an extractor.
func New(opts Options) *Extractor {
	if opts.CharBudget <= 0 {
		opts.CharBudget = DefaultCharBudget
	}
	return &Extractor{
		pdfToText:   opts.PDFToText,
		converter:   opts.Converter,
		scratchRoot: opts.ScratchRoot,
		charBudget:  opts.CharBudget,
		timeout:     opts.Timeout,
		logger:      logging.NewComponentLogger(opts.Logger, "extract"),
	}
}

// NewFromConfig returns the extractor described by cfg.
func NewFromConfig(cfg *config.Config, converter *transcode.Converter, logger *slog.Logger) *Extractor {
	return New(Options{
		PDFToText:   cfg.Tools.PDFToText,
		Converter:   converter,
		ScratchRoot: cfg.Paths.ScratchDir,
		CharBudget:  cfg.Naming.CharBudget,
		Timeout:     time.Duration(cfg.Probe.TimeoutSeconds) * time.Second * 4,
		Logger:      logger,
	})
}

// Extract returns up to naming.char_budget runes of text from path. Errors carry the
// services.ErrExtractionFailed marker.
func (e *Extractor) Extract(ctx context.Context, path string, format filetype.Format) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	var (
		text string
		err  error
	)
	switch format {
	case filetype.FormatPDF:
		text, err = e.extractPDF(ctx, path)
	case filetype.FormatEPUB:
		text, err = e.extractEPUB(path)
	case filetype.FormatMOBI:
		text, err = e.extractMOBI(ctx, path)
	case filetype.FormatCHM:
		text, err = e.extractConverted(ctx, path)
	case filetype.FormatText:
		text, err = e.extractText(path)
	default:
		err = fmt.Errorf("no extractor for format %q", format)
	}
	if err != nil {
		return "", services.Wrap(services.ErrExtractionFailed, "extract", string(format), filepath.Base(path), err)
	}
	text = normalizeText(text)
	if text == "" {
		return "", services.Wrap(services.ErrExtractionFailed, "extract", string(format), filepath.Base(path)+": no text", nil)
	}
	return truncateRunes(text, e.charBudget), nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(e.pdfToText) == "" {
		return "", errors.New("pdftotext not configured")
	}
	dir, err := e.scratch("extract-pdf-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	dest := filepath.Join(dir, "text.txt")
	if err := pdfdoc.ExtractText(ctx, e.pdfToText, path, dest, pdfPageLimit); err != nil {
		return "", err
	}
	return e.readBounded(dest)
}

func (e *Extractor) extractEPUB(path string) (string, error) {
	book, err := epub.Open(path)
	if err != nil {
		return "", err
	}
	defer book.Close()
	return book.Text(e.charBudget)
}

func (e *Extractor) extractMOBI(ctx context.Context, path string) (string, error) {
	book, err := mobi.Open(path)
	if err != nil {
		return "", err
	}
	text, err := book.Text(e.charBudget)
	if err == nil && strings.TrimSpace(text) != "" {
		return stripMarkup(text), nil
	}
	if err != nil && !errors.Is(err, mobi.ErrUnsupportedCompression) {
		return "", err
	}
	e.logger.Debug("falling back to ebook-convert", logging.String(logging.FieldFile, path))
	return e.extractConverted(ctx, path)
}

func (e *Extractor) extractConverted(ctx context.Context, path string) (string, error) {
	if e.converter == nil {
		return "", errors.New("no converter configured")
	}
	out, err := e.converter.Convert(ctx, path, "txt")
	if err != nil {
		return "", err
	}
	defer out.Cleanup()
	return e.readBounded(out.Path)
}

func (e *Extractor) extractText(path string) (string, error) {
	return e.readBounded(path)
}

// readBounded decodes at most CharBudget runes' worth of bytes from path,
// honouring a UTF-8 or UTF-16 byte order mark.
func (e *Extractor) readBounded(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	decoder := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	limited := io.LimitReader(f, int64(e.charBudget)*utf8.UTFMax)
	data, err := io.ReadAll(transform.NewReader(limited, decoder))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func (e *Extractor) scratch(prefix string) (string, error) {
	if e.scratchRoot != "" {
		if err := os.MkdirAll(e.scratchRoot, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(e.scratchRoot, prefix)
}

// normalizeText drops control characters other than line breaks and tabs
// and trims the result.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == utf8.RuneError:
			return -1
		case r < 0x20 || r == 0x7f:
			return ' '
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// stripMarkup keeps the text tokens of the HTML that MOBI text records carry.
func stripMarkup(text string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "p", "br", "div", "h1", "h2", "h3", "li":
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if n := string(name); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		case html.SelfClosingTagToken:
			b.WriteByte('\n')
		}
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}
