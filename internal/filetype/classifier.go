package filetype

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"shelver/internal/epub"
	"shelver/internal/mobi"
	"shelver/internal/pdfdoc"
)

// Probe is the input handed to every classifier.
type Probe struct {
	Path string
	// Head holds up to the configured sample size of leading bytes.
	Head []byte
	Size int64
	// ScratchDir is private to this classifier call and removed afterwards.
	ScratchDir string
}

// Classifier recognises one family of formats.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, probe Probe) (Format, bool, error)
}

// Classifier names accepted by probe.order.
const (
	ClassifierPDF  = "pdf"
	ClassifierEPUB = "epub"
	ClassifierMOBI = "mobi"
	ClassifierCHM  = "chm"
	ClassifierText = "text"
	ClassifierMIME = "mime"
)

// PDFClassifier accepts files with a %PDF- header that pdfcpu can paginate,
// or, failing that, that pdftotext can pull text from.
type PDFClassifier struct {
	// PDFToText is the pdftotext binary; empty or missing disables the fallback.
	PDFToText string
}

func (PDFClassifier) Name() string { return ClassifierPDF }

func (c PDFClassifier) Classify(ctx context.Context, probe Probe) (Format, bool, error) {
	if !pdfdoc.HasHeader(probe.Head) {
		return FormatUnknown, false, nil
	}
	pages, pageErr := pdfdoc.PageCount(ctx, probe.Path)
	if pageErr == nil && pages > 0 {
		return FormatPDF, true, nil
	}
	if c.PDFToText == "" {
		return FormatUnknown, false, pageErr
	}
	if _, err := exec.LookPath(c.PDFToText); err != nil {
		return FormatUnknown, false, pageErr
	}
	dest := filepath.Join(probe.ScratchDir, "probe.txt")
	if err := pdfdoc.ExtractText(ctx, c.PDFToText, probe.Path, dest, 3); err != nil {
		return FormatUnknown, false, err
	}
	return FormatPDF, true, nil
}

// EPUBClassifier accepts zip containers carrying EPUB markers.
type EPUBClassifier struct{}

func (EPUBClassifier) Name() string { return ClassifierEPUB }

func (EPUBClassifier) Classify(_ context.Context, probe Probe) (Format, bool, error) {
	if !bytes.HasPrefix(probe.Head, []byte("PK\x03\x04")) {
		return FormatUnknown, false, nil
	}
	ok, err := epub.IsEPUB(probe.Path)
	if err != nil || !ok {
		return FormatUnknown, false, err
	}
	return FormatEPUB, true, nil
}

// MOBIClassifier accepts PalmDB books typed BOOKMOBI or TEXtREAd.
type MOBIClassifier struct{}

func (MOBIClassifier) Name() string { return ClassifierMOBI }

func (MOBIClassifier) Classify(_ context.Context, probe Probe) (Format, bool, error) {
	if mobi.IsPalmDB(probe.Head) {
		return FormatMOBI, true, nil
	}
	return FormatUnknown, false, nil
}

// CHMClassifier accepts compiled HTML help files.
type CHMClassifier struct{}

func (CHMClassifier) Name() string { return ClassifierCHM }

func (CHMClassifier) Classify(_ context.Context, probe Probe) (Format, bool, error) {
	if bytes.HasPrefix(probe.Head, []byte("ITSF")) {
		return FormatCHM, true, nil
	}
	return FormatUnknown, false, nil
}

// MinPrintableRatio is the share of printable runes a text sample needs.
const MinPrintableRatio = 0.95

// TextClassifier accepts BOM-aware UTF-8/UTF-16 text that is almost
// entirely printable.
type TextClassifier struct{}

func (TextClassifier) Name() string { return ClassifierText }

func (TextClassifier) Classify(_ context.Context, probe Probe) (Format, bool, error) {
	if LooksLikeText(probe.Head) {
		return FormatText, true, nil
	}
	return FormatUnknown, false, nil
}

// LooksLikeText reports whether sample decodes as printable text. Samples
// without a BOM are read as UTF-8; NUL bytes outside a UTF-16 BOM reject.
func LooksLikeText(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	utf16 := bytes.HasPrefix(sample, []byte{0xFF, 0xFE}) || bytes.HasPrefix(sample, []byte{0xFE, 0xFF})
	if !utf16 && bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	decoder := xunicode.BOMOverride(xunicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, sample)
	if err != nil {
		return false
	}
	total, printable := 0, 0
	for len(decoded) > 0 {
		r, size := utf8.DecodeRune(decoded)
		decoded = decoded[size:]
		total++
		if r == 0 {
			return false
		}
		if isPrintable(r) {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(printable)/float64(total) >= MinPrintableRatio
}

func isPrintable(r rune) bool {
	switch r {
	case '\n', '\r', '\t', '\f':
		return true
	case utf8.RuneError:
		return false
	}
	return unicode.IsPrint(r) || unicode.IsSpace(r)
}

// MIMEClassifier maps gabriel-vasile/mimetype detection onto Format.
// Formats listed in Skip are left to their structural classifiers, so a
// file that failed the PDF probe is not re-admitted on its magic bytes.
type MIMEClassifier struct {
	Skip map[Format]bool
}

func (MIMEClassifier) Name() string { return ClassifierMIME }

var mimeFormats = map[string]Format{
	"application/pdf":                FormatPDF,
	"application/epub+zip":           FormatEPUB,
	"application/x-mobipocket-ebook": FormatMOBI,
	"application/vnd.ms-htmlhelp":    FormatCHM,
	"text/plain":                     FormatText,
}

func (c MIMEClassifier) Classify(_ context.Context, probe Probe) (Format, bool, error) {
	if len(probe.Head) == 0 {
		return FormatUnknown, false, nil
	}
	for m := mimetype.Detect(probe.Head); m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if f, ok := mimeFormats[base]; ok {
			if c.Skip[f] {
				return FormatUnknown, false, nil
			}
			return f, true, nil
		}
	}
	return FormatUnknown, false, nil
}
