package namer

import (
	"context"
	"regexp"
	"strings"

	"shelver/internal/epub"
	"shelver/internal/filetype"
	"shelver/internal/mobi"
	"shelver/internal/naming"
	"shelver/internal/pdfdoc"
)

// Embedded reads titles and authors stored inside the document.
type Embedded struct{}

var (
	authoringToolPrefix = regexp.MustCompile(`(?i)^(microsoft (word|powerpoint|excel)|untitled document)\s*-\s*`)
	fileLikeTitle       = regexp.MustCompile(`(?i)\.(docx?|pdf|rtf|odt|tex|dvi|ps|indd|qxd|txt|html?)$`)
)

func (Embedded) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	var title, author, date string
	switch req.Format {
	case filetype.FormatPDF:
		info, err := pdfdoc.Inspect(ctx, req.Path)
		if err != nil {
			return Suggestion{}, err
		}
		title, author, date = info.Title, info.Author, pdfDate(info.CreationDate)
	case filetype.FormatEPUB:
		book, err := epub.Open(req.Path)
		if err != nil {
			return Suggestion{}, err
		}
		defer book.Close()
		title, author, date = book.Metadata.Title, strings.Join(book.Metadata.Authors, ", "), book.Metadata.Date
	case filetype.FormatMOBI:
		book, err := mobi.Open(req.Path)
		if err != nil {
			return Suggestion{}, err
		}
		title, author, date = book.Title, strings.Join(book.Authors, ", "), book.Date
	default:
		return Suggestion{}, ErrNoSuggestion
	}

	title = cleanTitle(title)
	if title == "" {
		return Suggestion{}, ErrNoSuggestion
	}
	author = strings.TrimSpace(author)
	return Suggestion{
		Name:            naming.Compose(title, author),
		Source:          SourceMetadata,
		Title:           title,
		Author:          author,
		PublicationDate: strings.TrimSpace(date),
	}, nil
}

// cleanTitle drops authoring-tool noise and titles that are just a file name.
func cleanTitle(title string) string {
	title = strings.TrimSpace(authoringToolPrefix.ReplaceAllString(strings.TrimSpace(title), ""))
	if fileLikeTitle.MatchString(title) || !naming.Acceptable(title) {
		return ""
	}
	return title
}

// pdfDate turns "D:20190405..." into "2019-04-05"; other shapes pass through.
func pdfDate(value string) string {
	value = strings.TrimPrefix(strings.TrimSpace(value), "D:")
	if len(value) >= 8 && isDigits(value[:8]) {
		return value[:4] + "-" + value[4:6] + "-" + value[6:8]
	}
	if len(value) >= 4 && isDigits(value[:4]) {
		return value[:4]
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
