package naming

import (
	"regexp"
	"strings"
)

var filenameMetadataPatterns = []*regexp.Regexp{
	// 2021_DeepLearningForFinance_Smith
	regexp.MustCompile(`^(?P<year>\d{4})[_\- ](?P<title>[^_\-]+)[_\- ](?P<author>[^.]+)$`),
	// DeepLearningForFinance - John Smith
	regexp.MustCompile(`^(?P<title>[^\-]+)\s*-\s*(?P<author>[^.]+)$`),
}

// Inferred is bibliographic data recovered from a filename stem.
type Inferred struct {
	Title  string
	Author string
	Year   string
}

// InferFromFilename parses stems such as "2021_Title_Author" and
// "Title - Author". ok is false when no pattern matches.
func InferFromFilename(stem string) (Inferred, bool) {
	stem = strings.TrimSpace(stem)
	for _, pattern := range filenameMetadataPatterns {
		match := pattern.FindStringSubmatch(stem)
		if match == nil {
			continue
		}
		var out Inferred
		for i, group := range pattern.SubexpNames() {
			value := strings.TrimSpace(strings.ReplaceAll(match[i], "_", " "))
			switch group {
			case "title":
				out.Title = value
			case "author":
				out.Author = value
			case "year":
				out.Year = value
			}
		}
		return out, true
	}
	return Inferred{}, false
}

// Compose joins a title and an optional author as "Title - Author".
func Compose(title, author string) string {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	switch {
	case title == "":
		return ""
	case author == "":
		return title
	default:
		return title + " - " + author
	}
}

// WithSignature prefixes a stem with a content token so duplicate passes can
// key on the first characters of the filename.
func WithSignature(token, stem string) string {
	if token == "" {
		return stem
	}
	return token + "_" + stem
}
