package naming

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"shelver/internal/services"
)

// DefaultMaxBytes caps a sanitized stem, leaving room for a disambiguation
// suffix and extension inside the common 255-byte filename limit.
const DefaultMaxBytes = 200

// DefaultBoilerplatePrefixes are label tokens models like to echo before the answer.
var DefaultBoilerplatePrefixes = []string{"Filename:", "File name:", "New filename:", "Title:", "Name:"}

// ErrNoName reports a candidate that sanitized to nothing.
var ErrNoName = fmt.Errorf("%w: name is empty after sanitization", services.ErrNameRejected)

var documentExtensions = []string{".pdf", ".epub", ".mobi", ".azw3", ".azw", ".chm", ".txt", ".djvu", ".doc", ".docx", ".rtf"}

var unsafeReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " - ",
	"?", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// Sanitizer holds the tunables for Sanitize.
type Sanitizer struct {
	Prefixes []string
	MaxBytes int
}

// NewSanitizer returns a Sanitizer; empty prefixes and non-positive maxBytes
// fall back to the defaults.
func NewSanitizer(prefixes []string, maxBytes int) *Sanitizer {
	if len(prefixes) == 0 {
		prefixes = DefaultBoilerplatePrefixes
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Sanitizer{Prefixes: prefixes, MaxBytes: maxBytes}
}

var defaultSanitizer = NewSanitizer(nil, 0)

// Sanitize cleans raw with the default prefixes and length cap.
func Sanitize(raw string) (string, error) {
	return defaultSanitizer.Sanitize(raw)
}

// Sanitize returns a filename stem with no path separators, control
// characters, or surrounding whitespace. It returns ErrNoName when nothing
// usable remains.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	name := s.clean(raw)
	name = unsafeReplacer.Replace(name)
	name = collapseSpaces(name)
	name = stripExtension(name)
	name = norm.NFC.String(name)
	name = truncateBytes(name, s.MaxBytes)
	name = strings.TrimLeft(name, " .-")
	name = strings.TrimRight(name, " .")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoName
	}
	return name, nil
}

// Clean removes echoed labels, quotes, markdown emphasis and control
// characters but leaves path separators alone, so "**N/A**" reads "N/A".
func (s *Sanitizer) Clean(raw string) string {
	return collapseSpaces(s.clean(raw))
}

func (s *Sanitizer) clean(raw string) string {
	name := s.stripPrefixes(raw)
	name = collapseControls(name)
	name = trimQuotes(name)
	name = replaceQuotes(name)
	return collapseEmphasis(name)
}

// Acceptable applies IsAcceptable to the cleaned candidate, before unsafe
// characters are replaced and a sentinel such as "n/a" stops matching.
func (s *Sanitizer) Acceptable(raw string) bool {
	return IsAcceptable(s.Clean(raw))
}

// Acceptable is Sanitizer.Acceptable with the default prefixes.
func Acceptable(raw string) bool {
	return defaultSanitizer.Acceptable(raw)
}

func (s *Sanitizer) stripPrefixes(raw string) string {
	name := raw
	for {
		trimmed := strings.TrimLeftFunc(name, func(r rune) bool {
			return unicode.IsSpace(r) || isQuote(r) || r == '*' || r == '#' || r == '`'
		})
		stripped := false
		for _, prefix := range s.Prefixes {
			if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
				name = trimmed[len(prefix):]
				stripped = true
				break
			}
		}
		if !stripped {
			return name
		}
	}
}

func collapseControls(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) || r == '\u2028' || r == '\u2029' || r == utf8.RuneError {
			return ' '
		}
		return r
	}, s)
}

func isQuote(r rune) bool {
	switch r {
	case '"', '\'', '`', '‘', '’', '‚', '‛', '“', '”', '„', '«', '»':
		return true
	}
	return false
}

func trimQuotes(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return unicode.IsSpace(r) || isQuote(r) })
}

func replaceQuotes(s string) string {
	return strings.Map(func(r rune) rune {
		if isQuote(r) {
			return ' '
		}
		return r
	}, s)
}

// collapseEmphasis turns markdown emphasis runs into a single space. A lone
// underscore is kept since it is a common word separator in filenames.
func collapseEmphasis(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); {
		r := runes[i]
		if r == '*' || r == '#' || r == '~' || r == '_' {
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			if r == '_' && j-i == 1 {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
			i = j
			continue
		}
		b.WriteRune(r)
		i++
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripExtension(s string) string {
	for {
		lower := strings.ToLower(s)
		stripped := false
		for _, ext := range documentExtensions {
			if len(lower) > len(ext) && strings.HasSuffix(lower, ext) {
				s = strings.TrimSpace(s[:len(s)-len(ext)])
				stripped = true
				break
			}
		}
		if !stripped {
			return s
		}
	}
}

func truncateBytes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

var sentinelNames = map[string]struct{}{
	"null":          {},
	"none":          {},
	"nil":           {},
	"n/a":           {},
	"na":            {},
	"not available": {},
	"unknown":       {},
	"untitled":      {},
	"undefined":     {},
}

// IsAcceptable reports whether a candidate is a usable name rather than an
// empty or "no data" answer. The check ignores surrounding whitespace, quotes,
// and an echoed document extension.
func IsAcceptable(name string) bool {
	trimmed := trimQuotes(collapseControls(name))
	trimmed = strings.ToLower(stripExtension(trimmed))
	trimmed = strings.Trim(trimmed, " .")
	if trimmed == "" {
		return false
	}
	_, sentinel := sentinelNames[trimmed]
	return !sentinel
}
