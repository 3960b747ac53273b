package naming_test

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelver/internal/naming"
	"shelver/internal/services"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Deep Learning - Ian Goodfellow", "Deep Learning - Ian Goodfellow"},
		{"label prefix", "Filename: Deep Learning", "Deep Learning"},
		{"label prefix case insensitive", "  NEW FILENAME:   Atlas of Anatomy", "Atlas of Anatomy"},
		{"bold label", "**Title:** The Art of War", "The Art of War"},
		{"stacked labels", "Filename: Title: Dune", "Dune"},
		{"line breaks", "The Art\nof\r\nWar\tEdition", "The Art of War Edition"},
		{"surrounding quotes", `  "The Hobbit"  `, "The Hobbit"},
		{"smart quotes", "“The Hobbit”", "The Hobbit"},
		{"embedded quotes", `Don't Panic "Guide"`, "Don t Panic Guide"},
		{"emphasis markers", "***Dune*** ## Messiah ~~", "Dune Messiah"},
		{"double underscore", "Dune__Messiah", "Dune Messiah"},
		{"single underscore kept", "Dune_Messiah", "Dune_Messiah"},
		{"path separators", "AC/DC Live\\Bootleg", "AC-DC Live-Bootleg"},
		{"colon", "Gödel, Escher, Bach: An Eternal Golden Braid", "Gödel, Escher, Bach - An Eternal Golden Braid"},
		{"unsafe dropped", "What? <Really> |Yes|", "What Really Yes"},
		{"echoed extension", "Clean Code.pdf", "Clean Code"},
		{"echoed extension upper", "Clean Code.EPUB", "Clean Code"},
		{"nfc", "Café Society", "Café Society"},
		{"trailing dots", "Et cetera...", "Et cetera"},
		{"leading dash", "--verbose manual", "verbose manual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := naming.Sanitize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeEmptyIsNoName(t *testing.T) {
	for _, in := range []string{"", "   ", "\"\"", "Filename:", "***", "\n\t", "/", "-- ..", "Title: ..."} {
		got, err := naming.Sanitize(in)
		assert.Empty(t, got, "input %q", in)
		assert.True(t, errors.Is(err, naming.ErrNoName), "input %q: %v", in, err)
		assert.True(t, errors.Is(err, services.ErrNameRejected), "input %q", in)
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	s := naming.NewSanitizer(nil, 10)
	got, err := s.Sanitize("ééééééééé")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 10)
	assert.True(t, strings.HasPrefix("ééééééééé", got))
	assert.Equal(t, "ééééé", got)
}

func TestSanitizeCustomPrefixes(t *testing.T) {
	s := naming.NewSanitizer([]string{"Suggested:"}, 0)
	got, err := s.Sanitize("Suggested: Filename: Dune")
	require.NoError(t, err)
	assert.Equal(t, "Filename - Dune", got)
}

func TestSanitizeNeverReturnsUnsafeOutput(t *testing.T) {
	inputs := []string{
		"a/b\\c", " \x00lead", "trail\x7f ", " sep ", "x\x1by", "/../../etc/passwd",
		"Title:\n\n\"\"", "   **  __  ", "日本語 タイトル\n", strings.Repeat("ab/", 200),
		"\ufeffBOM title", "tab\tseparated\tname", "\xff\xfe invalid utf8",
	}
	for _, in := range inputs {
		got, err := naming.Sanitize(in)
		if err != nil {
			assert.ErrorIs(t, err, naming.ErrNoName)
			continue
		}
		assert.NotContains(t, got, "/", "input %q", in)
		assert.NotContains(t, got, "\\", "input %q", in)
		assert.Equal(t, strings.TrimSpace(got), got, "input %q", in)
		for _, r := range got {
			assert.False(t, unicode.IsControl(r), "input %q produced control rune %U", in, r)
		}
		assert.LessOrEqual(t, len(got), naming.DefaultMaxBytes)
	}
}

func TestIsAcceptable(t *testing.T) {
	rejected := []string{"", "  ", "null", "NULL", `"null"`, "None", "nil", "N/A", "not available", "Unknown", "null.pdf", "\n"}
	for _, name := range rejected {
		assert.False(t, naming.IsAcceptable(name), "expected %q to be rejected", name)
	}
	accepted := []string{"Dune", "Null Pointer Analysis", "Unknown Pleasures - Joy Division", "n/a dictionary"}
	for _, name := range accepted {
		assert.True(t, naming.IsAcceptable(name), "expected %q to be accepted", name)
	}
}

func TestAcceptableSeesThroughDecoration(t *testing.T) {
	rejected := []string{"**N/A**", "Filename: N/A", "Title: null", "`none`", "**Not Available**", "## Unknown", "New filename: \"n/a.pdf\""}
	for _, name := range rejected {
		assert.False(t, naming.Acceptable(name), "expected %q to be rejected", name)
	}
	for _, name := range []string{"**AC/DC Biography**", "Title: Null Hypothesis Testing", "n/a dictionary"} {
		assert.True(t, naming.Acceptable(name), "expected %q to be accepted", name)
	}
}

func TestCleanKeepsSeparators(t *testing.T) {
	s := naming.NewSanitizer(nil, 0)
	assert.Equal(t, "N/A", s.Clean("  **N/A**  "))
	assert.Equal(t, "AC/DC", s.Clean("Filename: \"AC/DC\""))
}
