package llm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/segmentio/encoding/json"
)

const snippetRunes = 160

// DecodeLLMJSON unmarshals a model reply into target. Replies wrapped in a
// markdown fence or surrounded by prose are narrowed to the outermost
// {...} before a second attempt.
func DecodeLLMJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	firstErr := json.Unmarshal([]byte(content), target)
	if firstErr == nil {
		return nil
	}
	object := extractObject(content)
	if object == "" || object == content {
		return fmt.Errorf("%w (payload snippet: %s)", firstErr, summarizePayloadSnippet(content))
	}
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizePayloadSnippet(object))
	}
	return nil
}

// extractObject drops a ``` or ```json fence and any text outside the
// first '{' and last '}'.
func extractObject(content string) string {
	body := strings.TrimSpace(content)
	if rest, fenced := strings.CutPrefix(body, "```"); fenced {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		if end := strings.LastIndex(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		body = strings.TrimSpace(rest)
	}
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start > 0 && end > start {
		body = strings.TrimSpace(body[start : end+1])
	}
	return body
}

// summarizePayloadSnippet collapses whitespace and truncates for error text.
func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	switch {
	case clean == "":
		return "<empty>"
	case utf8.RuneCountInString(clean) <= snippetRunes:
		return clean
	}
	return string([]rune(clean)[:snippetRunes]) + "..."
}
