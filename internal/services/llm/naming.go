package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FilenamePrompt instructs the model to propose a descriptive filename and
// the bibliographic fields it based the name on.
const FilenamePrompt = `You name documents in a personal library.
You receive the current filename, the detected format, and an excerpt of the document text.
Respond with JSON only, using exactly these keys:
{"filename": string, "title": string, "author": string, "publication_date": string, "summary": string, "domain_topics": [string], "confidence": number}
Rules for "filename":
- Use the form "Title - Author" when an author is evident, otherwise just the title.
- Do not include a file extension, path separators, quotes, or markdown.
- Keep it under 120 characters and in the document's own language.
- If the text does not reveal what the document is, return an empty string.
"publication_date" is a year or ISO date when stated in the text, otherwise empty.
"summary" is one sentence. "confidence" is between 0 and 1.`

// NameRequest describes the document a filename is wanted for.
type NameRequest struct {
	CurrentName string
	Format      string
	Excerpt     string
	// Rejected lists names from earlier attempts that were not acceptable.
	Rejected []string
}

// NameSuggestion is the model's answer to a NameRequest.
type NameSuggestion struct {
	Filename        string   `json:"filename"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	PublicationDate string   `json:"publication_date"`
	Summary         string   `json:"summary"`
	DomainTopics    []string `json:"domain_topics"`
	Confidence      float64  `json:"confidence"`
	Raw             string   `json:"-"`
}

// SuggestFilename asks the model for a filename for the supplied document excerpt.
func (c *Client) SuggestFilename(ctx context.Context, req NameRequest) (NameSuggestion, error) {
	var empty NameSuggestion
	excerpt := strings.TrimSpace(req.Excerpt)
	if excerpt == "" {
		return empty, errors.New("llm suggest: excerpt required")
	}
	content, err := c.CompleteJSON(ctx, FilenamePrompt, buildNameUserPrompt(req, excerpt))
	if err != nil {
		return empty, err
	}
	var parsed NameSuggestion
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("llm suggest: parse payload: %w", err)
	}
	parsed.Raw = content
	parsed.Filename = strings.TrimSpace(parsed.Filename)
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Author = strings.TrimSpace(parsed.Author)
	parsed.PublicationDate = strings.TrimSpace(parsed.PublicationDate)
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	topics := parsed.DomainTopics[:0]
	for _, topic := range parsed.DomainTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			topics = append(topics, topic)
		}
	}
	parsed.DomainTopics = topics
	parsed.Confidence = min(max(parsed.Confidence, 0), 1)
	return parsed, nil
}

func buildNameUserPrompt(req NameRequest, excerpt string) string {
	var b strings.Builder
	b.WriteString("Current filename: ")
	b.WriteString(strings.TrimSpace(req.CurrentName))
	b.WriteString("\nFormat: ")
	b.WriteString(strings.TrimSpace(req.Format))
	if len(req.Rejected) > 0 {
		b.WriteString("\nThese names were rejected, propose something different: ")
		b.WriteString(strings.Join(req.Rejected, "; "))
	}
	b.WriteString("\n\nDocument excerpt:\n")
	b.WriteString(excerpt)
	return b.String()
}
