package namer

import (
	"context"
	"path/filepath"

	"shelver/internal/naming"
	"shelver/internal/services"
	"shelver/internal/services/llm"
)

// LLM asks a chat-completion model to name the document from its text.
type LLM struct {
	client *llm.Client
}

// NewLLM wraps an llm client.
func NewLLM(client *llm.Client) LLM {
	return LLM{client: client}
}

func (l LLM) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if req.Excerpt == nil {
		return Suggestion{}, ErrNoSuggestion
	}
	excerpt, err := req.Excerpt(ctx)
	if err != nil {
		return Suggestion{}, err
	}
	resp, err := l.client.SuggestFilename(ctx, llm.NameRequest{
		CurrentName: filepath.Base(req.Path),
		Format:      string(req.Format),
		Excerpt:     excerpt,
		Rejected:    req.Rejected,
	})
	if err != nil {
		return Suggestion{}, services.Wrap(services.ErrExtractionFailed, "naming", "llm", l.client.Model(), err)
	}
	name := resp.Filename
	if name == "" {
		name = naming.Compose(resp.Title, resp.Author)
	}
	confidence := resp.Confidence
	return Suggestion{
		Name:            name,
		Source:          SourceLLM,
		Title:           resp.Title,
		Author:          resp.Author,
		PublicationDate: resp.PublicationDate,
		Summary:         resp.Summary,
		Topics:          resp.DomainTopics,
		Confidence:      &confidence,
		Model:           l.client.Model(),
		Endpoint:        l.client.Endpoint(),
	}, nil
}
