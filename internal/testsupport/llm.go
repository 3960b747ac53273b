package testsupport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/segmentio/encoding/json"
)

// LLMServer is a fake chat-completions endpoint.
type LLMServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses []string
	requests  []string
}

// NewLLMServer serves the given message contents in order, repeating the
// last one once the list is exhausted. The server is closed on test cleanup.
func NewLLMServer(t testing.TB, responses ...string) *LLMServer {
	t.Helper()
	s := &LLMServer{responses: responses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *LLMServer) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	prompt := ""
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	s.requests = append(s.requests, prompt)
	idx := min(len(s.requests)-1, len(s.responses)-1)
	content := ""
	if idx >= 0 {
		content = s.responses[idx]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	})
}

// Requests returns the user prompts received so far.
func (s *LLMServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// NameResponse renders a filename suggestion payload.
func NameResponse(filename, title, author string) string {
	data, _ := json.Marshal(map[string]any{
		"filename":         filename,
		"title":            title,
		"author":           author,
		"publication_date": "2001",
		"summary":          "A test document.",
		"domain_topics":    []string{"testing"},
		"confidence":       0.9,
	})
	return string(data)
}
