package runlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// FilePrefix and FileSuffix frame journal file names.
const (
	FilePrefix = "renames-"
	FileSuffix = ".jsonl"
)

// Metadata is the descriptive data recorded for a renamed file.
type Metadata struct {
	Title           string   `json:"title,omitempty"`
	Author          string   `json:"author,omitempty"`
	PublicationDate string   `json:"publication_date,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	DomainTopics    []string `json:"domain_topics,omitempty"`
}

// Empty reports whether no field is set.
func (m Metadata) Empty() bool {
	return m.Title == "" && m.Author == "" && m.PublicationDate == "" && m.Summary == "" && len(m.DomainTopics) == 0
}

// Entry is one journal line.
type Entry struct {
	Timestamp    time.Time `json:"ts"`
	RunID        string    `json:"run_id"`
	OriginalPath string    `json:"original_path"`
	// RenamedPath is set only for files placed in the output directory.
	RenamedPath string `json:"renamed_path,omitempty"`
	// Destination is where a failed or quarantined file was moved.
	Destination string    `json:"destination,omitempty"`
	Outcome     string    `json:"outcome"`
	Format      string    `json:"format,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Source      string    `json:"source,omitempty"`
	Transcoded  bool      `json:"transcoded,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
	Model       string    `json:"model,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Writer appends entries to one journal file. It is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// FileName returns the journal file name for a run.
func FileName(runID string) string {
	return FilePrefix + runID + FileSuffix
}

// Create opens the journal for runID in dir, creating dir as needed.
func Create(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log dir %s", dir)
	}
	path := filepath.Join(dir, FileName(runID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open run log %s", path)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &Writer{path: path, file: f, enc: enc}, nil
}

// Path returns the journal location.
func (w *Writer) Path() string { return w.path }

// Write appends e as one line.
func (w *Writer) Write(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return errors.Wrap(err, "write run log entry")
	}
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(w.file.Close())
}
