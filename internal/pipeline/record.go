package pipeline

import (
	"errors"
	"time"

	"shelver/internal/filetype"
	"shelver/internal/namer"
	"shelver/internal/runlog"
	"shelver/internal/services"
	"shelver/internal/signature"
)

// Outcome is the terminal state of one file.
type Outcome string

const (
	OutcomeRenamed     Outcome = "renamed"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{OutcomeRenamed, OutcomeQuarantined, OutcomeSkipped, OutcomeFailed}

// ReasonCanceled marks records left in place because the run was interrupted.
const ReasonCanceled = "canceled"

// Record is the per-file state of a run.
type Record struct {
	OriginalPath  string          `json:"original_path"`
	Format        filetype.Format `json:"format,omitempty"`
	Signature     signature.Token `json:"signature,omitempty"`
	CandidateName string          `json:"candidate_name,omitempty"`
	SanitizedName string          `json:"sanitized_name,omitempty"`
	// FinalPath is where the file ended up, or would end up on a dry run.
	// It is empty when the file was left in place.
	FinalPath  string  `json:"final_path,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Source     string  `json:"source,omitempty"`
	Transcoded bool    `json:"transcoded,omitempty"`
	Attempts   int     `json:"attempts,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Error      string  `json:"error,omitempty"`

	Err        error            `json:"-"`
	Suggestion namer.Suggestion `json:"-"`
	Elapsed    time.Duration    `json:"-"`
}

func (r *Record) fail(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
		r.Reason = reasonFor(err)
	}
}

func reasonFor(err error) string {
	for _, marker := range []error{
		services.ErrSignature,
		services.ErrTypeUnknown,
		services.ErrNameRejected,
		services.ErrAllocationExhausted,
		services.ErrTimeout,
		services.ErrExternalTool,
		services.ErrExtractionFailed,
		services.ErrConfiguration,
		services.ErrValidation,
		services.ErrTransient,
	} {
		if errors.Is(err, marker) {
			return marker.Error()
		}
	}
	return "error"
}

func (r *Record) journalEntry(runID string) runlog.Entry {
	entry := runlog.Entry{
		RunID:        runID,
		OriginalPath: r.OriginalPath,
		Outcome:      string(r.Outcome),
		Format:       r.Format.String(),
		Signature:    r.Signature.String(),
		Source:       r.Source,
		Transcoded:   r.Transcoded,
		Reason:       r.Reason,
		Error:        r.Error,
	}
	if r.Outcome == OutcomeRenamed {
		entry.RenamedPath = r.FinalPath
	} else {
		entry.Destination = r.FinalPath
	}
	s := r.Suggestion
	md := runlog.Metadata{
		Title:           s.Title,
		Author:          s.Author,
		PublicationDate: s.PublicationDate,
		Summary:         s.Summary,
		DomainTopics:    s.Topics,
	}
	if !md.Empty() {
		entry.Metadata = &md
	}
	entry.Model = s.Model
	entry.Endpoint = s.Endpoint
	entry.Confidence = s.Confidence
	return entry
}

// Report is the result of a run. Records keep input order.
type Report struct {
	RunID   string          `json:"run_id"`
	DryRun  bool            `json:"dry_run,omitempty"`
	LogPath string          `json:"log_path,omitempty"`
	Records []Record        `json:"records"`
	Counts  map[Outcome]int `json:"counts"`
	Elapsed time.Duration   `json:"-"`
}

// Count returns how many records ended with outcome o.
func (r Report) Count(o Outcome) int {
	return r.Counts[o]
}

func (r *Report) tally() {
	r.Counts = make(map[Outcome]int, len(Outcomes))
	for _, o := range Outcomes {
		r.Counts[o] = 0
	}
	for _, rec := range r.Records {
		r.Counts[rec.Outcome]++
	}
}
