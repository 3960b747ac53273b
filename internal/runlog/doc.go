// Package runlog writes the per-run rename journal and reads rename history
// back for sidecar generation.
//
// Each rename run appends one JSON object per file to
// renames-<run id>.jsonl in the log directory. BuildMapping reads those
// journals, other JSONL/NDJSON files using the common original/renamed key
// spellings, and plain-text logs with "Renamed: a -> b", "Original: a New: b"
// or "a => b" lines. The pipeline itself never reads the journal.
package runlog
