// Package pipeline renames a batch of documents.
//
// Each input file moves through signature, type resolution, naming and
// placement and ends in exactly one Outcome. Files whose type cannot be
// resolved go to the quarantine directory; files that cannot be named,
// converted or placed go to the failed directory under their original name;
// unreadable files are skipped and left untouched. Container formats listed
// in transcode.formats are converted before placement and the original is
// removed only once the converted copy is in place.
//
// Workers process files concurrently. Placement into any one directory is
// serialized by the allocator session, which also remembers every path it
// handed out during the run. Every record is appended to the run journal
// (see package runlog) unless the run is a dry run.
package pipeline
