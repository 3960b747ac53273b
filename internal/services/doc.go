// Package services defines shared utilities consumed by the rename pipeline,
// the dedup pass, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the run ID, document path, and stage name for
//     logging.
//   - Structured error markers plus the Wrap helper that translate per-file
//     failures into consistent routes (failed, quarantine, skip).
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform.
package services
