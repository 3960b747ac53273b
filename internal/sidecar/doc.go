// Package sidecar writes one JSON metadata document per renamed publication
// for downstream indexing.
//
// Metadata comes from the rename journal when runlog.BuildMapping knows the
// file, and from the filename otherwise. Sidecars are written next to each
// file as <name>.json, or flat into an output directory.
package sidecar
