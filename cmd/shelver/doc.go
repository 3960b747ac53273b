// Package main hosts the shelver CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration loading and structured logging
// once, then hands each invocation to an internal package: rename runs the
// pipeline, dedup and sign drive the duplicate pass, and sidecar writes the
// retrieval metadata next to already-renamed documents.
//
// Keep this package lean: add behaviour to the internal packages first and
// surface it here through commands or flags.
package main
