// Package preflight provides readiness checks for the filesystem paths,
// external tools, and language-model endpoint shelver depends on.
//
// The "shelver preflight" command prints every result. "shelver rename"
// runs the same checks and refuses to start when a required one fails, so a
// batch never begins against an unusable target directory or a missing
// converter.
package preflight
