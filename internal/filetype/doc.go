// Package filetype decides a document's real format from its content.
//
// A Resolver runs an ordered list of Classifiers against each file. Every
// classifier call receives its own scratch directory and a deadline; the
// first classifier that recognises the bytes wins. File extensions are
// never consulted, and a file nothing recognises resolves to FormatUnknown.
package filetype
