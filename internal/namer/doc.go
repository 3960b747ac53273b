// Package namer proposes descriptive names for documents.
//
// Three sources exist: embedded metadata (PDF document information, EPUB
// package metadata, MOBI EXTH records), a language model reading an excerpt
// of the document text, and patterns in the current filename. A Chain asks
// them in configured order and returns the first usable proposal that has
// not already been rejected for the file.
package namer
