// Package mobi reads the PalmDB container used by MOBI and PalmDOC ebooks.
//
// It exposes the database type, the MOBI full name, EXTH metadata records
// (author, title, publication date) and the text of books stored without
// compression or with PalmDOC compression. HUFF/CDIC compressed books report
// ErrUnsupportedCompression so callers can fall back to an external converter.
package mobi
