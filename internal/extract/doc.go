// Package extract pulls plain text out of documents for naming.
//
// PDF text comes from pdftotext, EPUB text from the spine XHTML, MOBI text
// from the PalmDB records (falling back to ebook-convert for compression
// schemes the reader cannot decode), CHM text from ebook-convert, and plain
// text files are decoded with BOM detection. Empty output counts as failure.
// Results are capped at the configured character budget.
package extract
