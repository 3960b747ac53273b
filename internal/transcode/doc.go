// Package transcode converts ebooks with calibre's ebook-convert.
//
// Conversions run inside a fresh scratch directory. The caller owns the
// returned Output and must call Cleanup once the converted file has been
// placed or read; the source file is never touched here.
package transcode
