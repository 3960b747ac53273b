// Package epub reads the parts of an EPUB container shelver needs: the
// mimetype marker used for content-type detection, the OPF package metadata
// used for naming, and the spine documents used for text extraction.
package epub
