// Package pdfdoc inspects PDF files for shelver.
//
// Structure and document information come from pdfcpu, which runs in-process
// behind a recover guard and the caller's context deadline. Text extraction
// shells out to poppler's pdftotext.
package pdfdoc
