package filetype

import "strings"

// Format is a document format shelver knows how to handle.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatEPUB    Format = "epub"
	FormatMOBI    Format = "mobi"
	FormatCHM     Format = "chm"
	FormatText    Format = "txt"
	FormatUnknown Format = "unknown"
)

// Known reports whether f is a resolved format.
func (f Format) Known() bool {
	switch f {
	case FormatPDF, FormatEPUB, FormatMOBI, FormatCHM, FormatText:
		return true
	}
	return false
}

// Extension returns the canonical file extension without a dot, or "" for
// FormatUnknown.
func (f Format) Extension() string {
	if !f.Known() {
		return ""
	}
	return string(f)
}

func (f Format) String() string { return string(f) }

// ParseFormat maps a format or extension name to a Format.
func ParseFormat(name string) Format {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	switch name {
	case "text":
		return FormatText
	case "azw", "prc":
		return FormatMOBI
	}
	if f := Format(name); f.Known() {
		return f
	}
	return FormatUnknown
}
