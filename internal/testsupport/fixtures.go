package testsupport

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// PDFOptions describes a generated single-page PDF.
type PDFOptions struct {
	Title        string
	Author       string
	CreationDate string
	Text         string
}

// PDF returns a minimal, well-formed single-page PDF with a correct
// cross-reference table and an optional document information dictionary.
func PDF(opts PDFOptions) []byte {
	text := opts.Text
	if text == "" {
		text = "Hello"
	}
	content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", pdfEscape(text))

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	hasInfo := opts.Title != "" || opts.Author != "" || opts.CreationDate != ""
	if hasInfo {
		info := "<<"
		if opts.Title != "" {
			info += fmt.Sprintf(" /Title (%s)", pdfEscape(opts.Title))
		}
		if opts.Author != "" {
			info += fmt.Sprintf(" /Author (%s)", pdfEscape(opts.Author))
		}
		if opts.CreationDate != "" {
			info += fmt.Sprintf(" /CreationDate (%s)", pdfEscape(opts.CreationDate))
		}
		objects = append(objects, info+" >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R", len(objects)+1)
	if hasInfo {
		fmt.Fprintf(&buf, " /Info %d 0 R", len(objects))
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func pdfEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}

// EPUBOptions describes a generated EPUB.
type EPUBOptions struct {
	Title  string
	Author string
	Date   string
	// Chapters are XHTML body fragments, one spine document each.
	Chapters []string
	// OmitMimetype leaves out the mimetype entry but keeps container.xml.
	OmitMimetype bool
}

// EPUB returns a minimal EPUB 3 container.
func EPUB(opts EPUBOptions) []byte {
	if len(opts.Chapters) == 0 {
		opts.Chapters = []string{"<p>Chapter one.</p>"}
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if !opts.OmitMimetype {
		w, _ := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		_, _ = w.Write([]byte("application/epub+zip"))
	}
	writeZipEntry(zw, "META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for i, body := range opts.Chapters {
		name := fmt.Sprintf("ch%d.xhtml", i+1)
		fmt.Fprintf(&manifest, "    <item id=\"c%d\" href=\"text/%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, name)
		fmt.Fprintf(&spine, "    <itemref idref=\"c%d\"/>\n", i+1)
		writeZipEntry(zw, "OEBPS/text/"+name, fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>%d</title><style>p{}</style></head>
<body>%s</body></html>`, i+1, body))
	}

	var meta strings.Builder
	if opts.Title != "" {
		fmt.Fprintf(&meta, "    <dc:title>%s</dc:title>\n", xmlEscape(opts.Title))
	}
	if opts.Author != "" {
		fmt.Fprintf(&meta, "    <dc:creator id=\"a1\">%s</dc:creator>\n    <meta refines=\"#a1\" property=\"role\">aut</meta>\n", xmlEscape(opts.Author))
	}
	if opts.Date != "" {
		fmt.Fprintf(&meta, "    <dc:date>%s</dc:date>\n", xmlEscape(opts.Date))
	}
	writeZipEntry(zw, "OEBPS/content.opf", fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`, meta.String(), manifest.String(), spine.String()))
	_ = zw.Close()
	return buf.Bytes()
}

// Zip returns a plain zip archive holding one entry, without EPUB markers.
func Zip(name, content string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	writeZipEntry(zw, name, content)
	_ = zw.Close()
	return buf.Bytes()
}

func writeZipEntry(zw *zip.Writer, name, content string) {
	w, _ := zw.Create(name)
	_, _ = w.Write([]byte(content))
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// MOBIOptions describes a generated MOBI file.
type MOBIOptions struct {
	Title  string
	Author string
	Text   string
	// DBType overrides the PalmDB type/creator pair; defaults to BOOKMOBI.
	DBType string
}

// MOBI returns a PalmDB container with an uncompressed text record, a MOBI
// header, and EXTH author/title records.
func MOBI(opts MOBIOptions) []byte {
	if opts.DBType == "" {
		opts.DBType = "BOOKMOBI"
	}
	if opts.Text == "" {
		opts.Text = "Once upon a time."
	}
	const mobiHeaderLen = 232

	var exth bytes.Buffer
	var records [][2]any
	if opts.Author != "" {
		records = append(records, [2]any{uint32(100), opts.Author})
	}
	if opts.Title != "" {
		records = append(records, [2]any{uint32(503), opts.Title})
	}
	var exthBody bytes.Buffer
	for _, rec := range records {
		data := rec[1].(string)
		_ = binary.Write(&exthBody, binary.BigEndian, rec[0].(uint32))
		_ = binary.Write(&exthBody, binary.BigEndian, uint32(8+len(data)))
		exthBody.WriteString(data)
	}
	if len(records) > 0 {
		exth.WriteString("EXTH")
		_ = binary.Write(&exth, binary.BigEndian, uint32(12+exthBody.Len()))
		_ = binary.Write(&exth, binary.BigEndian, uint32(len(records)))
		exth.Write(exthBody.Bytes())
		for exth.Len()%4 != 0 {
			exth.WriteByte(0)
		}
	}

	fullName := opts.Title
	rec0 := make([]byte, 16+mobiHeaderLen)
	binary.BigEndian.PutUint16(rec0[0:], 1) // no compression
	binary.BigEndian.PutUint32(rec0[4:], uint32(len(opts.Text)))
	binary.BigEndian.PutUint16(rec0[8:], 1)
	binary.BigEndian.PutUint16(rec0[10:], 4096)
	copy(rec0[16:], "MOBI")
	binary.BigEndian.PutUint32(rec0[20:], mobiHeaderLen)
	binary.BigEndian.PutUint32(rec0[24:], 2)
	binary.BigEndian.PutUint32(rec0[28:], 65001)
	nameOffset := len(rec0) + exth.Len()
	binary.BigEndian.PutUint32(rec0[84:], uint32(nameOffset))
	binary.BigEndian.PutUint32(rec0[88:], uint32(len(fullName)))
	if len(records) > 0 {
		binary.BigEndian.PutUint32(rec0[128:], 0x40)
	}
	rec0 = append(rec0, exth.Bytes()...)
	rec0 = append(rec0, fullName...)
	rec0 = append(rec0, 0, 0)

	recs := [][]byte{rec0, []byte(opts.Text)}

	header := make([]byte, 78)
	dbName := opts.Title
	if len(dbName) > 31 {
		dbName = dbName[:31]
	}
	copy(header, strings.ReplaceAll(dbName, " ", "_"))
	copy(header[60:], opts.DBType)
	binary.BigEndian.PutUint16(header[76:], uint16(len(recs)))

	var buf bytes.Buffer
	buf.Write(header)
	offset := 78 + 8*len(recs) + 2
	for i, rec := range recs {
		entry := make([]byte, 8)
		binary.BigEndian.PutUint32(entry, uint32(offset))
		binary.BigEndian.PutUint32(entry[4:], uint32(i))
		buf.Write(entry)
		offset += len(rec)
	}
	buf.Write([]byte{0, 0})
	for _, rec := range recs {
		buf.Write(rec)
	}
	return buf.Bytes()
}

// CHM returns bytes carrying the ITSF signature of a compiled HTML help file.
func CHM() []byte {
	out := make([]byte, 96)
	copy(out, "ITSF")
	binary.LittleEndian.PutUint32(out[4:], 3)
	binary.LittleEndian.PutUint32(out[8:], 96)
	return out
}
