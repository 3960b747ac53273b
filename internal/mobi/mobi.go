package mobi

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

const (
	palmHeaderLen = 78
	typeOffset    = 60

	// TypeMOBI is the type/creator pair of a MOBI book.
	TypeMOBI = "BOOKMOBI"
	// TypePalmDOC is the type/creator pair of a plain PalmDOC book.
	TypePalmDOC = "TEXtREAd"

	compressionNone     = 1
	compressionPalmDOC  = 2
	compressionHuffCDIC = 17480

	encodingCP1252 = 1252
	encodingUTF8   = 65001

	exthFlag = 0x40

	exthAuthor    = 100
	exthPublisher = 101
	exthDate      = 106
	exthTitle     = 503
)

var (
	// ErrNotPalmDB reports data without a BOOKMOBI or TEXtREAd database type.
	ErrNotPalmDB = errors.New("mobi: not a PalmDB book")
	// ErrUnsupportedCompression reports text records this package cannot decode.
	ErrUnsupportedCompression = errors.New("mobi: unsupported text compression")
)

// IsPalmDB reports whether header (at least the first 68 bytes of a file)
// carries a BOOKMOBI or TEXtREAd database type.
func IsPalmDB(header []byte) bool {
	if len(header) < typeOffset+8 {
		return false
	}
	kind := string(header[typeOffset : typeOffset+8])
	return kind == TypeMOBI || kind == TypePalmDOC
}

// Book is a parsed PalmDB ebook.
type Book struct {
	// DBType is TypeMOBI or TypePalmDOC.
	DBType string
	// DBName is the NUL-terminated database name from the PalmDB header.
	DBName string
	// FullName is the MOBI full name, empty for PalmDOC books.
	FullName  string
	Authors   []string
	Title     string
	Publisher string
	Date      string

	compression int
	textLength  int
	textRecords int
	encoding    int
	extraFlags  uint16
	records     [][]byte
}

// Open reads and parses the book at path.
func Open(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Parse(data)
}

// Parse decodes an in-memory PalmDB book.
func Parse(data []byte) (*Book, error) {
	if !IsPalmDB(data) || len(data) < palmHeaderLen {
		return nil, ErrNotPalmDB
	}
	b := &Book{
		DBType: string(data[typeOffset : typeOffset+8]),
		DBName: cString(data[:32]),
	}
	records, err := splitRecords(data)
	if err != nil {
		return nil, err
	}
	b.records = records
	if len(records) == 0 {
		return nil, errors.New("mobi: no records")
	}
	if err := b.parseRecord0(records[0]); err != nil {
		return nil, err
	}
	return b, nil
}

func splitRecords(data []byte) ([][]byte, error) {
	count := int(binary.BigEndian.Uint16(data[76:78]))
	if len(data) < palmHeaderLen+8*count {
		return nil, errors.Errorf("mobi: record list truncated (%d records)", count)
	}
	offsets := make([]int, count)
	for i := range count {
		entry := data[palmHeaderLen+8*i:]
		offsets[i] = int(binary.BigEndian.Uint32(entry[:4]))
	}
	records := make([][]byte, count)
	for i, start := range offsets {
		end := len(data)
		if i+1 < count {
			end = offsets[i+1]
		}
		if start > end || end > len(data) {
			return nil, errors.Errorf("mobi: record %d out of range", i)
		}
		records[i] = data[start:end]
	}
	return records, nil
}

func (b *Book) parseRecord0(rec []byte) error {
	if len(rec) < 16 {
		return errors.New("mobi: record 0 truncated")
	}
	b.compression = int(binary.BigEndian.Uint16(rec[0:2]))
	b.textLength = int(binary.BigEndian.Uint32(rec[4:8]))
	b.textRecords = int(binary.BigEndian.Uint16(rec[8:10]))
	b.encoding = encodingCP1252
	if b.DBType != TypeMOBI || len(rec) < 24 || string(rec[16:20]) != "MOBI" {
		return nil
	}

	headerLen := int(binary.BigEndian.Uint32(rec[20:24]))
	if len(rec) >= 32 {
		b.encoding = int(binary.BigEndian.Uint32(rec[28:32]))
	}
	if len(rec) >= 92 {
		off := int(binary.BigEndian.Uint32(rec[84:88]))
		n := int(binary.BigEndian.Uint32(rec[88:92]))
		if off >= 0 && n > 0 && off+n <= len(rec) {
			b.FullName = b.decode(rec[off : off+n])
		}
	}
	if headerLen >= 0xE4 && len(rec) >= 0xF4 {
		b.extraFlags = binary.BigEndian.Uint16(rec[0xF2:0xF4])
	}
	if len(rec) >= 132 && binary.BigEndian.Uint32(rec[128:132])&exthFlag != 0 {
		b.parseEXTH(rec, 16+headerLen)
	}
	if b.Title == "" {
		b.Title = b.FullName
	}
	return nil
}

func (b *Book) parseEXTH(rec []byte, start int) {
	if start+12 > len(rec) || string(rec[start:start+4]) != "EXTH" {
		return
	}
	count := int(binary.BigEndian.Uint32(rec[start+8 : start+12]))
	pos := start + 12
	for range count {
		if pos+8 > len(rec) {
			return
		}
		kind := binary.BigEndian.Uint32(rec[pos : pos+4])
		size := int(binary.BigEndian.Uint32(rec[pos+4 : pos+8]))
		if size < 8 || pos+size > len(rec) {
			return
		}
		value := strings.TrimSpace(b.decode(rec[pos+8 : pos+size]))
		switch kind {
		case exthAuthor:
			if value != "" {
				b.Authors = append(b.Authors, value)
			}
		case exthTitle:
			b.Title = value
		case exthPublisher:
			b.Publisher = value
		case exthDate:
			b.Date = value
		}
		pos += size
	}
}

// Text returns the decoded book text, stopping once maxRunes runes are
// available. A non-positive maxRunes means no limit.
func (b *Book) Text(maxRunes int) (string, error) {
	switch b.compression {
	case compressionNone, compressionPalmDOC:
	case compressionHuffCDIC:
		return "", errors.Wrap(ErrUnsupportedCompression, "HUFF/CDIC")
	default:
		return "", errors.Wrapf(ErrUnsupportedCompression, "compression %d", b.compression)
	}
	var raw bytes.Buffer
	for i := 1; i <= b.textRecords && i < len(b.records); i++ {
		rec := b.trimTrailing(b.records[i])
		if b.compression == compressionPalmDOC {
			rec = decompressPalmDOC(rec)
		}
		raw.Write(rec)
		if maxRunes > 0 && raw.Len() >= maxRunes*4 {
			break
		}
	}
	data := raw.Bytes()
	if b.textLength > 0 && len(data) > b.textLength {
		data = data[:b.textLength]
	}
	text := b.decode(data)
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		text = string([]rune(text)[:maxRunes])
	}
	return text, nil
}

// trimTrailing drops the trailing entries MOBI appends to text records.
func (b *Book) trimTrailing(rec []byte) []byte {
	flags := b.extraFlags
	if flags == 0 {
		return rec
	}
	for bit := 15; bit >= 1; bit-- {
		if flags&(1<<bit) == 0 {
			continue
		}
		size := backwardVarint(rec)
		if size <= 0 || size > len(rec) {
			return rec
		}
		rec = rec[:len(rec)-size]
	}
	if flags&1 != 0 && len(rec) > 0 {
		n := int(rec[len(rec)-1]&0x3) + 1
		if n <= len(rec) {
			rec = rec[:len(rec)-n]
		}
	}
	return rec
}

func backwardVarint(rec []byte) int {
	value, shift := 0, 0
	for i := len(rec) - 1; i >= 0 && shift < 28; i-- {
		c := rec[i]
		value |= int(c&0x7F) << shift
		shift += 7
		if c&0x80 != 0 {
			break
		}
	}
	return value
}

// decompressPalmDOC expands PalmDOC LZ77 compressed data.
func decompressPalmDOC(in []byte) []byte {
	out := make([]byte, 0, len(in)*2)
	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case c == 0 || (c >= 0x09 && c <= 0x7F):
			out = append(out, c)
		case c >= 0x01 && c <= 0x08:
			end := min(i+1+int(c), len(in))
			out = append(out, in[i+1:end]...)
			i = end - 1
		case c >= 0x80 && c <= 0xBF:
			if i+1 >= len(in) {
				return out
			}
			pair := int(c)<<8 | int(in[i+1])
			i++
			dist := (pair >> 3) & 0x7FF
			length := pair&0x7 + 3
			if dist == 0 || dist > len(out) {
				continue
			}
			for range length {
				out = append(out, out[len(out)-dist])
			}
		default:
			out = append(out, ' ', c^0x80)
		}
	}
	return out
}

func (b *Book) decode(data []byte) string {
	if b.encoding == encodingUTF8 {
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
