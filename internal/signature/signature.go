package signature

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"shelver/internal/services"
	"shelver/internal/textutil"
)

const (
	// Width is the number of hex characters in a token.
	Width = 24
	// Bits is the number of bits a token carries.
	Bits = Width * 4
)

// Token is a 24-character lower-case hex identity token.
type Token string

// String returns the token text.
func (t Token) String() string { return string(t) }

// Short returns the first n characters of the token.
func (t Token) Short(n int) string {
	if n <= 0 || n >= len(t) {
		return string(t)
	}
	return string(t[:n])
}

// FromReader hashes everything r yields. Zero bytes is an error.
func FromReader(r io.Reader) (Token, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", services.Wrap(services.ErrSignature, "signature", "hash content", "read failed", err)
	}
	if n == 0 {
		return "", services.Wrap(services.ErrSignature, "signature", "hash content", "input is empty", nil)
	}
	return Token(hex.EncodeToString(h.Sum(nil))[:Width]), nil
}

// FromFile hashes the file at path.
func FromFile(path string) (Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrSignature, "signature", "open file", path, err)
	}
	defer f.Close()
	return FromReader(f)
}

// FromName returns the similarity hash of a filename. The directory and the
// final extension are ignored, and the stem is NFC-normalized and lower-cased
// before hashing so encoding and case variants of one name agree.
func FromName(name string) (Token, error) {
	stem := stemOf(name)
	features := nameFeatures(stem)
	if len(features) == 0 {
		return "", services.Wrap(services.ErrSignature, "signature", "hash name", fmt.Sprintf("no usable characters in %q", name), nil)
	}

	var weights [Bits]int
	for feature, weight := range features {
		sum := sha256.Sum256([]byte(feature))
		for i := range Bits {
			if sum[i/8]&(0x80>>(i%8)) != 0 {
				weights[i] += weight
			} else {
				weights[i] -= weight
			}
		}
	}

	var out [Bits / 8]byte
	for i, w := range weights {
		if w > 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return Token(hex.EncodeToString(out[:])), nil
}

// Distance returns the number of differing bits between two tokens.
func Distance(a, b Token) (int, error) {
	ab, err := decode(a)
	if err != nil {
		return 0, err
	}
	bb, err := decode(b)
	if err != nil {
		return 0, err
	}
	dist := 0
	for i := 0; i < len(ab); i += 4 {
		dist += bits.OnesCount32(binary.BigEndian.Uint32(ab[i:]) ^ binary.BigEndian.Uint32(bb[i:]))
	}
	return dist, nil
}

// Valid reports whether s has the shape of a token.
func Valid(s string) bool {
	_, err := decode(Token(s))
	return err == nil
}

func decode(t Token) ([]byte, error) {
	if len(t) != Width {
		return nil, fmt.Errorf("signature: token %q has %d characters, want %d", string(t), len(t), Width)
	}
	raw, err := hex.DecodeString(string(t))
	if err != nil {
		return nil, fmt.Errorf("signature: token %q: %w", string(t), err)
	}
	return raw, nil
}

func stemOf(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.ToLower(norm.NFC.String(base))
}

// nameFeatures weights whole words twice as heavily as character trigrams.
func nameFeatures(stem string) map[string]int {
	features := make(map[string]int)
	for _, token := range textutil.Tokenize(stem) {
		features["w:"+token] += 2
	}

	var runes []rune
	for _, r := range stem {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		} else if len(runes) > 0 && runes[len(runes)-1] != ' ' {
			runes = append(runes, ' ')
		}
	}
	switch {
	case len(runes) == 0:
	case len(runes) < 3:
		features["t:"+string(runes)]++
	default:
		for i := 0; i+3 <= len(runes); i++ {
			features["t:"+string(runes[i:i+3])]++
		}
	}
	return features
}
