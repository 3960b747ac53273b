package mobi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelver/internal/testsupport"
)

func TestParseMOBIMetadata(t *testing.T) {
	t.Parallel()

	data := testsupport.MOBI(testsupport.MOBIOptions{
		Title:  "The Left Hand of Darkness",
		Author: "Ursula K. Le Guin",
		Text:   "Winter is a cold world.",
	})
	b, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, TypeMOBI, b.DBType)
	assert.Equal(t, "The_Left_Hand_of_Darkness", b.DBName)
	assert.Equal(t, "The Left Hand of Darkness", b.FullName)
	assert.Equal(t, "The Left Hand of Darkness", b.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, b.Authors)

	text, err := b.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "Winter is a cold world.", text)

	short, err := b.Text(6)
	require.NoError(t, err)
	assert.Equal(t, "Winter", short)
}

func TestOpenPalmDOC(t *testing.T) {
	t.Parallel()

	data := testsupport.MOBI(testsupport.MOBIOptions{
		Title:  "Notes",
		DBType: TypePalmDOC,
		Text:   "plain palm text",
	})
	path := filepath.Join(t.TempDir(), "notes.pdb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	b, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, TypePalmDOC, b.DBType)
	assert.Empty(t, b.Title)
	assert.Equal(t, "Notes", b.DBName)

	text, err := b.Text(0)
	require.NoError(t, err)
	assert.Equal(t, "plain palm text", text)
}

func TestIsPalmDB(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPalmDB(testsupport.MOBI(testsupport.MOBIOptions{Title: "x"})))
	assert.False(t, IsPalmDB([]byte("%PDF-1.4")))
	assert.False(t, IsPalmDB(testsupport.MOBI(testsupport.MOBIOptions{Title: "x", DBType: "DATAAPPL"})))

	_, err := Parse([]byte("too short"))
	assert.ErrorIs(t, err, ErrNotPalmDB)
}

func TestDecompressPalmDOC(t *testing.T) {
	t.Parallel()

	in := []byte{'a', 'b', 'c', 0x80, 0x18, 0x02, 'x', 'y', 0xE1}
	assert.Equal(t, "abcabcxy a", string(decompressPalmDOC(in)))
}

func TestTextRejectsHuffCDIC(t *testing.T) {
	t.Parallel()

	b := &Book{compression: compressionHuffCDIC}
	_, err := b.Text(0)
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}

func TestTrimTrailingEntries(t *testing.T) {
	t.Parallel()

	// size-3 trailing entry, then one multibyte byte
	b := &Book{extraFlags: 0x3}
	rec := []byte{'h', 'i', 0x00, 'z', 'z', 0x83}
	assert.Equal(t, []byte("hi"), b.trimTrailing(rec))
}
