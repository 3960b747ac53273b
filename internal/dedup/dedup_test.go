package dedup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelver/internal/allocator"
)

func populate(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestScanGroupsByPrefix(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir,
		"abc123_short.pdf",
		"abc123_much_longer_name.pdf",
		"abc123_x.pdf",
		"zzz999_aa.pdf",
		"zzz999_bb.pdf",
		"a.pdf",
		"solo99_only.epub",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "abc123_directory"), 0o755))

	groups, err := Scan(dir, 6)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "abc123", groups[0].Key)
	assert.Equal(t, []string{
		filepath.Join(dir, "abc123_much_longer_name.pdf"),
		filepath.Join(dir, "abc123_short.pdf"),
		filepath.Join(dir, "abc123_x.pdf"),
	}, groups[0].Members)
	assert.Equal(t, filepath.Join(dir, "abc123_much_longer_name.pdf"), groups[0].Canonical)

	assert.Equal(t, "solo99", groups[1].Key)
	assert.Len(t, groups[1].Members, 1)
	assert.Empty(t, groups[1].Duplicates())

	assert.Equal(t, "zzz999", groups[2].Key)
	assert.Equal(t, filepath.Join(dir, "zzz999_aa.pdf"), groups[2].Canonical, "ties keep the first listed")
	assert.Equal(t, []string{filepath.Join(dir, "zzz999_bb.pdf")}, groups[2].Duplicates())
}

func TestScanCountsRunes(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "ééé123_one.txt", "ééé123_two_long.txt", "é.txt")

	groups, err := Scan(dir, 6)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "ééé123", groups[0].Key)
	assert.Equal(t, filepath.Join(dir, "ééé123_two_long.txt"), groups[0].Canonical)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"), 4)
	assert.Error(t, err)
	_, err = Scan(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestScanIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "k1_b.txt", "k1_a.txt", "k1_ccc.txt")
	first, err := Scan(dir, 2)
	require.NoError(t, err)
	second, err := Scan(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyMovesDuplicates(t *testing.T) {
	dir := t.TempDir()
	dups := filepath.Join(t.TempDir(), "duplicates")
	populate(t, dir, "sig001_a.pdf", "sig001_longest.pdf", "sig001_b.pdf", "other1_x.pdf")
	// a same-named file already sits in the duplicates dir
	require.NoError(t, os.MkdirAll(dups, 0o755))
	populate(t, dups, "sig001_a.pdf")

	groups, err := Scan(dir, 6)
	require.NoError(t, err)

	session := allocator.NewSession(filepath.Join(t.TempDir(), "locks"), 0, nil)
	result, err := Apply(context.Background(), groups, dups, session, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Groups)
	assert.Equal(t, 2, result.Moved())
	assert.Equal(t, 0, result.Failed())
	assert.Equal(t, []string{filepath.Join(dir, "sig001_longest.pdf")}, result.Kept)

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range remaining {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"other1_x.pdf", "sig001_longest.pdf"}, names)

	moved, err := os.ReadDir(dups)
	require.NoError(t, err)
	names = names[:0]
	for _, e := range moved {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"sig001_a.pdf", "sig001_a(1).pdf", "sig001_b.pdf"}, names)
}

func TestApplyDryRun(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "dup000_one.txt", "dup000_three.txt")
	groups, err := Scan(dir, 6)
	require.NoError(t, err)

	result, err := Apply(context.Background(), groups, filepath.Join(t.TempDir(), "d"), failingPlacer{}, Options{DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Moves, 1)
	assert.Equal(t, filepath.Join(dir, "dup000_one.txt"), result.Moves[0].From)
	assert.Empty(t, result.Moves[0].To)
	assert.Equal(t, 0, result.Moved())
	assert.FileExists(t, filepath.Join(dir, "dup000_one.txt"))
}

type failingPlacer struct{}

func (failingPlacer) Place(context.Context, string, string, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestApplyRecordsFailuresAndContinues(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "grp111_a.txt", "grp111_bb.txt", "grp111_ccc.txt")
	groups, err := Scan(dir, 6)
	require.NoError(t, err)

	result, err := Apply(context.Background(), groups, t.TempDir(), failingPlacer{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed())
	assert.FileExists(t, filepath.Join(dir, "grp111_a.txt"))
}

func TestApplyStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir, "grp222_a.txt", "grp222_bb.txt")
	groups, err := Scan(dir, 6)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Apply(ctx, groups, t.TempDir(), failingPlacer{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
