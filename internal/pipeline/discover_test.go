package pipeline_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelver/internal/pipeline"
	"shelver/internal/testsupport"
)

func TestDiscoverFiltersAndOrders(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	b := write(t, root, "b.PDF", []byte("x"))
	a := write(t, root, "a.epub", []byte("x"))
	write(t, root, ".hidden.pdf", []byte("x"))
	write(t, root, "notes.docx", []byte("x"))
	nested := write(t, filepath.Join(root, "sub"), "c.txt", []byte("x"))
	write(t, filepath.Join(root, ".git"), "d.txt", []byte("x"))
	write(t, out, "e.pdf", []byte("x"))

	opts := pipeline.DiscoverOptions{Extensions: []string{"pdf", ".epub", "txt"}, Exclude: []string{out}}
	got, err := pipeline.Discover([]string{root}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, got)

	opts.Recursive = true
	got, err = pipeline.Discover([]string{root, a}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, nested}, got)
}

func TestDiscoverExplicitFilesBypassFilter(t *testing.T) {
	root := t.TempDir()
	odd := write(t, root, "scan.bin", []byte("x"))
	got, err := pipeline.Discover([]string{odd}, pipeline.DiscoverOptions{Extensions: []string{"pdf"}})
	require.NoError(t, err)
	assert.Equal(t, []string{odd}, got)

	_, err = pipeline.Discover([]string{filepath.Join(root, "missing")}, pipeline.DiscoverOptions{})
	require.Error(t, err)
}

func TestDiscoverOptionsFromConfigExcludesTargets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)
	keep := write(t, inbox, "k.pdf", []byte("x"))
	write(t, cfg.Paths.OutputDir, "done.pdf", []byte("x"))
	write(t, cfg.Paths.FailedDir, "bad.pdf", []byte("x"))

	opts := pipeline.DiscoverOptionsFromConfig(cfg)
	opts.Recursive = true
	got, err := pipeline.Discover([]string{testsupport.BaseDir(cfg)}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, got)
}
