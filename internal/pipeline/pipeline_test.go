package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelver/internal/config"
	"shelver/internal/filetype"
	"shelver/internal/pipeline"
	"shelver/internal/runlog"
	"shelver/internal/testsupport"
)

func newPipeline(t *testing.T, cfg *config.Config) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewFromConfig(cfg, nil)
	require.NoError(t, err)
	return p
}

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	return testsupport.WriteFile(t, filepath.Join(dir, name), data)
}

func duneEPUB() []byte {
	return testsupport.EPUB(testsupport.EPUBOptions{Title: "Dune", Author: "Frank Herbert", Chapters: []string{"<p>Arrakis.</p>"}})
}

func TestRunClassifiesAndRenamesMixedFiles(t *testing.T) {
	server := testsupport.NewLLMServer(t, testsupport.NameResponse("Quarterly Budget Notes - Jane Roe", "Quarterly Budget Notes", "Jane Roe"))
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(server.URL))
	inbox := testsupport.InboxDir(t, cfg)

	paths := []string{
		write(t, inbox, "a7f3", testsupport.PDF(testsupport.PDFOptions{Title: "Linear Algebra Done Right", Author: "Sheldon Axler", Text: "vectors"})),
		write(t, inbox, "b2.dat", duneEPUB()),
		write(t, inbox, "c9.pdf", []byte("Meeting notes about the quarterly budget.\nAction items follow.\n")),
	}

	report, err := newPipeline(t, cfg).Run(context.Background(), paths, pipeline.Options{})
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	wantFormats := []filetype.Format{filetype.FormatPDF, filetype.FormatEPUB, filetype.FormatText}
	wantNames := []string{
		"Linear Algebra Done Right - Sheldon Axler.pdf",
		"Dune - Frank Herbert.epub",
		"Quarterly Budget Notes - Jane Roe.txt",
	}
	for i, rec := range report.Records {
		assert.Equal(t, paths[i], rec.OriginalPath)
		assert.Equal(t, pipeline.OutcomeRenamed, rec.Outcome, rec.Error)
		assert.Equal(t, wantFormats[i], rec.Format)
		assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, wantNames[i]), rec.FinalPath)
		assert.Len(t, rec.Signature.String(), 24)
		assert.NoFileExists(t, paths[i])
	}
	assert.Equal(t, "metadata", report.Records[0].Source)
	assert.Equal(t, "llm", report.Records[2].Source)
	assert.Equal(t, 3, report.Count(pipeline.OutcomeRenamed))
	assert.Zero(t, report.Count(pipeline.OutcomeFailed))

	require.Len(t, server.Requests(), 1)
	assert.Contains(t, server.Requests()[0], "quarterly budget")

	mapping, err := runlog.BuildMapping(cfg.Paths.LogDir)
	require.NoError(t, err)
	got, ok := mapping[runlog.CanonicalPath(report.Records[2].FinalPath)]
	require.True(t, ok)
	assert.Equal(t, paths[2], got.OriginalPath)
	assert.Equal(t, "Jane Roe", got.Metadata.Author)
	assert.Equal(t, "llm", got.Source)
	assert.Equal(t, "test-model", got.LLM.Model)
	assert.Equal(t, filepath.Join(cfg.Paths.LogDir, runlog.FileName(report.RunID)), report.LogPath)
}

func TestRunNeverOverwritesAcrossWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)
	existing := write(t, cfg.Paths.OutputDir, "Dune - Frank Herbert.epub", []byte("keep me"))

	var paths []string
	for i := range 6 {
		paths = append(paths, write(t, inbox, "copy"+string(rune('a'+i))+".epub", duneEPUB()))
	}

	report, err := newPipeline(t, cfg).Run(context.Background(), paths, pipeline.Options{Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Count(pipeline.OutcomeRenamed))

	seen := make(map[string]bool)
	for _, rec := range report.Records {
		assert.False(t, seen[rec.FinalPath], "duplicate destination %s", rec.FinalPath)
		seen[rec.FinalPath] = true
		assert.NotEqual(t, existing, rec.FinalPath)
	}
	assert.Len(t, testsupport.ListNames(t, cfg.Paths.OutputDir), 7)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestRunRoutesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)

	empty := write(t, inbox, "empty.pdf", nil)
	blob := write(t, inbox, "blob.xyz", []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00, 0x10, 0x80})
	anonymous := write(t, inbox, "scan001.pdf", testsupport.PDF(testsupport.PDFOptions{Text: "no metadata"}))

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{empty, blob, anonymous}, pipeline.Options{})
	require.NoError(t, err)

	skipped := report.Records[0]
	assert.Equal(t, pipeline.OutcomeSkipped, skipped.Outcome)
	assert.Equal(t, "signature error", skipped.Reason)
	assert.FileExists(t, empty)

	quarantined := report.Records[1]
	assert.Equal(t, pipeline.OutcomeQuarantined, quarantined.Outcome)
	assert.Equal(t, filetype.FormatUnknown, quarantined.Format)
	assert.Equal(t, filepath.Join(cfg.Paths.QuarantineDir, "blob.xyz"), quarantined.FinalPath)
	assert.FileExists(t, quarantined.FinalPath)

	failed := report.Records[2]
	assert.Equal(t, pipeline.OutcomeFailed, failed.Outcome)
	assert.Equal(t, "extraction failed", failed.Reason)
	assert.Equal(t, 2, failed.Attempts)
	assert.Equal(t, filepath.Join(cfg.Paths.FailedDir, "scan001.pdf"), failed.FinalPath)
	assert.FileExists(t, failed.FinalPath)

	assert.Empty(t, testsupport.ListNames(t, cfg.Paths.OutputDir))
	assert.Equal(t, map[pipeline.Outcome]int{
		pipeline.OutcomeRenamed:     0,
		pipeline.OutcomeQuarantined: 1,
		pipeline.OutcomeSkipped:     1,
		pipeline.OutcomeFailed:      1,
	}, report.Counts)
}

func TestRunRetriesUnacceptableNames(t *testing.T) {
	server := testsupport.NewLLMServer(t, testsupport.NameResponse("null", "", ""))
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(server.URL), testsupport.WithSources("llm"))
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "mystery.txt", []byte("Some plain text that says very little.\n"))

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.NoError(t, err)

	rec := report.Records[0]
	assert.Equal(t, pipeline.OutcomeFailed, rec.Outcome)
	assert.Equal(t, cfg.Naming.RetryAttempts, rec.Attempts)
	assert.Len(t, server.Requests(), cfg.Naming.RetryAttempts)
	assert.Equal(t, filepath.Join(cfg.Paths.FailedDir, "mystery.txt"), rec.FinalPath)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, "null.txt"))
}

func TestRunRejectsDecoratedSentinelNames(t *testing.T) {
	for _, candidate := range []string{"N/A", "**N/A**", "Filename: N/A", "Title: null", "**Not Available**", "n/a.pdf", "`none`"} {
		t.Run(candidate, func(t *testing.T) {
			server := testsupport.NewLLMServer(t, testsupport.NameResponse(candidate, "", ""))
			cfg := testsupport.NewConfig(t, testsupport.WithLLM(server.URL), testsupport.WithSources("llm"))
			inbox := testsupport.InboxDir(t, cfg)
			path := write(t, inbox, "notes.txt", []byte("Loose notes with no obvious title.\n"))

			report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
			require.NoError(t, err)

			rec := report.Records[0]
			assert.Equal(t, pipeline.OutcomeFailed, rec.Outcome, rec.FinalPath)
			assert.Equal(t, filepath.Join(cfg.Paths.FailedDir, "notes.txt"), rec.FinalPath)
			names, err := os.ReadDir(cfg.Paths.OutputDir)
			if err == nil {
				assert.Empty(t, names)
			}
		})
	}
}

func TestRunRecoversOnSecondAttempt(t *testing.T) {
	server := testsupport.NewLLMServer(t,
		testsupport.NameResponse("untitled", "", ""),
		testsupport.NameResponse("Field Guide to Mosses", "Field Guide to Mosses", ""),
	)
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(server.URL), testsupport.WithSources("llm"))
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "m.txt", []byte("Mosses of the northern forests.\n"))

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.NoError(t, err)
	rec := report.Records[0]
	require.Equal(t, pipeline.OutcomeRenamed, rec.Outcome, rec.Error)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "Field Guide to Mosses.txt"), rec.FinalPath)
}

func TestRunTranscodesContainerFormats(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("ebook-convert", `printf 'converted' > "$2"`+"\n"))
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "book.azw", testsupport.MOBI(testsupport.MOBIOptions{Title: "Solaris", Author: "Stanislaw Lem", Text: "ocean"}))

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.NoError(t, err)
	rec := report.Records[0]
	require.Equal(t, pipeline.OutcomeRenamed, rec.Outcome, rec.Error)
	assert.True(t, rec.Transcoded)
	assert.Equal(t, filetype.FormatMOBI, rec.Format)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "Solaris - Stanislaw Lem.epub"), rec.FinalPath)

	data, err := os.ReadFile(rec.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "converted", string(data))
	assert.NoFileExists(t, path)
	assert.Empty(t, testsupport.ListNames(t, cfg.Paths.ScratchDir))
}

func TestRunKeepsOriginalWhenTranscodeFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("ebook-convert", "echo boom >&2\nexit 3\n"))
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "book.mobi", testsupport.MOBI(testsupport.MOBIOptions{Title: "Solaris", Author: "Stanislaw Lem"}))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.NoError(t, err)
	rec := report.Records[0]
	assert.Equal(t, pipeline.OutcomeFailed, rec.Outcome)
	assert.Equal(t, "external tool error", rec.Reason)
	assert.Equal(t, filepath.Join(cfg.Paths.FailedDir, "book.mobi"), rec.FinalPath)

	moved, err := os.ReadFile(rec.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, original, moved)
	assert.Empty(t, testsupport.ListNames(t, cfg.Paths.OutputDir))
}

func TestRunPrefixesSignature(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Naming.PrefixSignature = true
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "x.epub", duneEPUB())

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.NoError(t, err)
	rec := report.Records[0]
	require.Equal(t, pipeline.OutcomeRenamed, rec.Outcome, rec.Error)
	want := rec.Signature.String() + "_Dune - Frank Herbert.epub"
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, want), rec.FinalPath)
}

func TestRunDryRunMovesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)
	first := write(t, inbox, "one.epub", duneEPUB())
	second := write(t, inbox, "two.epub", duneEPUB())
	blob := write(t, inbox, "blob.bin", []byte{0x00, 0xff, 0x00, 0xfe})

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{first, second, blob}, pipeline.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Empty(t, report.LogPath)

	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "Dune - Frank Herbert.epub"), report.Records[0].FinalPath)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputDir, "Dune - Frank Herbert(1).epub"), report.Records[1].FinalPath)
	assert.Equal(t, pipeline.OutcomeQuarantined, report.Records[2].Outcome)
	for _, path := range []string{first, second, blob} {
		assert.FileExists(t, path)
	}
	assert.NoDirExists(t, cfg.Paths.OutputDir)
	assert.NoDirExists(t, cfg.Paths.LogDir)
}

func TestRunCanceledLeavesFilesInPlace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)
	paths := []string{
		write(t, inbox, "a.epub", duneEPUB()),
		write(t, inbox, "b.txt", []byte("hello there\n")),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newPipeline(t, cfg).Run(ctx, paths, pipeline.Options{})
	require.ErrorIs(t, err, context.Canceled)
	for i, rec := range report.Records {
		assert.Equal(t, pipeline.OutcomeSkipped, rec.Outcome)
		assert.Equal(t, pipeline.ReasonCanceled, rec.Reason)
		assert.FileExists(t, paths[i])
	}
	assert.Equal(t, 2, report.Count(pipeline.OutcomeSkipped))
}

func TestRunFatalWhenTargetUnusable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	inbox := testsupport.InboxDir(t, cfg)
	path := write(t, inbox, "a.epub", duneEPUB())
	blocker := write(t, testsupport.BaseDir(cfg), "blocker", []byte("file"))
	cfg.Paths.OutputDir = filepath.Join(blocker, "renamed")

	report, err := newPipeline(t, cfg).Run(context.Background(), []string{path}, pipeline.Options{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "configuration error"))
	assert.Equal(t, pipeline.OutcomeSkipped, report.Records[0].Outcome)
	assert.FileExists(t, path)
}
