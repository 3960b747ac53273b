package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shelver/internal/services"
	"shelver/internal/testsupport"
)

const copyScript = `
src="$1"; dst="$2"
printf 'converted:' > "$dst"
cat "$src" >> "$dst"
`

func TestConvertWritesIntoScratch(t *testing.T) {
	base := t.TempDir()
	bin := testsupport.WriteScript(t, filepath.Join(base, "bin"), "ebook-convert", copyScript)
	src := testsupport.WriteFile(t, filepath.Join(base, "in", "book.mobi"), []byte("payload"))
	scratch := filepath.Join(base, "scratch")

	c := New(bin, scratch, time.Minute, nil)
	out, err := c.Convert(context.Background(), src, ".EPUB")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if filepath.Base(out.Path) != "book.epub" {
		t.Fatalf("unexpected output name %s", out.Path)
	}
	if filepath.Dir(filepath.Dir(out.Path)) != scratch {
		t.Fatalf("output %s not under scratch %s", out.Path, scratch)
	}
	data, err := os.ReadFile(out.Path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "converted:payload" {
		t.Fatalf("unexpected output %q", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must be untouched: %v", err)
	}
	if err := out.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if names := testsupport.ListNames(t, scratch); len(names) != 0 {
		t.Fatalf("scratch not cleaned: %v", names)
	}
}

func TestConvertFailures(t *testing.T) {
	base := t.TempDir()
	scratch := filepath.Join(base, "scratch")
	src := testsupport.WriteFile(t, filepath.Join(base, "book.chm"), []byte("x"))

	missing := New(filepath.Join(base, "nope"), scratch, 0, nil)
	if _, err := missing.Convert(context.Background(), src, "epub"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	failing := New(testsupport.WriteScript(t, filepath.Join(base, "bin"), "fail", "echo 'Conversion error: bad input' >&2\nexit 1\n"), scratch, 0, nil)
	_, err := failing.Convert(context.Background(), src, "epub")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	silent := New(testsupport.WriteScript(t, filepath.Join(base, "bin"), "silent", "exit 0\n"), scratch, 0, nil)
	if _, err := silent.Convert(context.Background(), src, "epub"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected error for missing output, got %v", err)
	}

	slow := New(testsupport.WriteScript(t, filepath.Join(base, "bin"), "slow", "exec sleep 5\n"), scratch, 50*time.Millisecond, nil)
	if _, err := slow.Convert(context.Background(), src, "epub"); !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	if names := testsupport.ListNames(t, scratch); len(names) != 0 {
		t.Fatalf("failed conversions left scratch entries: %v", names)
	}
}
