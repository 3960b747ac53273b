package pdfdoc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shelver/internal/testsupport"
)

func TestHasHeader(t *testing.T) {
	if !HasHeader([]byte("%PDF-1.7\n")) {
		t.Fatal("expected header at offset 0")
	}
	if !HasHeader(append(make([]byte, 100), []byte("%PDF-1.4")...)) {
		t.Fatal("expected header within window")
	}
	if HasHeader(append(make([]byte, HeaderWindow), []byte("%PDF-1.4")...)) {
		t.Fatal("header past the window must not match")
	}
	if HasHeader([]byte("PK\x03\x04")) {
		t.Fatal("zip must not match")
	}
}

func TestInspectReadsInfo(t *testing.T) {
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "doc.pdf"), testsupport.PDF(testsupport.PDFOptions{
		Title:        "Structure and Interpretation (2nd ed)",
		Author:       "Abelson",
		CreationDate: "D:19960725120000Z",
	}))

	info, err := Inspect(context.Background(), path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Pages != 1 {
		t.Fatalf("expected 1 page, got %d", info.Pages)
	}
	if info.Title != "Structure and Interpretation (2nd ed)" {
		t.Fatalf("unexpected title %q", info.Title)
	}
	if info.Author != "Abelson" {
		t.Fatalf("unexpected author %q", info.Author)
	}
	if !strings.Contains(info.CreationDate, "1996") {
		t.Fatalf("expected creation date from the info dictionary, got %q", info.CreationDate)
	}

	pages, err := PageCount(context.Background(), path)
	if err != nil || pages != 1 {
		t.Fatalf("PageCount = %d, %v", pages, err)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "bad.pdf"), []byte("%PDF-1.4\nnot really a pdf"))
	if _, err := Inspect(context.Background(), path); err == nil {
		t.Fatal("expected error for truncated pdf")
	}
}

func TestGuardedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	_, err := guarded(ctx, func() (int, error) {
		<-release
		return 1, nil
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestGuardedRecoversPanic(t *testing.T) {
	_, err := guarded(context.Background(), func() (int, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected error from panic")
	}
}

func TestExtractTextWithStub(t *testing.T) {
	dir := t.TempDir()
	stub := testsupport.WriteScript(t, dir, "pdftotext", `
for last; do :; done
printf 'Extracted text\n' > "$last"
`)
	dest := filepath.Join(dir, "out.txt")
	if err := ExtractText(context.Background(), stub, "in.pdf", dest, 20); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "Extracted text\n" {
		t.Fatalf("unexpected output %q", data)
	}

	empty := testsupport.WriteScript(t, dir, "empty", `
for last; do :; done
: > "$last"
`)
	if err := ExtractText(context.Background(), empty, "in.pdf", filepath.Join(dir, "e.txt"), 0); err == nil {
		t.Fatal("expected error for empty output")
	}

	failing := testsupport.WriteScript(t, dir, "failing", "echo broken >&2\nexit 3\n")
	if err := ExtractText(context.Background(), failing, "in.pdf", filepath.Join(dir, "f.txt"), 0); err == nil {
		t.Fatal("expected error for failing tool")
	}
}
