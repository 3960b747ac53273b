package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"shelver/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckTargetDirectory_WillBeCreated(t *testing.T) {
	result := CheckTargetDirectory("test", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("expected pass for creatable dir, got: %s", result.Detail)
	}
}

func TestCheckTargetDirectory_UnderFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckTargetDirectory("test", filepath.Join(f, "sub"))
	if result.Passed {
		t.Fatal("expected failure below a regular file")
	}
}

func TestCheckLLM_OK(t *testing.T) {
	srv := testsupport.NewLLMServer(t, `{"ok":true}`)
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))

	result := CheckLLM(context.Background(), "LLM", cfg.GetLLM())
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadPayload(t *testing.T) {
	srv := testsupport.NewLLMServer(t, `{"ok":false}`)
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))

	result := CheckLLM(context.Background(), "LLM", cfg.GetLLM())
	if result.Passed {
		t.Fatal("expected failure for unexpected response")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.APIKey = ""
	result := CheckLLM(context.Background(), "LLM", cfg.GetLLM())
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %#v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinary("ebook-convert", "exit 0\n"))

	results := RunAll(context.Background(), cfg)
	// seven directories plus two tools
	if len(results) != 9 {
		t.Fatalf("expected 9 results, got %d", len(results))
	}
	if blocking := Blocking(results); len(blocking) != 0 {
		t.Fatalf("unexpected blocking results: %#v", blocking)
	}
	for _, r := range results {
		if r.Name == "LLM" {
			t.Fatal("LLM check should be skipped without the llm source")
		}
	}
}

func TestRunAll_BlocksOnMissingConverter(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	blocking := Blocking(RunAll(context.Background(), cfg))
	if len(blocking) != 1 || blocking[0].Name != "ebook-convert" {
		t.Fatalf("expected ebook-convert to block, got %#v", blocking)
	}
}

func TestRunAll_IncludesLLMWhenEnabled(t *testing.T) {
	srv := testsupport.NewLLMServer(t, `{"ok":true}`)
	cfg := testsupport.NewConfig(t, testsupport.WithLLM(srv.URL))

	found := false
	for _, r := range RunAll(context.Background(), cfg) {
		if r.Name == "LLM" {
			found = true
			if !r.Passed {
				t.Errorf("LLM check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected LLM check in results")
	}
}
