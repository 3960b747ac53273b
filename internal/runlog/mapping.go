package runlog

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// LLMInfo names the model that produced a rename.
type LLMInfo struct {
	Model      string
	Endpoint   string
	Confidence *float64
}

// Mapped is what the logs say about one renamed file.
type Mapped struct {
	OriginalPath string
	Metadata     Metadata
	// HasMetadata is true when the log line carried a non-empty metadata object.
	HasMetadata bool
	// Source is the name source that produced the metadata, when recorded.
	Source string
	LLM    LLMInfo
}

// Mapping indexes log information by the absolute renamed path.
type Mapping map[string]Mapped

var (
	renamedKeys  = []string{"renamed_path", "renamed", "new_path"}
	originalKeys = []string{"original_path", "original", "orig_path"}

	renamedLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Renamed:\s*(?P<original>.+?)\s*->\s*(?P<renamed>.+)`),
		regexp.MustCompile(`(?i)Original:\s*(?P<original>.+?)\s*New:\s*(?P<renamed>.+)`),
		regexp.MustCompile(`(?P<original>.+?)\s*=>\s*(?P<renamed>.+)`),
	}
)

// CanonicalPath is the key form used by Mapping.
func CanonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// BuildMapping walks logsDir and merges every recognisable rename record.
// JSON lines are read first; text logs are applied afterwards and win for
// the same renamed path. A missing directory yields an empty mapping.
func BuildMapping(logsDir string) (Mapping, error) {
	mapping := make(Mapping)
	if strings.TrimSpace(logsDir) == "" {
		return mapping, nil
	}
	if _, err := os.Stat(logsDir); errors.Is(err, os.ErrNotExist) {
		return mapping, nil
	}

	var jsonFiles, textFiles []string
	err := filepath.WalkDir(logsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson":
			jsonFiles = append(jsonFiles, path)
		case ".log", ".txt":
			textFiles = append(textFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", logsDir)
	}

	for _, path := range jsonFiles {
		_ = eachLine(path, func(line string) {
			applyJSONLine(mapping, line)
		})
	}
	for _, path := range textFiles {
		_ = eachLine(path, func(line string) {
			applyTextLine(mapping, line)
		})
	}
	return mapping, nil
}

func eachLine(path string, fn func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 4<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
	return scanner.Err()
}

func applyJSONLine(mapping Mapping, line string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return
	}
	renamed := firstString(obj, renamedKeys)
	if renamed == "" {
		return
	}
	entry := Mapped{OriginalPath: firstString(obj, originalKeys)}
	if raw, ok := obj["metadata"]; ok {
		var generic map[string]any
		if json.Unmarshal(raw, &generic) == nil && len(generic) > 0 {
			entry.HasMetadata = true
			_ = json.Unmarshal(raw, &entry.Metadata)
		}
	}
	entry.Source = firstString(obj, []string{"source", "metadata_source"})
	entry.LLM.Model = firstString(obj, []string{"model", "llm_model"})
	entry.LLM.Endpoint = firstString(obj, []string{"endpoint", "llm_endpoint"})
	if raw, ok := obj["confidence"]; ok {
		var c float64
		if json.Unmarshal(raw, &c) == nil {
			entry.LLM.Confidence = &c
		}
	}
	mapping[CanonicalPath(renamed)] = entry
}

func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func applyTextLine(mapping Mapping, line string) {
	// Structured log records share the directory; they are not rename lines.
	if strings.HasPrefix(line, "{") {
		return
	}
	for _, pattern := range renamedLinePatterns {
		m := pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		original := strings.TrimSpace(m[pattern.SubexpIndex("original")])
		renamed := strings.TrimSpace(m[pattern.SubexpIndex("renamed")])
		if renamed != "" {
			mapping[CanonicalPath(renamed)] = Mapped{OriginalPath: original}
		}
		return
	}
}
