package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"shelver/internal/config"
	"shelver/internal/fileutil"
	"shelver/internal/services"
)

// DiscoverOptions control which files Discover returns.
type DiscoverOptions struct {
	// Extensions filters files found inside directories; empty accepts all.
	Extensions []string
	Recursive  bool
	// Exclude lists directories never descended into.
	Exclude []string
}

// DiscoverOptionsFromConfig excludes every directory shelver writes into.
func DiscoverOptionsFromConfig(cfg *config.Config) DiscoverOptions {
	exclude := append([]string{}, cfg.TargetDirs()...)
	exclude = append(exclude, cfg.Paths.LogDir, cfg.Paths.StateDir)
	if cfg.Paths.ScratchDir != "" {
		exclude = append(exclude, cfg.Paths.ScratchDir)
	}
	return DiscoverOptions{
		Extensions: cfg.Discovery.Extensions,
		Recursive:  cfg.Discovery.Recursive,
		Exclude:    exclude,
	}
}

// Discover expands inputs into absolute file paths. Files named explicitly
// are returned as given; directories contribute their visible regular files
// that pass the extension filter, in lexical order. Duplicates are dropped.
func Discover(inputs []string, opts DiscoverOptions) ([]string, error) {
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts[ext] = struct{}{}
		}
	}
	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, dir := range opts.Exclude {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			excluded[abs] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, input := range inputs {
		root, err := filepath.Abs(input)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "discover", "path", input, err)
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "discover", "stat", input, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, skip := excluded[path]; skip || !opts.Recursive || fileutil.IsHidden(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if fileutil.IsHidden(path) || !d.Type().IsRegular() {
				return nil
			}
			if len(exts) > 0 {
				_, ext := fileutil.SplitExt(d.Name())
				if _, ok := exts[strings.ToLower(ext)]; !ok {
					return nil
				}
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "discover", "walk", fmt.Sprintf("scan %s", input), err)
		}
	}
	return out, nil
}
