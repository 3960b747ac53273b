package dedup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/pkg/errors"

	"shelver/internal/fileutil"
	"shelver/internal/logging"
)

// Group is a set of files sharing a name prefix.
type Group struct {
	Key string
	// Members are absolute paths in listing order.
	Members []string
	// Canonical is the member that stays in place.
	Canonical string
}

// Duplicates returns the members other than the canonical one.
func (g Group) Duplicates() []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m != g.Canonical {
			out = append(out, m)
		}
	}
	return out
}

// Scan groups the regular files directly inside dir by the first prefixLen
// runes of their names. Every grouped file appears in exactly one group;
// single-member groups are included.
func Scan(dir string, prefixLen int) ([]Group, error) {
	if prefixLen <= 0 {
		return nil, errors.Errorf("prefix length must be positive, got %d", prefixLen)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var groups []Group
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		groups = fold(groups, dir, entry.Name(), prefixLen)
	}
	return groups, nil
}

// fold adds one listing entry to the accumulated groups. Listing order is
// sorted, so a name can only join the most recent group.
func fold(groups []Group, dir, name string, prefixLen int) []Group {
	if utf8.RuneCountInString(name) < prefixLen {
		return groups
	}
	key := string([]rune(name)[:prefixLen])
	path := filepath.Join(dir, name)
	if n := len(groups); n > 0 && groups[n-1].Key == key {
		g := &groups[n-1]
		g.Members = append(g.Members, path)
		if utf8.RuneCountInString(name) > utf8.RuneCountInString(filepath.Base(g.Canonical)) {
			g.Canonical = path
		}
		return groups
	}
	return append(groups, Group{Key: key, Members: []string{path}, Canonical: path})
}

// Placer moves a file into a directory without overwriting.
type Placer interface {
	Place(ctx context.Context, src, dir, base, ext string) (string, error)
}

// Move records one relocation decision.
type Move struct {
	Key  string
	From string
	// To is empty for dry runs and failed moves.
	To  string
	Err error
}

// Result summarizes an Apply call.
type Result struct {
	Groups int
	Kept   []string
	Moves  []Move
}

// Moved counts successful relocations.
func (r Result) Moved() int {
	n := 0
	for _, m := range r.Moves {
		if m.Err == nil && m.To != "" {
			n++
		}
	}
	return n
}

// Failed counts relocations that returned an error.
func (r Result) Failed() int {
	n := 0
	for _, m := range r.Moves {
		if m.Err != nil {
			n++
		}
	}
	return n
}

// Options tune Apply.
type Options struct {
	DryRun bool
	Logger *slog.Logger
}

// Apply relocates the non-canonical members of every multi-member group
// into duplicatesDir. A failed move is recorded and the pass continues;
// cancellation stops before the next move and returns the partial result.
func Apply(ctx context.Context, groups []Group, duplicatesDir string, placer Placer, opts Options) (Result, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "dedup"))
	var result Result
	for _, g := range groups {
		if len(g.Members) < 2 {
			continue
		}
		result.Groups++
		result.Kept = append(result.Kept, g.Canonical)
		for _, dup := range g.Duplicates() {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			move := Move{Key: g.Key, From: dup}
			if opts.DryRun {
				logger.Info("duplicate would be moved",
					logging.String(logging.FieldFile, dup),
					logging.String("kept", g.Canonical),
				)
				result.Moves = append(result.Moves, move)
				continue
			}
			base, ext := fileutil.SplitExt(dup)
			to, err := placer.Place(ctx, dup, duplicatesDir, base, ext)
			if err != nil {
				move.Err = err
				logging.WarnWithContext(logger, "duplicate not moved", "dedup_move_failed",
					logging.String(logging.FieldFile, dup),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check permissions on the duplicates directory"),
				)
			} else {
				move.To = to
				logger.Info("duplicate moved",
					logging.String(logging.FieldFile, dup),
					logging.Path("destination", to),
					logging.String("kept", g.Canonical),
				)
			}
			result.Moves = append(result.Moves, move)
		}
	}
	return result, nil
}
