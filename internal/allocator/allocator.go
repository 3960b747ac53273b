package allocator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	pkgerrors "github.com/pkg/errors"

	"shelver/internal/config"
	"shelver/internal/logging"
	"shelver/internal/services"
)

// DefaultMaxAttempts bounds the candidates tried for one name.
const DefaultMaxAttempts = 10000

const lockRetryDelay = 50 * time.Millisecond

var suffixPattern = regexp.MustCompile(`^(.*)\((\d+)\)$`)

// Session allocates and places files for one batch run.
type Session struct {
	lockDir     string
	maxAttempts int
	logger      *slog.Logger

	mu       sync.Mutex
	assigned map[string]struct{}
	dirLocks map[string]*sync.Mutex
}

// NewSession creates a session. lockDir holds the cross-process lock files;
// empty disables them.
func NewSession(lockDir string, maxAttempts int, logger *slog.Logger) *Session {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Session{
		lockDir:     lockDir,
		maxAttempts: maxAttempts,
		logger:      logging.NewComponentLogger(logger, "allocator"),
		assigned:    make(map[string]struct{}),
		dirLocks:    make(map[string]*sync.Mutex),
	}
}

// NewSessionFromConfig creates a session using the configured lock
// directory and attempt bound.
func NewSessionFromConfig(cfg *config.Config, logger *slog.Logger) *Session {
	return NewSession(cfg.LockDir(), cfg.Allocator.MaxAttempts, logger)
}

// Allocate returns the first free path for base.ext in dir, checking both the
// filesystem and the paths this session already placed. It does not reserve
// the result; repeated calls with no intervening placement return the same
// path. ext is given without a dot and may be empty.
func (s *Session) Allocate(dir, base, ext string) (string, error) {
	return s.allocate(dir, base, ext, nil)
}

func (s *Session) allocate(dir, base, ext string, skip map[string]struct{}) (string, error) {
	if base == "" {
		return "", services.Wrap(services.ErrValidation, "allocate", "name", "empty base name", nil)
	}
	stem, next := splitSuffix(base)
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s(%d)", stem, next)
			next++
		}
		candidate := filepath.Join(dir, withExt(name, ext))
		if _, ok := skip[candidate]; ok {
			continue
		}
		taken, err := s.taken(candidate)
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "allocate", "stat", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", services.Wrap(
		services.ErrAllocationExhausted,
		"allocate",
		"candidates",
		fmt.Sprintf("no free name for %q in %s after %d attempts", withExt(base, ext), dir, s.maxAttempts),
		nil,
	)
}

// splitSuffix returns the stem and the first counter to try. "report(1)"
// continues at 2; "report" starts at 1.
func splitSuffix(base string) (string, int) {
	m := suffixPattern.FindStringSubmatch(base)
	if m == nil || m[1] == "" {
		return base, 1
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n == math.MaxInt {
		return base, 1
	}
	return m[1], n + 1
}

func withExt(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func (s *Session) taken(path string) (bool, error) {
	s.mu.Lock()
	_, assigned := s.assigned[path]
	s.mu.Unlock()
	if assigned {
		return true, nil
	}
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Assigned reports whether path was placed by this session.
func (s *Session) Assigned(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.assigned[filepath.Clean(path)]
	return ok
}

// Place moves src into dir under the first free variant of base.ext and
// returns the final path. The destination directory is created if missing.
// Existing files are never overwritten.
func (s *Session) Place(ctx context.Context, src, dir, base, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "place", "mkdir", dir, err)
	}
	unlock, err := s.acquire(ctx, dir)
	if err != nil {
		return "", err
	}
	defer unlock()

	skip := make(map[string]struct{})
	for range s.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target, err := s.allocate(dir, base, ext, skip)
		if err != nil {
			return "", err
		}
		err = moveNoClobber(src, target)
		if errors.Is(err, os.ErrExist) {
			s.logger.Debug("destination appeared during placement, trying next name",
				logging.Path("destination", target))
			skip[target] = struct{}{}
			continue
		}
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "place", "move", fmt.Sprintf("%s -> %s", src, target), err)
		}
		s.mu.Lock()
		s.assigned[target] = struct{}{}
		s.mu.Unlock()
		return target, nil
	}
	return "", services.Wrap(services.ErrAllocationExhausted, "place", "race", "destination kept changing", nil)
}

// Reserve allocates like Allocate and records the result as placed without
// touching the filesystem, so later allocations in this session skip it.
func (s *Session) Reserve(dir, base, ext string) (string, error) {
	mu := s.dirMutex(dir)
	mu.Lock()
	defer mu.Unlock()
	target, err := s.allocate(dir, base, ext, nil)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.assigned[target] = struct{}{}
	s.mu.Unlock()
	return target, nil
}

func (s *Session) dirMutex(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.dirLocks[dir]
	if !ok {
		mu = &sync.Mutex{}
		s.dirLocks[dir] = mu
	}
	return mu
}

// acquire takes the in-process and cross-process locks for dir.
func (s *Session) acquire(ctx context.Context, dir string) (func(), error) {
	mu := s.dirMutex(dir)
	mu.Lock()

	if s.lockDir == "" {
		return mu.Unlock, nil
	}
	if err := os.MkdirAll(s.lockDir, 0o755); err != nil {
		mu.Unlock()
		return nil, services.Wrap(services.ErrConfiguration, "place", "lock dir", s.lockDir, err)
	}
	fl := flock.New(LockPath(s.lockDir, dir))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, pkgerrors.Wrapf(err, "lock %s", dir)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release directory lock", logging.String("dir", dir), logging.Error(err))
		}
		mu.Unlock()
	}, nil
}

// LockPath returns the lock file guarding placements into dir.
func LockPath(lockDir, dir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(dir)))
	return filepath.Join(lockDir, "dir-"+hex.EncodeToString(sum[:8])+".lock")
}
