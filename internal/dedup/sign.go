package dedup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/naming"
	"shelver/internal/signature"
)

// SignMode selects what a signature prefix is computed from.
type SignMode string

const (
	SignContent SignMode = "content"
	SignName    SignMode = "name"
)

// ParseSignMode accepts "content" or "name".
func ParseSignMode(s string) (SignMode, error) {
	switch mode := SignMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case SignContent, SignName:
		return mode, nil
	default:
		return "", errors.Errorf("unknown signature mode %q (want content or name)", s)
	}
}

// Signed records one prefixing decision.
type Signed struct {
	From  string
	To    string
	Token signature.Token
	Err   error
}

// SignOptions tune Sign.
type SignOptions struct {
	Mode   SignMode
	DryRun bool
	Logger *slog.Logger
}

// Sign renames every visible regular file directly inside dir to
// "<token>_<name>" so Scan can group them by token. Files that already carry
// a token prefix are left alone. Unreadable files are recorded and skipped.
func Sign(ctx context.Context, dir string, placer Placer, opts SignOptions) ([]Signed, error) {
	if opts.Mode == "" {
		opts.Mode = SignContent
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "sign"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var out []Signed
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || fileutil.IsHidden(name) || HasSignaturePrefix(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		path := filepath.Join(dir, name)
		rec := Signed{From: path}

		var token signature.Token
		if opts.Mode == SignName {
			token, err = signature.FromName(name)
		} else {
			token, err = signature.FromFile(path)
		}
		if err != nil {
			rec.Err = err
			out = append(out, rec)
			logger.Debug("file not signed", logging.String(logging.FieldFile, path), logging.Error(err))
			continue
		}
		rec.Token = token

		stem, ext := fileutil.SplitExt(name)
		base := naming.WithSignature(token.String(), stem)
		if opts.DryRun {
			rec.To = filepath.Join(dir, withExt(base, ext))
		} else if rec.To, err = placer.Place(ctx, path, dir, base, ext); err != nil {
			rec.Err = err
			rec.To = ""
		}
		out = append(out, rec)
	}
	return out, nil
}

// HasSignaturePrefix reports whether name starts with "<token>_".
func HasSignaturePrefix(name string) bool {
	if len(name) <= signature.Width || name[signature.Width] != '_' {
		return false
	}
	return signature.Valid(name[:signature.Width])
}

func withExt(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}
