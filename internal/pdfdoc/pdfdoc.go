package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
)

// HeaderWindow is how far into a file the %PDF- marker may appear.
const HeaderWindow = 1024

var headerMagic = []byte("%PDF-")

var disableConfigOnce sync.Once

// Info is the document information shelver reads from a PDF.
type Info struct {
	Pages        int
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate string
}

// HasHeader reports whether head contains the %PDF- marker within the
// header window.
func HasHeader(head []byte) bool {
	if len(head) > HeaderWindow {
		head = head[:HeaderWindow]
	}
	return bytes.Contains(head, headerMagic)
}

// PageCount returns the number of pages pdfcpu finds in path.
func PageCount(ctx context.Context, path string) (int, error) {
	return guarded(ctx, func() (int, error) {
		return api.PageCountFile(path)
	})
}

// Inspect reads and validates path, returning its page count and the
// document information dictionary.
func Inspect(ctx context.Context, path string) (Info, error) {
	return guarded(ctx, func() (Info, error) {
		pdfCtx, err := api.ReadContextFile(path)
		if err != nil {
			return Info{}, err
		}
		// Configuration also declares CreationDate; the document's own
		// info dictionary lives on the xref table.
		xref := pdfCtx.XRefTable
		return Info{
			Pages:        xref.PageCount,
			Title:        cleanInfo(xref.Title),
			Author:       cleanInfo(xref.Author),
			Subject:      cleanInfo(xref.Subject),
			Keywords:     cleanInfo(xref.Keywords),
			Creator:      cleanInfo(xref.Creator),
			Producer:     cleanInfo(xref.Producer),
			CreationDate: cleanInfo(xref.CreationDate),
		}, nil
	})
}

// guarded runs fn on its own goroutine so a malformed file can neither panic
// the caller nor outlive the context deadline.
func guarded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	disableConfigOnce.Do(api.DisableConfigDir)

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("pdfcpu panic: %v", r)}
			}
		}()
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return r.value, errors.WithStack(r.err)
		}
		return r.value, nil
	}
}

func cleanInfo(value string) string {
	value = strings.ReplaceAll(value, "\x00", "")
	return strings.TrimSpace(value)
}

// ExtractText runs pdftotext on the first maxPages pages of src and writes
// UTF-8 text to dest. A non-positive maxPages converts every page.
func ExtractText(ctx context.Context, binary, src, dest string, maxPages int) error {
	args := []string{"-enc", "UTF-8", "-q"}
	if maxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", maxPages))
	}
	args = append(args, src, dest)
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(string(output)))
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("pdftotext: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("pdftotext: no text in %s", src)
	}
	return nil
}
