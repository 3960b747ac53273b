package allocator

import (
	"errors"
	"os"
	"syscall"

	pkgerrors "github.com/pkg/errors"

	"shelver/internal/fileutil"
)

// renameNoReplaceFunc is swapped in tests to simulate races and EXDEV.
var renameNoReplaceFunc = renameNoReplace

// moveNoClobber moves src to dst and fails with an error matching
// os.ErrExist when dst already exists. Across filesystems the file is copied
// with verification and the source removed only after the copy succeeds.
func moveNoClobber(src, dst string) error {
	err := renameNoReplaceFunc(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return err
	}
	if !isEXDEV(err) {
		return pkgerrors.WithStack(err)
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return pkgerrors.Wrap(err, "cross-device copy")
	}
	if err := os.Remove(src); err != nil {
		return pkgerrors.Wrap(err, "remove source after cross-device copy")
	}
	return nil
}

func isEXDEV(err error) bool {
	if errors.Is(err, syscall.EXDEV) {
		return true
	}
	var le *os.LinkError
	return errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV)
}

// linkThenUnlink is the portable no-clobber move: link fails when dst
// exists, and the source name is dropped only once the link is in place.
func linkThenUnlink(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
