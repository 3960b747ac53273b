//go:build !linux

package allocator

func renameNoReplace(src, dst string) error {
	return linkThenUnlink(src, dst)
}
