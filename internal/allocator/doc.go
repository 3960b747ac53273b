// Package allocator hands out collision-free destination paths and commits
// moves into them without ever overwriting an existing file.
//
// A Session remembers every path it placed, so two records of one batch can
// never receive the same name even before the first move lands. Placement in
// a directory is serialized by an in-process mutex and, across processes, by
// a gofrs/flock lock file kept under the state directory. The final move is a
// no-clobber rename; a lost race surfaces as os.ErrExist and the next
// candidate is tried.
//
// Names carry a reserved disambiguation suffix "(N)" before the extension. A
// base that already ends in "(N)" is continued from N instead of receiving a
// second suffix.
package allocator
