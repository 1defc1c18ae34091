// Package vfs provides the abstract filesystem capability that crash-safe-io
// is built on.
//
// The main types are:
//   - [Filesystem]: the capability set — open/close handles, list, mkdir,
//     unlink, rename, file write, directory sync, file sync, temp file/dir.
//   - [DirectoryHandle] / [FileHandle]: scoped references to open inodes.
//   - [Real]: the production implementation, backed by fd-relative syscalls.
//   - [Model]: an in-memory implementation that tracks independent durable
//     and volatile state per inode, for crash-safety property tests.
//
// No operation on [Filesystem] is required to provide any durability on its
// own — durability is composed by the durable package one layer up.
package vfs

import (
	"errors"
	"io"
)

// DirectoryHandle is an open reference to a directory, bound to the inode
// that was open at acquisition time rather than to the path used to open it.
//
// If the directory is replaced on disk between open and [DirectoryHandle.Sync],
// Sync affects the original inode, not whatever currently resolves to the
// path.
//
// A handle is owned by exactly one logical scope at a time and must be
// closed exactly once, on every exit path, including error paths.
type DirectoryHandle interface {
	// Sync makes durable all changes to the directory's contents made
	// through this handle's [Filesystem] since the handle was opened. It
	// does not make durable changes to children's own contents.
	Sync() error

	// Close releases the handle. After Close, the handle must not be used.
	Close() error
}

// FileHandle is an open reference to a regular file opened for writing.
//
// Every write through the embedded [io.Writer] is an append: crash-safe-io
// never seeks a FileHandle backwards, so an explicit write offset parameter
// would add nothing beyond what io.Writer already expresses.
type FileHandle interface {
	io.Writer

	// Sync makes durable all bytes written through this handle so far.
	Sync() error

	// Close releases the handle. After Close, the handle must not be used.
	Close() error
}

// Filesystem defines the low-level operations every crash-safe-io algorithm
// is built from.
//
// Every operation either succeeds completely as documented, or fails with an
// error classifiable via errors.Is against the sentinels in this package.
// No operation is required to provide durability on its own.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Filesystem interface {
	// CreateTempDir creates a fresh, empty directory in the system's default
	// temporary area and returns its path.
	CreateTempDir() (Path, error)

	// CreateTempFile creates a fresh, empty regular file in the system's
	// default temporary area and returns its path.
	CreateTempFile() (Path, error)

	// OpenDirectory opens path as a directory. Fails if path does not name
	// a readable directory.
	OpenDirectory(path Path) (DirectoryHandle, error)

	// OpenFile opens path for writing, creating it if necessary and
	// truncating any existing contents.
	OpenFile(path Path) (FileHandle, error)

	// List returns the names of the entries directly inside path.
	List(path Path) ([]string, error)

	// IsReadableDirectory reports whether name, as an entry of dir, exists
	// and is a readable directory.
	IsReadableDirectory(dir DirectoryHandle, name string) (bool, error)

	// Mkdir creates a directory entry named name inside dir.
	//
	// Fails with [ErrAlreadyExists] if name is already taken.
	Mkdir(dir DirectoryHandle, name string) error

	// Unlink removes the entry named name from dir.
	//
	// Fails with [ErrNotEmpty] if name refers to a non-empty directory, or
	// with [ErrNotFound] if name does not exist.
	Unlink(dir DirectoryHandle, name string) error

	// Rename atomically moves the entry named srcName in srcDir to tgtName
	// in tgtDir, replacing any existing file at the target.
	//
	// Fails with [ErrNotSupported] if srcDir and tgtDir are on different
	// filesystems, or with [ErrIsDirectory] if the target names a directory
	// that cannot be overwritten by the source entry.
	Rename(srcDir DirectoryHandle, srcName string, tgtDir DirectoryHandle, tgtName string) error

	// DeleteIfExists removes path if it exists, and does nothing if it does
	// not. The default implementation ([DefaultDeleteIfExists]) opens path's
	// parent directory and unlinks it; implementations may override this to
	// simulate other orderings.
	DeleteIfExists(path Path) error

	// MoveAtomically atomically renames src to tgt. The default
	// implementation ([DefaultMoveAtomically]) opens both parent
	// directories and renames; implementations may override this to
	// simulate other orderings.
	MoveAtomically(src, tgt Path) error
}

// DefaultDeleteIfExists implements the default delete_if_exists algorithm:
// open the parent directory, then unlink. A missing entry is treated as
// success. Implementations of [Filesystem] that have no reason to diverge
// should implement Filesystem.DeleteIfExists by calling this.
func DefaultDeleteIfExists(fs Filesystem, path Path) error {
	parent, ok := path.Parent()
	if !ok {
		return wrapErr("delete if exists", path.String(), ErrArgument)
	}

	name, ok := path.FileName()
	if !ok {
		return wrapErr("delete if exists", path.String(), ErrArgument)
	}

	dh, err := fs.OpenDirectory(parent)
	if err != nil {
		if isNotFound(err) {
			return nil
		}

		return err
	}
	defer dh.Close()

	err = fs.Unlink(dh, name)
	if err != nil && isNotFound(err) {
		return nil
	}

	return err
}

// DefaultMoveAtomically implements the default move_atomically algorithm:
// open the source and target parent directories, then rename.
// Implementations of [Filesystem] that have no reason to diverge should
// implement Filesystem.MoveAtomically by calling this.
func DefaultMoveAtomically(fs Filesystem, src, tgt Path) error {
	srcParent, ok := src.Parent()
	if !ok {
		return wrapErr("move atomically", src.String(), ErrArgument)
	}

	srcName, ok := src.FileName()
	if !ok {
		return wrapErr("move atomically", src.String(), ErrArgument)
	}

	tgtParent, ok := tgt.Parent()
	if !ok {
		return wrapErr("move atomically", tgt.String(), ErrArgument)
	}

	tgtName, ok := tgt.FileName()
	if !ok {
		return wrapErr("move atomically", tgt.String(), ErrArgument)
	}

	sp, err := fs.OpenDirectory(srcParent)
	if err != nil {
		return err
	}
	defer sp.Close()

	tp, err := fs.OpenDirectory(tgtParent)
	if err != nil {
		return err
	}
	defer tp.Close()

	return fs.Rename(sp, srcName, tp, tgtName)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
