package durafs

import (
	"github.com/Calvin-L/crash-safe-io/vfs"
)

type scopeState int

const (
	scopeOpen scopeState = iota
	scopeClosed
)

// DirectoryModificationScope is a scoped handle to a directory, opened at
// construction, whose Commit makes durable every change made to that
// directory's contents since construction — including changes performed
// through other means between construction and commit.
//
// Because the handle is opened at construction, Commit only guarantees
// durability of modifications made after construction: callers must open
// the scope before making the changes they intend to commit, not after.
//
// A DirectoryModificationScope is not safe for concurrent use.
type DirectoryModificationScope struct {
	dir   vfs.DirectoryHandle
	path  vfs.Path
	state scopeState
}

// OpenDirectoryModificationScope opens dir and returns a scope bound to it.
func (c *Core) OpenDirectoryModificationScope(dir string) (*DirectoryModificationScope, error) {
	p, err := vfs.NewPath(dir)
	if err != nil {
		return nil, err
	}

	dh, err := c.fs.OpenDirectory(p)
	if err != nil {
		return nil, err
	}

	return &DirectoryModificationScope{dir: dh, path: p, state: scopeOpen}, nil
}

// Commit makes durable every change to the scope's directory since it was
// opened. Commit after Close fails with [vfs.ErrScopeClosed].
func (s *DirectoryModificationScope) Commit() error {
	if s.state == scopeClosed {
		return &vfs.Error{Op: "commit", Path: s.path.String(), Err: vfs.ErrScopeClosed}
	}

	return s.dir.Sync()
}

// Close releases the directory handle. Close is idempotent and safe to
// call after Commit.
func (s *DirectoryModificationScope) Close() error {
	if s.state == scopeClosed {
		return nil
	}

	s.state = scopeClosed

	return s.dir.Close()
}
