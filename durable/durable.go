// Package durable implements the crash-safe compound procedures built on
// top of the [vfs.Filesystem] capability set: creating directories,
// atomically moving and deleting entries, and their crash-safety contracts.
//
// [Operations] is a stateless façade parameterized by a [vfs.Filesystem]
// implementation. It holds no mutable state of its own and is safe for
// concurrent use by multiple goroutines, provided the underlying
// [vfs.Filesystem] is.
package durable

import (
	"errors"

	"github.com/Calvin-L/crash-safe-io/vfs"
)

// Operations is the durable-operations façade described in the package doc.
type Operations struct {
	fs vfs.Filesystem
}

// New returns an [Operations] façade backed by fs.
func New(fs vfs.Filesystem) *Operations {
	return &Operations{fs: fs}
}

// CreateDirectories creates every missing component of path, making each
// new component durable before proceeding to the next.
//
// On return, every component of path exists and is a directory, and the
// most specific pre-existing ancestor's change (if any) is durable. Failure
// during iteration may leave an arbitrary prefix of the components created,
// but each created prefix is individually durable.
//
// A directory that already exists at a given component is treated as
// success for that component (benign race with a concurrent creator); a
// non-directory entry with that name surfaces as [vfs.ErrAlreadyExists].
func (o *Operations) CreateDirectories(path vfs.Path) error {
	current := path.Root()

	for _, name := range path.NameComponents() {
		if err := o.createOneDurably(current, name); err != nil {
			return err
		}

		current = current.Resolve(name)
	}

	return nil
}

func (o *Operations) createOneDurably(current vfs.Path, name string) error {
	dh, err := o.fs.OpenDirectory(current)
	if err != nil {
		return err
	}
	defer dh.Close()

	readable, err := o.fs.IsReadableDirectory(dh, name)
	if err != nil {
		return err
	}

	if !readable {
		mkdirErr := o.fs.Mkdir(dh, name)
		if mkdirErr != nil {
			if !errors.Is(mkdirErr, vfs.ErrAlreadyExists) {
				return mkdirErr
			}

			// Benign race with another creator, unless the conflicting
			// entry turned out not to be a directory.
			nowReadable, checkErr := o.fs.IsReadableDirectory(dh, name)
			if checkErr != nil {
				return checkErr
			}

			if !nowReadable {
				return mkdirErr
			}
		}
	}

	return dh.Sync()
}
