package durable

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/Calvin-L/crash-safe-io/vfs"
)

// stagingDirPrefix names the staging directory created as a sibling of the
// parent of the entry being deleted. Each call gets its own suffix (pid +
// a process-local sequence number) so that concurrent deletes sharing a
// grandparent never collide on the same staging directory.
const stagingDirPrefix = ".crash-safe-io-delete-staging-"

// thingToDeleteName is the name the subtree being deleted is renamed to
// inside the staging directory.
const thingToDeleteName = "thing-to-delete"

var stagingSeq atomic.Uint64

func newStagingDirName() string {
	return fmt.Sprintf("%s%d-%d", stagingDirPrefix, os.Getpid(), stagingSeq.Add(1))
}

// AtomicallyDelete atomically and durably deletes the entry at path and
// everything below it.
//
// From the perspective of path's parent, the entry either durably existed
// before the call or durably does not exist after it — there is no
// intermediate state in which path names a partially deleted subtree.
//
// If path names a non-empty directory, the subtree is first atomically
// renamed out of its parent into a staging directory created as a sibling
// of the parent (so the rename is guaranteed to stay on the same
// filesystem — see DESIGN.md, "Open Question resolved"), then the parent
// is synced, and only then is the staging
// directory's contents best-effort recursively deleted. That cleanup runs
// strictly after the durability sync, so a crash during cleanup can never
// revive the deleted entry.
func (o *Operations) AtomicallyDelete(path vfs.Path) error {
	parentPath, ok := path.Parent()
	if !ok {
		return wrapArgumentErr("atomically delete", path)
	}

	name, ok := path.FileName()
	if !ok {
		return wrapArgumentErr("atomically delete", path)
	}

	parent, err := o.fs.OpenDirectory(parentPath)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			return nil
		}

		return err
	}
	defer parent.Close()

	unlinkErr := o.fs.Unlink(parent, name)

	switch {
	case unlinkErr == nil:
		return parent.Sync()
	case errors.Is(unlinkErr, vfs.ErrNotFound):
		return parent.Sync()
	case !errors.Is(unlinkErr, vfs.ErrNotEmpty):
		return unlinkErr
	}

	// unlinkErr is ErrNotEmpty: path names a non-empty directory. Move the
	// whole subtree out of parent atomically, then sync, then clean up
	// best-effort.
	//
	// The staging directory is created as a sibling of parentPath — i.e.
	// inside parentPath's own parent — so it is guaranteed to share a
	// filesystem with the subtree being staged. If parentPath is itself
	// the filesystem root (path is a top-level entry), there is no parent
	// to use: the staging directory is created inside parentPath instead,
	// which is still trivially on the same filesystem.
	grandparentPath, hasGrandparent := parentPath.Parent()
	if !hasGrandparent {
		grandparentPath = parentPath
	}

	grandparent, err := o.fs.OpenDirectory(grandparentPath)
	if err != nil {
		return err
	}
	defer grandparent.Close()

	stagingName := newStagingDirName()
	if err := o.fs.Mkdir(grandparent, stagingName); err != nil {
		return err
	}

	stagingPath := grandparentPath.Resolve(stagingName)

	if err := o.fs.MoveAtomically(path, stagingPath.Resolve(thingToDeleteName)); err != nil {
		return err
	}

	if err := parent.Sync(); err != nil {
		return err
	}

	o.bestEffortDeleteSubtree(stagingPath.Resolve(thingToDeleteName))
	_ = o.fs.DeleteIfExists(stagingPath)

	return nil
}

// bestEffortDeleteSubtree walks the subtree rooted at path iteratively,
// deleting everything it can. Errors are ignored: leftover debris in the
// staging area is acceptable, per the crash-safety contract this cleanup
// runs after.
func (o *Operations) bestEffortDeleteSubtree(path vfs.Path) {
	stack := []vfs.Path{path}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		err := o.fs.DeleteIfExists(p)
		if err == nil || !errors.Is(err, vfs.ErrNotEmpty) {
			continue
		}

		names, listErr := o.fs.List(p)
		if listErr != nil {
			continue
		}

		stack = append(stack, p)
		for _, name := range names {
			stack = append(stack, p.Resolve(name))
		}
	}
}
