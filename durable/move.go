package durable

import "github.com/Calvin-L/crash-safe-io/vfs"

// Move atomically and durably renames src to tgt.
//
// After success, tgt durably has the original contents of src and src
// durably no longer exists. Cross-filesystem moves fail with
// [vfs.ErrNotSupported]. A target that is a directory that cannot be
// overwritten fails with [vfs.ErrIsDirectory].
//
// The source and target parent directory handles are opened before the
// rename so that each directory's Sync contract — durability of changes
// made after the handle was opened — covers the rename itself.
func (o *Operations) Move(src, tgt vfs.Path) error {
	return o.move(src, tgt, true)
}

// MoveWithoutPromisingSourceDeletion is like [Operations.Move], except only
// the target parent directory is synced. It is used by the atomic durable
// output stream's commit path, where the source is a temporary file whose
// durable deletion is not itself meaningful.
func (o *Operations) MoveWithoutPromisingSourceDeletion(src, tgt vfs.Path) error {
	return o.move(src, tgt, false)
}

func (o *Operations) move(src, tgt vfs.Path, syncSource bool) error {
	srcParent, ok := src.Parent()
	if !ok {
		return wrapArgumentErr("move", src)
	}

	srcName, ok := src.FileName()
	if !ok {
		return wrapArgumentErr("move", src)
	}

	tgtParent, ok := tgt.Parent()
	if !ok {
		return wrapArgumentErr("move", tgt)
	}

	tgtName, ok := tgt.FileName()
	if !ok {
		return wrapArgumentErr("move", tgt)
	}

	sp, err := o.fs.OpenDirectory(srcParent)
	if err != nil {
		return err
	}
	defer sp.Close()

	tp, err := o.fs.OpenDirectory(tgtParent)
	if err != nil {
		return err
	}
	defer tp.Close()

	if err := o.fs.Rename(sp, srcName, tp, tgtName); err != nil {
		return err
	}

	if err := tp.Sync(); err != nil {
		return err
	}

	if syncSource {
		if err := sp.Sync(); err != nil {
			return err
		}
	}

	return nil
}
