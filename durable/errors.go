package durable

import "github.com/Calvin-L/crash-safe-io/vfs"

// wrapArgumentErr reports that path lacks a parent or file name where one
// was required for op.
func wrapArgumentErr(op string, path vfs.Path) error {
	return &vfs.Error{Op: op, Path: path.String(), Err: vfs.ErrArgument}
}
