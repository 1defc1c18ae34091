package vfs

import (
	"errors"
	"fmt"
)

// Sentinel errors describing the kinds a [Filesystem] operation can fail
// with. Callers detect a kind with [errors.Is], never by inspecting the
// message or the error's concrete type.
//
// A failure that does not fit any of these kinds wraps plain I/O error
// instead (no sentinel) and is reported as the catch-all *io* kind.
var (
	// ErrArgument means a path had no parent or no file name where one was
	// required, or another precondition on the caller's input was violated.
	ErrArgument = errors.New("argument error")

	// ErrNotFound means an entry expected to exist does not.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means Mkdir found the requested name already taken.
	// CreateDirectories surfaces it only when the conflicting entry is not
	// a directory.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotEmpty means Unlink targeted a non-empty directory.
	ErrNotEmpty = errors.New("not empty")

	// ErrIsDirectory means a rename target is a directory that cannot be
	// overwritten by the source entry.
	ErrIsDirectory = errors.New("is a directory")

	// ErrNotSupported means the requested operation is not supported by the
	// platform or crosses a filesystem boundary (for example, a rename
	// between two different filesystems).
	ErrNotSupported = errors.New("not supported")

	// ErrScopeClosed means Commit was called on a
	// durafs.DirectoryModificationScope after it was closed.
	ErrScopeClosed = errors.New("scope closed")
)

// Error is the uniform error type returned by [Filesystem] implementations
// and the layers built on top of them.
//
// It attaches the operation name and the path involved to an underlying
// cause, similar in spirit to [os.PathError] but with an explicit sentinel
// for classification via [errors.Is].
//
// Use [errors.Is] to classify:
//
//	if errors.Is(err, vfs.ErrNotFound) { ... }
//
// Use [errors.As] to recover structured context:
//
//	var verr *vfs.Error
//	if errors.As(err, &verr) {
//	    log.Printf("%s failed for %s", verr.Op, verr.Path)
//	}
type Error struct {
	// Op is a static, verb-first description of the attempted action
	// (for example "open directory", "mkdir", "rename").
	Op string

	// Path is the path the operation was attempted against. For operations
	// taking a parent handle and an entry name, this is the entry name
	// only, not a full path.
	Path string

	// Err is the underlying cause. May be a sentinel from this package, or
	// a plain I/O error for the catch-all kind.
	Err error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapErr attaches op/path context to err. Returns nil if err is nil.
func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Path: path, Err: err}
}
