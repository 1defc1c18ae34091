package vfs

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Real implements [Filesystem] against the real, local filesystem using
// golang.org/x/sys/unix: directories are opened with O_DIRECTORY, and
// entries are then manipulated through fd-relative syscalls
// (Mkdirat/Unlinkat/Renameat/Fstatat) and flushed with Fsync. Fd-relative
// operations are what let a
// [DirectoryHandle] stay bound to the inode it was opened against even if
// the path it was opened from is later replaced.
type Real struct{}

// NewReal returns a [Filesystem] backed by the real, local filesystem.
func NewReal() *Real {
	return &Real{}
}

// realDir is a [DirectoryHandle] backed by an fd opened with O_DIRECTORY.
type realDir struct {
	fd   int
	path string
}

func (d *realDir) Sync() error {
	err := unix.Fsync(d.fd)
	if err != nil {
		return wrapErr("sync directory", d.path, err)
	}

	return nil
}

func (d *realDir) Close() error {
	err := unix.Close(d.fd)
	if err != nil {
		return wrapErr("close directory", d.path, err)
	}

	return nil
}

// realFile is a [FileHandle] backed by an *os.File opened for writing.
type realFile struct {
	f    *os.File
	path string
}

func (f *realFile) Write(p []byte) (int, error) {
	n, err := f.f.Write(p)
	if err != nil {
		return n, wrapErr("write file", f.path, err)
	}

	return n, nil
}

func (f *realFile) Sync() error {
	err := f.f.Sync()
	if err != nil {
		return wrapErr("sync file", f.path, err)
	}

	return nil
}

func (f *realFile) Close() error {
	err := f.f.Close()
	if err != nil {
		return wrapErr("close file", f.path, err)
	}

	return nil
}

func (r *Real) CreateTempDir() (Path, error) {
	dir, err := os.MkdirTemp("", "crash-safe-io-*")
	if err != nil {
		return Path{}, wrapErr("create temp dir", "", err)
	}

	return NewPath(dir)
}

func (r *Real) CreateTempFile() (Path, error) {
	f, err := os.CreateTemp("", "crash-safe-io-*")
	if err != nil {
		return Path{}, wrapErr("create temp file", "", err)
	}

	name := f.Name()

	if closeErr := f.Close(); closeErr != nil {
		return Path{}, wrapErr("create temp file", name, closeErr)
	}

	return NewPath(name)
}

func (r *Real) OpenDirectory(path Path) (DirectoryHandle, error) {
	fd, err := unix.Open(path.String(), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, wrapErr("open directory", path.String(), classifyErrno(err))
	}

	return &realDir{fd: fd, path: path.String()}, nil
}

func (r *Real) OpenFile(path Path) (FileHandle, error) {
	f, err := os.OpenFile(path.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrapErr("open file", path.String(), err)
	}

	return &realFile{f: f, path: path.String()}, nil
}

func (r *Real) List(path Path) ([]string, error) {
	entries, err := os.ReadDir(path.String())
	if err != nil {
		return nil, wrapErr("list", path.String(), err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}

	return names, nil
}

func (r *Real) IsReadableDirectory(dir DirectoryHandle, name string) (bool, error) {
	rd, ok := dir.(*realDir)
	if !ok {
		return false, wrapErr("is readable directory", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	var st unix.Stat_t

	err := unix.Fstatat(rd.fd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}

		return false, wrapErr("is readable directory", name, classifyErrno(err))
	}

	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return false, nil
	}

	accessErr := unix.Faccessat(rd.fd, name, unix.R_OK, 0)

	return accessErr == nil, nil
}

func (r *Real) Mkdir(dir DirectoryHandle, name string) error {
	rd, ok := dir.(*realDir)
	if !ok {
		return wrapErr("mkdir", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	err := unix.Mkdirat(rd.fd, name, 0o755)
	if err != nil {
		return wrapErr("mkdir", name, classifyErrno(err))
	}

	return nil
}

func (r *Real) Unlink(dir DirectoryHandle, name string) error {
	rd, ok := dir.(*realDir)
	if !ok {
		return wrapErr("unlink", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	var st unix.Stat_t

	err := unix.Fstatat(rd.fd, name, &st, unix.AT_SYMLINK_NOFOLLOW)
	if err != nil {
		return wrapErr("unlink", name, classifyErrno(err))
	}

	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		err = unix.Unlinkat(rd.fd, name, unix.AT_REMOVEDIR)
		if errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST) {
			return wrapErr("unlink", name, ErrNotEmpty)
		}
	} else {
		err = unix.Unlinkat(rd.fd, name, 0)
	}

	if err != nil {
		return wrapErr("unlink", name, classifyErrno(err))
	}

	return nil
}

func (r *Real) Rename(srcDir DirectoryHandle, srcName string, tgtDir DirectoryHandle, tgtName string) error {
	sd, ok := srcDir.(*realDir)
	if !ok {
		return wrapErr("rename", srcName, fmt.Errorf("foreign directory handle type %T", srcDir))
	}

	td, ok := tgtDir.(*realDir)
	if !ok {
		return wrapErr("rename", tgtName, fmt.Errorf("foreign directory handle type %T", tgtDir))
	}

	err := unix.Renameat(sd.fd, srcName, td.fd, tgtName)
	if err == nil {
		return nil
	}

	if errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST) || errors.Is(err, unix.EISDIR) {
		return wrapErr("rename", tgtName, ErrIsDirectory)
	}

	return wrapErr("rename", tgtName, classifyErrno(err))
}

func (r *Real) DeleteIfExists(path Path) error {
	return DefaultDeleteIfExists(r, path)
}

func (r *Real) MoveAtomically(src, tgt Path) error {
	return DefaultMoveAtomically(r, src, tgt)
}

// classifyErrno maps a raw errno into one of this package's error kinds
// where a mapping exists, leaving other errors as-is for the catch-all *io*
// kind.
func classifyErrno(err error) error {
	switch {
	case errors.Is(err, unix.ENOENT):
		return ErrNotFound
	case errors.Is(err, unix.EEXIST):
		return ErrAlreadyExists
	case errors.Is(err, unix.EXDEV):
		return ErrNotSupported
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EOPNOTSUPP):
		return ErrNotSupported
	default:
		return err
	}
}

// Compile-time interface check.
var _ Filesystem = (*Real)(nil)
