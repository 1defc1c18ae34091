package vfs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Path is an opaque, always-absolute filesystem path.
//
// Callers construct a Path from a relative or absolute string with
// [NewPath]; NewPath promotes relative input to absolute form using the
// host environment's notion of the current working directory
// ([filepath.Abs]). Concrete path parsing and absolute-path resolution are
// the host environment's responsibility — Path is a thin, immutable wrapper
// around the result, not a competing path grammar.
type Path struct {
	abs string
}

// NewPath promotes p to an absolute, cleaned [Path].
//
// Returns an error satisfying errors.Is(err, [ErrArgument]) if p is empty.
func NewPath(p string) (Path, error) {
	if p == "" {
		return Path{}, wrapErr("new path", p, ErrArgument)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return Path{}, wrapErr("new path", p, err)
	}

	return Path{abs: filepath.Clean(abs)}, nil
}

// MustPath is like [NewPath] but panics on error. Intended for tests and
// package-level constants, never for handling caller-supplied paths.
func MustPath(p string) Path {
	path, err := NewPath(p)
	if err != nil {
		panic(fmt.Sprintf("vfs: MustPath(%q): %v", p, err))
	}

	return path
}

// String returns the promoted absolute path.
func (p Path) String() string {
	return p.abs
}

// IsRoot reports whether p names the filesystem root.
func (p Path) IsRoot() bool {
	return p.abs == string(filepath.Separator)
}

// Parent returns the parent of p and true, or the zero [Path] and false if p
// is the filesystem root (which has no parent).
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() {
		return Path{}, false
	}

	return Path{abs: filepath.Dir(p.abs)}, true
}

// FileName returns the final component of p and true, or "" and false if p
// is the filesystem root (which has no file name).
func (p Path) FileName() (string, bool) {
	if p.IsRoot() {
		return "", false
	}

	return filepath.Base(p.abs), true
}

// Resolve returns the path obtained by appending name as a child of p.
func (p Path) Resolve(name string) Path {
	return Path{abs: filepath.Join(p.abs, name)}
}

// Root returns the filesystem root that p descends from.
func (p Path) Root() Path {
	abs := p.abs
	for {
		parent := filepath.Dir(abs)
		if parent == abs {
			return Path{abs: abs}
		}

		abs = parent
	}
}

// NameComponents returns the ordered sequence of component names from the
// root (exclusive) to p's own file name (inclusive). The root itself,
// conventionally "/" on POSIX systems, never appears in the result.
func (p Path) NameComponents() []string {
	root := p.Root().abs
	rel := strings.TrimPrefix(p.abs, root)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))

	if rel == "" {
		return nil
	}

	return strings.Split(rel, string(filepath.Separator))
}
