package vfs

import (
	"errors"
	"os"
	"testing"
)

func mustTempPath(t *testing.T) Path {
	t.Helper()

	p, err := NewPath(t.TempDir())
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}

	return p
}

func Test_Real_Mkdir_Then_IsReadableDirectory_Returns_True(t *testing.T) {
	fs := NewReal()
	root := mustTempPath(t)

	dh, err := fs.OpenDirectory(root)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dh.Close()

	if err := fs.Mkdir(dh, "child"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	readable, err := fs.IsReadableDirectory(dh, "child")
	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := readable, true; got != want {
		t.Fatalf("readable=%v, want=%v", got, want)
	}
}

func Test_Real_Mkdir_Twice_Fails_AlreadyExists(t *testing.T) {
	fs := NewReal()
	root := mustTempPath(t)

	dh, err := fs.OpenDirectory(root)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dh.Close()

	if err := fs.Mkdir(dh, "child"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	err = fs.Mkdir(dh, "child")
	if got, want := err, ErrAlreadyExists; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func Test_Real_Unlink_NonEmptyDirectory_Fails_NotEmpty(t *testing.T) {
	fs := NewReal()
	root := mustTempPath(t)

	dh, err := fs.OpenDirectory(root)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dh.Close()

	if err := fs.Mkdir(dh, "child"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	sub, err := fs.OpenDirectory(root.Resolve("child"))
	if err != nil {
		t.Fatalf("OpenDirectory(child): %v", err)
	}

	if err := fs.Mkdir(sub, "grandchild"); err != nil {
		t.Fatalf("Mkdir(grandchild): %v", err)
	}
	sub.Close()

	err = fs.Unlink(dh, "child")
	if got, want := err, ErrNotEmpty; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func Test_Real_Rename_Onto_Directory_Fails_IsDirectory(t *testing.T) {
	fs := NewReal()
	root := mustTempPath(t)

	dh, err := fs.OpenDirectory(root)
	if err != nil {
		t.Fatalf("OpenDirectory: %v", err)
	}
	defer dh.Close()

	fh, err := fs.OpenFile(root.Resolve("child"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := fh.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := fs.Mkdir(dh, "target"); err != nil {
		t.Fatalf("Mkdir(target): %v", err)
	}

	err = fs.Rename(dh, "child", dh, "target")
	if got, want := err, ErrIsDirectory; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	data, readErr := os.ReadFile(root.Resolve("child").String())
	if readErr != nil {
		t.Fatalf("ReadFile(child): %v", readErr)
	}

	if got, want := string(data), "hello"; got != want {
		t.Fatalf("child contents=%q, want=%q", got, want)
	}
}

func Test_Real_CreateTempFile_Then_CreateTempDir_Return_Distinct_Paths(t *testing.T) {
	fs := NewReal()

	f1, err := fs.CreateTempFile()
	if err != nil {
		t.Fatalf("CreateTempFile: %v", err)
	}
	defer os.Remove(f1.String())

	f2, err := fs.CreateTempFile()
	if err != nil {
		t.Fatalf("CreateTempFile: %v", err)
	}
	defer os.Remove(f2.String())

	if f1.String() == f2.String() {
		t.Fatalf("CreateTempFile returned the same path twice: %q", f1.String())
	}

	d1, err := fs.CreateTempDir()
	if err != nil {
		t.Fatalf("CreateTempDir: %v", err)
	}
	defer os.RemoveAll(d1.String())

	if d1.String() == f1.String() || d1.String() == f2.String() {
		t.Fatalf("CreateTempDir returned a path already returned by CreateTempFile: %q", d1.String())
	}

	entries, err := fs.List(d1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if got, want := len(entries), 0; got != want {
		t.Fatalf("len(entries)=%d, want=%d", got, want)
	}
}
