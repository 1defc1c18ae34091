package durable

import (
	"errors"
	"testing"

	"github.com/Calvin-L/crash-safe-io/vfs"
)

func mustPath(t *testing.T, p string) vfs.Path {
	t.Helper()

	path, err := vfs.NewPath(p)
	if err != nil {
		t.Fatalf("NewPath(%q): %v", p, err)
	}

	return path
}

func Test_CreateDirectories_Creates_Every_Component(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	target := root.Resolve("a").Resolve("b").Resolve("c")

	if err := ops.CreateDirectories(target); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}

	for _, p := range []vfs.Path{root.Resolve("a"), root.Resolve("a").Resolve("b"), target} {
		dh, err := fs.OpenDirectory(p)
		if err != nil {
			t.Fatalf("OpenDirectory(%s): %v", p, err)
		}

		dh.Close()
	}
}

func Test_CreateDirectories_Is_Idempotent(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())
	target := root.Resolve("a").Resolve("b")

	if err := ops.CreateDirectories(target); err != nil {
		t.Fatalf("first CreateDirectories: %v", err)
	}

	if err := ops.CreateDirectories(target); err != nil {
		t.Fatalf("second CreateDirectories: %v", err)
	}
}

func Test_CreateDirectories_Fails_When_Component_Is_A_File(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	blocker := root.Resolve("blocker")

	fh, err := fs.OpenFile(blocker)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err = ops.CreateDirectories(blocker.Resolve("child"))
	if got, want := err, vfs.ErrAlreadyExists; !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}
}

func Test_CreateDirectories_On_Model_Is_Durable_Per_Component(t *testing.T) {
	m := vfs.NewModel(vfs.ModelConfig{Seed: 1})
	ops := New(m)

	target := mustPath(t, "/a/b/c")

	if err := ops.CreateDirectories(target); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}

	m.SimulateCrash()

	if !m.VolatileExists(mustPath(t, "/a")) {
		t.Fatalf("/a did not survive simulated crash")
	}

	if !m.VolatileExists(mustPath(t, "/a/b")) {
		t.Fatalf("/a/b did not survive simulated crash")
	}

	if !m.VolatileExists(target) {
		t.Fatalf("/a/b/c did not survive simulated crash")
	}
}
