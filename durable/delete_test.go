package durable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Calvin-L/crash-safe-io/vfs"
)

func Test_AtomicallyDelete_Removes_File(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	target := root.Resolve("child")
	writeFile(t, fs, target, "hello")

	if err := ops.AtomicallyDelete(target); err != nil {
		t.Fatalf("AtomicallyDelete: %v", err)
	}

	if _, err := os.Stat(target.String()); !os.IsNotExist(err) {
		t.Fatalf("target still exists, stat err=%v", err)
	}
}

func Test_AtomicallyDelete_Removes_NonEmpty_Subtree(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	if err := os.MkdirAll(filepath.Join(root.String(), "subfolder", "subchild"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	writeFile(t, fs, root.Resolve("child"), "hello")

	if err := ops.AtomicallyDelete(root); err != nil {
		t.Fatalf("AtomicallyDelete: %v", err)
	}

	if _, err := os.Stat(root.String()); !os.IsNotExist(err) {
		t.Fatalf("root still exists, stat err=%v", err)
	}
}

func Test_AtomicallyDelete_On_Missing_Path_Is_A_NoOp(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	if err := ops.AtomicallyDelete(root.Resolve("does-not-exist")); err != nil {
		t.Fatalf("AtomicallyDelete: %v", err)
	}
}

func Test_AtomicallyDelete_On_Model_Is_Durable_After_Crash(t *testing.T) {
	m := vfs.NewModel(vfs.ModelConfig{Seed: 3})
	ops := New(m)

	root := mustPath(t, "/root")
	if err := ops.CreateDirectories(root.Resolve("subfolder").Resolve("subchild")); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}

	fh, err := m.OpenFile(root.Resolve("child"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if err := fh.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := fh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := ops.AtomicallyDelete(root); err != nil {
		t.Fatalf("AtomicallyDelete: %v", err)
	}

	m.SimulateCrash()

	if m.VolatileExists(root) {
		t.Fatalf("root still exists after simulated crash")
	}
}

func Test_AtomicallyDelete_Two_Siblings_Concurrently_Do_Not_Collide(t *testing.T) {
	fs := vfs.NewReal()
	ops := New(fs)
	root := mustPath(t, t.TempDir())

	if err := os.MkdirAll(filepath.Join(root.String(), "left", "x"), 0o755); err != nil {
		t.Fatalf("MkdirAll(left): %v", err)
	}

	if err := os.MkdirAll(filepath.Join(root.String(), "right", "y"), 0o755); err != nil {
		t.Fatalf("MkdirAll(right): %v", err)
	}

	done := make(chan error, 2)

	go func() { done <- ops.AtomicallyDelete(root.Resolve("left")) }()
	go func() { done <- ops.AtomicallyDelete(root.Resolve("right")) }()

	for range 2 {
		if err := <-done; err != nil {
			t.Fatalf("AtomicallyDelete: %v", err)
		}
	}

	for _, name := range []string{"left", "right"} {
		if _, err := os.Stat(filepath.Join(root.String(), name)); !os.IsNotExist(err) {
			t.Fatalf("%s still exists, stat err=%v", name, err)
		}
	}
}
