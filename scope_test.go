package durafs

import (
	"errors"
	"testing"

	"github.com/Calvin-L/crash-safe-io/vfs"
)

func Test_DirectoryModificationScope_Commit_Syncs_Directory(t *testing.T) {
	fs := vfs.NewReal()
	core := New(fs)
	root := t.TempDir()

	scope, err := core.OpenDirectoryModificationScope(root)
	if err != nil {
		t.Fatalf("OpenDirectoryModificationScope: %v", err)
	}
	defer scope.Close()

	if err := core.Write(mustPath(t, root).Resolve("child").String(), []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := scope.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func Test_DirectoryModificationScope_Commit_After_Close_Fails(t *testing.T) {
	fs := vfs.NewReal()
	core := New(fs)
	root := t.TempDir()

	scope, err := core.OpenDirectoryModificationScope(root)
	if err != nil {
		t.Fatalf("OpenDirectoryModificationScope: %v", err)
	}

	if err := scope.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := scope.Commit(); !errors.Is(err, vfs.ErrScopeClosed) {
		t.Fatalf("Commit after Close err=%v, want=%v", err, vfs.ErrScopeClosed)
	}

	if err := scope.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func Test_DirectoryModificationScope_On_Model_Commit_Makes_Prior_Writes_Durable(t *testing.T) {
	m := vfs.NewModel(vfs.ModelConfig{Seed: 21})
	core := New(m)

	if err := core.CreateDirectories("/a"); err != nil {
		t.Fatalf("CreateDirectories: %v", err)
	}

	scope, err := core.OpenDirectoryModificationScope("/a")
	if err != nil {
		t.Fatalf("OpenDirectoryModificationScope: %v", err)
	}
	defer scope.Close()

	if err := core.Write("/a/child", []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := scope.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	m.SimulateCrash()

	if !m.VolatileExists(mustPath(t, "/a/child")) {
		t.Fatalf("/a/child did not survive simulated crash")
	}
}
