package vfs

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
)

// ModelConfig configures [Model]. The zero value is usable and seeds the
// internal RNG from a fixed constant, so a freshly constructed zero-value
// Model still behaves deterministically across runs.
type ModelConfig struct {
	// Seed seeds the deterministic RNG the model uses to choose the order
	// [Model.List] returns a directory's entries in. A directory's Sync is
	// a single durability boundary, exactly as a real directory fsync is —
	// it always promotes every pending change, never "some of them" — so
	// the seed has no effect on what survives a simulated crash; it only
	// makes order-sensitive callers (e.g. best-effort subtree cleanup)
	// exercise a different, reproducible traversal order per seed.
	Seed int64
}

type objID int64

const rootID objID = 0

type objKind int

const (
	objFile objKind = iota
	objDir
)

type dirShadow struct {
	children map[string]objID
}

type fileShadow struct {
	content []byte
}

type node struct {
	kind objKind

	durableDir  dirShadow
	volatileDir dirShadow

	durableFile  fileShadow
	volatileFile fileShadow
}

// Model is an in-memory [Filesystem] that tracks independent durable and
// volatile state for every inode, for use in crash-safety property tests.
//
// Mutating operations (Mkdir, Unlink, Rename, file Write) update only the
// volatile shadow of the affected inode. [DirectoryHandle.Sync] and
// [FileHandle.Sync] promote the volatile shadow of the synced inode to
// durable. [Model.SimulateCrash] resets every inode's volatile shadow to its
// durable shadow, as if the process had crashed and every unsynced change
// had been lost.
//
// Model is not meant for production use.
type Model struct {
	mu       sync.Mutex
	rng      *rand.Rand
	nextID   objID
	nodes    map[objID]*node
	tmpID    objID
	tmpCount atomic.Uint64
	gen      uint64
}

// NewModel creates a fresh [Model] filesystem, pre-populated with a durable
// root directory and a durable "/tmp" directory to serve
// [Filesystem.CreateTempDir] and [Filesystem.CreateTempFile].
func NewModel(config ModelConfig) *Model {
	m := &Model{
		rng:    rand.New(rand.NewPCG(uint64(config.Seed), 0)), //nolint:gosec
		nextID: rootID + 1,
		nodes:  make(map[objID]*node),
	}

	root := &node{kind: objDir, durableDir: dirShadow{children: map[string]objID{}}, volatileDir: dirShadow{children: map[string]objID{}}}
	m.nodes[rootID] = root

	tmpID := m.allocLocked()
	tmp := &node{kind: objDir, durableDir: dirShadow{children: map[string]objID{}}, volatileDir: dirShadow{children: map[string]objID{}}}
	m.nodes[tmpID] = tmp
	root.durableDir.children["tmp"] = tmpID
	root.volatileDir.children["tmp"] = tmpID
	m.tmpID = tmpID

	return m
}

func (m *Model) allocLocked() objID {
	id := m.nextID
	m.nextID++

	return id
}

// modelDir is a [DirectoryHandle] into a [Model].
type modelDir struct {
	m   *Model
	id  objID
	gen uint64
}

func (d *modelDir) Sync() error {
	return d.m.syncDir(d.gen, d.id)
}

func (d *modelDir) Close() error {
	return nil
}

// modelFile is a [FileHandle] into a [Model].
type modelFile struct {
	m   *Model
	id  objID
	gen uint64
}

func (f *modelFile) Write(p []byte) (int, error) {
	return f.m.writeFile(f.gen, f.id, p)
}

func (f *modelFile) Sync() error {
	return f.m.syncFile(f.gen, f.id)
}

func (f *modelFile) Close() error {
	return nil
}

// SimulateCrash resets every inode's volatile shadow to its durable shadow
// and invalidates every handle previously obtained from m. Using an
// invalidated handle returns an error wrapping [ErrArgument].
func (m *Model) SimulateCrash() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.nodes {
		if n.kind == objDir {
			n.volatileDir.children = cloneChildren(n.durableDir.children)
		} else {
			n.volatileFile.content = append([]byte(nil), n.durableFile.content...)
		}
	}

	m.gen++
}

func cloneChildren(src map[string]objID) map[string]objID {
	dst := make(map[string]objID, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}

func (m *Model) checkGen(gen uint64) error {
	if gen != m.gen {
		return wrapErr("use handle", "", fmt.Errorf("%w: handle invalidated by a simulated crash", ErrArgument))
	}

	return nil
}

func (m *Model) resolve(p Path) (objID, bool) {
	id := rootID

	for _, name := range p.NameComponents() {
		n := m.nodes[id]
		if n.kind != objDir {
			return 0, false
		}

		child, ok := n.volatileDir.children[name]
		if !ok {
			return 0, false
		}

		id = child
	}

	return id, true
}

func (m *Model) CreateTempDir() (Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.tmpCount.Add(1)
	id := m.allocLocked()
	m.nodes[id] = &node{kind: objDir, durableDir: dirShadow{children: map[string]objID{}}, volatileDir: dirShadow{children: map[string]objID{}}}
	name := fmt.Sprintf("model-tempdir-%d", seq)
	m.nodes[m.tmpID].volatileDir.children[name] = id

	return NewPath("/tmp/" + name)
}

func (m *Model) CreateTempFile() (Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.tmpCount.Add(1)
	id := m.allocLocked()
	m.nodes[id] = &node{kind: objFile}
	name := fmt.Sprintf("model-tempfile-%d", seq)
	m.nodes[m.tmpID].volatileDir.children[name] = id

	return NewPath("/tmp/" + name)
}

func (m *Model) OpenDirectory(path Path) (DirectoryHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.resolve(path)
	if !ok {
		return nil, wrapErr("open directory", path.String(), ErrNotFound)
	}

	if m.nodes[id].kind != objDir {
		return nil, wrapErr("open directory", path.String(), fmt.Errorf("%w: not a directory", ErrArgument))
	}

	return &modelDir{m: m, id: id, gen: m.gen}, nil
}

func (m *Model) OpenFile(path Path) (FileHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := path.Parent()
	if !ok {
		return nil, wrapErr("open file", path.String(), ErrArgument)
	}

	name, ok := path.FileName()
	if !ok {
		return nil, wrapErr("open file", path.String(), ErrArgument)
	}

	parentID, ok := m.resolve(parent)
	if !ok {
		return nil, wrapErr("open file", path.String(), ErrNotFound)
	}

	parentNode := m.nodes[parentID]
	if parentNode.kind != objDir {
		return nil, wrapErr("open file", path.String(), ErrArgument)
	}

	if existingID, exists := parentNode.volatileDir.children[name]; exists {
		existing := m.nodes[existingID]
		if existing.kind != objFile {
			return nil, wrapErr("open file", path.String(), fmt.Errorf("%w: not a regular file", ErrArgument))
		}

		existing.volatileFile.content = nil

		return &modelFile{m: m, id: existingID, gen: m.gen}, nil
	}

	id := m.allocLocked()
	m.nodes[id] = &node{kind: objFile}
	parentNode.volatileDir.children[name] = id

	return &modelFile{m: m, id: id, gen: m.gen}, nil
}

// List returns the names of path's entries in an order chosen by the
// model's seeded RNG: deterministic for a given seed and call sequence,
// but not alphabetical, so that order-sensitive callers (e.g. best-effort
// subtree cleanup in the durable package) are exercised against a
// different, reproducible traversal order per [ModelConfig.Seed].
func (m *Model) List(path Path) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.resolve(path)
	if !ok {
		return nil, wrapErr("list", path.String(), ErrNotFound)
	}

	n := m.nodes[id]
	if n.kind != objDir {
		return nil, wrapErr("list", path.String(), ErrArgument)
	}

	names := make([]string, 0, len(n.volatileDir.children))
	for name := range n.volatileDir.children {
		names = append(names, name)
	}

	sort.Strings(names)
	m.rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	return names, nil
}

func (m *Model) IsReadableDirectory(dir DirectoryHandle, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := dir.(*modelDir)
	if !ok {
		return false, wrapErr("is readable directory", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	if err := m.checkGen(md.gen); err != nil {
		return false, err
	}

	parent := m.nodes[md.id]

	childID, exists := parent.volatileDir.children[name]
	if !exists {
		return false, nil
	}

	return m.nodes[childID].kind == objDir, nil
}

func (m *Model) Mkdir(dir DirectoryHandle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := dir.(*modelDir)
	if !ok {
		return wrapErr("mkdir", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	if err := m.checkGen(md.gen); err != nil {
		return err
	}

	parent := m.nodes[md.id]
	if _, exists := parent.volatileDir.children[name]; exists {
		return wrapErr("mkdir", name, ErrAlreadyExists)
	}

	id := m.allocLocked()
	m.nodes[id] = &node{kind: objDir, durableDir: dirShadow{children: map[string]objID{}}, volatileDir: dirShadow{children: map[string]objID{}}}
	parent.volatileDir.children[name] = id

	return nil
}

func (m *Model) Unlink(dir DirectoryHandle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := dir.(*modelDir)
	if !ok {
		return wrapErr("unlink", name, fmt.Errorf("foreign directory handle type %T", dir))
	}

	if err := m.checkGen(md.gen); err != nil {
		return err
	}

	parent := m.nodes[md.id]

	childID, exists := parent.volatileDir.children[name]
	if !exists {
		return wrapErr("unlink", name, ErrNotFound)
	}

	child := m.nodes[childID]
	if child.kind == objDir && len(child.volatileDir.children) > 0 {
		return wrapErr("unlink", name, ErrNotEmpty)
	}

	delete(parent.volatileDir.children, name)

	return nil
}

func (m *Model) Rename(srcDir DirectoryHandle, srcName string, tgtDir DirectoryHandle, tgtName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sd, ok := srcDir.(*modelDir)
	if !ok {
		return wrapErr("rename", srcName, fmt.Errorf("foreign directory handle type %T", srcDir))
	}

	td, ok := tgtDir.(*modelDir)
	if !ok {
		return wrapErr("rename", tgtName, fmt.Errorf("foreign directory handle type %T", tgtDir))
	}

	if err := m.checkGen(sd.gen); err != nil {
		return err
	}

	if err := m.checkGen(td.gen); err != nil {
		return err
	}

	srcParent := m.nodes[sd.id]

	childID, exists := srcParent.volatileDir.children[srcName]
	if !exists {
		return wrapErr("rename", srcName, ErrNotFound)
	}

	tgtParent := m.nodes[td.id]

	if existingID, exists := tgtParent.volatileDir.children[tgtName]; exists {
		if m.nodes[existingID].kind == objDir {
			return wrapErr("rename", tgtName, ErrIsDirectory)
		}
	}

	delete(srcParent.volatileDir.children, srcName)
	tgtParent.volatileDir.children[tgtName] = childID

	return nil
}

func (m *Model) DeleteIfExists(path Path) error {
	return DefaultDeleteIfExists(m, path)
}

func (m *Model) MoveAtomically(src, tgt Path) error {
	return DefaultMoveAtomically(m, src, tgt)
}

// syncDir promotes every pending change to the directory's volatile shadow
// to durable, in one step. Unlike a directory's entry listing order (see
// [Model.List]), this is not a place the model introduces nondeterminism:
// a real directory fsync durably commits everything written through the
// handle so far, never a subset of it, so the model mirrors that and
// promotes the whole volatile shadow unconditionally.
func (m *Model) syncDir(gen uint64, id objID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkGen(gen); err != nil {
		return err
	}

	n := m.nodes[id]
	n.durableDir.children = cloneChildren(n.volatileDir.children)

	return nil
}

func (m *Model) syncFile(gen uint64, id objID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkGen(gen); err != nil {
		return err
	}

	n := m.nodes[id]
	n.durableFile.content = append([]byte(nil), n.volatileFile.content...)

	return nil
}

func (m *Model) writeFile(gen uint64, id objID, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkGen(gen); err != nil {
		return 0, err
	}

	n := m.nodes[id]
	n.volatileFile.content = append(n.volatileFile.content, p...)

	return len(p), nil
}

// DurableRead returns the durable contents of the file at path, for use by
// tests asserting on the post-crash view.
func (m *Model) DurableRead(path Path) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.resolve(path)
	if !ok {
		return nil, wrapErr("durable read", path.String(), ErrNotFound)
	}

	n := m.nodes[id]
	if n.kind != objFile {
		return nil, wrapErr("durable read", path.String(), ErrArgument)
	}

	return append([]byte(nil), n.durableFile.content...), nil
}

// VolatileExists reports whether path currently resolves to an entry in the
// live, volatile namespace (what a concurrent reader would observe right
// now, durable or not).
func (m *Model) VolatileExists(path Path) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.resolve(path)

	return ok
}

// DurableSnapshot walks the durable namespace reachable from root and
// returns every regular file's path mapped to its durable contents, for
// use by tests comparing whole-model state (e.g. across two independently
// driven [Model] instances, or before and after a [Model.SimulateCrash]
// that should not have changed anything already durable).
func (m *Model) DurableSnapshot(root Path) map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := map[string][]byte{}

	id, ok := m.resolve(root)
	if !ok {
		return snapshot
	}

	m.snapshotLocked(root, id, snapshot)

	return snapshot
}

func (m *Model) snapshotLocked(path Path, id objID, out map[string][]byte) {
	n := m.nodes[id]

	if n.kind == objFile {
		out[path.String()] = append([]byte(nil), n.durableFile.content...)

		return
	}

	for name, childID := range n.durableDir.children {
		m.snapshotLocked(path.Resolve(name), childID, out)
	}
}

// Compile-time interface check.
var _ Filesystem = (*Model)(nil)
