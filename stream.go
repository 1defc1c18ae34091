// Package durafs provides crash-safe filesystem primitives: atomic durable
// file write, atomic durable rename, atomic durable subtree deletion,
// durable recursive directory creation, and an atomic-durable output
// stream whose final file appears only on an explicit commit.
//
// The library is entirely synchronous and blocking: every operation may
// block on I/O, none retries internally, and none provides any ordering
// guarantee between goroutines beyond what the return of a call conveys.
// The filesystem is not a synchronization primitive — a goroutine that
// observes another goroutine's write via a directory listing cannot
// conclude the write is durable; only the writer's own call returning says
// so.
//
// [vfs.Real] is the production filesystem; [vfs.Model] is an in-memory
// crash-simulating filesystem for tests. [New] wires either into a [Core],
// the package's entry point.
package durafs

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/Calvin-L/crash-safe-io/durable"
	"github.com/Calvin-L/crash-safe-io/vfs"
)

// Core is the entry point of the package: it binds the durable operations
// and output-stream machinery to a single [vfs.Filesystem].
//
// A Core holds no mutable state of its own beyond the filesystem reference
// it was constructed with, and is safe for concurrent use by multiple
// goroutines, to the extent the underlying Filesystem is.
type Core struct {
	fs  vfs.Filesystem
	ops *durable.Operations
}

// New binds a Core to fs. Use [vfs.NewReal] for production and
// [vfs.NewModel] in tests.
func New(fs vfs.Filesystem) *Core {
	return &Core{fs: fs, ops: durable.New(fs)}
}

// CreateDirectories durably creates path and every missing ancestor
// directory, tolerating any prefix that already exists.
func (c *Core) CreateDirectories(path string) error {
	p, err := vfs.NewPath(path)
	if err != nil {
		return err
	}

	return c.ops.CreateDirectories(p)
}

// AtomicallyDelete durably removes path — file or directory subtree — such
// that after a crash, path either still fully exists or is entirely gone.
// A missing path is not an error.
func (c *Core) AtomicallyDelete(path string) error {
	p, err := vfs.NewPath(path)
	if err != nil {
		return err
	}

	return c.ops.AtomicallyDelete(p)
}

// Move durably renames src to tgt, overwriting tgt if it is a regular
// file, and durably guarantees that src no longer exists once this call
// returns successfully.
func (c *Core) Move(src, tgt string) error {
	sp, err := vfs.NewPath(src)
	if err != nil {
		return err
	}

	tp, err := vfs.NewPath(tgt)
	if err != nil {
		return err
	}

	return c.ops.Move(sp, tp)
}

// MoveWithoutPromisingSourceDeletion behaves like [Core.Move] but only
// durably guarantees that tgt has the moved contents; after a crash, src
// may reappear alongside tgt. Useful for commit-by-rename, where the
// source is a disposable temporary file.
func (c *Core) MoveWithoutPromisingSourceDeletion(src, tgt string) error {
	sp, err := vfs.NewPath(src)
	if err != nil {
		return err
	}

	tp, err := vfs.NewPath(tgt)
	if err != nil {
		return err
	}

	return c.ops.MoveWithoutPromisingSourceDeletion(sp, tp)
}

// Write durably writes data to path as a single atomic unit, creating
// intermediate directories if they do not already exist. See
// [Core.OpenOutputStream] for the underlying primitive.
func (c *Core) Write(path string, data []byte) error {
	return c.WriteStream(path, bytes.NewReader(data), WriteOptions{})
}

// WriteOptions configures [Core.WriteStream].
type WriteOptions struct {
	// ChunkSize is the buffer size used to read from the source reader.
	// Zero means the default of 8 KiB.
	ChunkSize int
}

const defaultChunkSize = 8 * 1024

// WriteStream durably writes all bytes read from r to path as a single
// atomic unit, creating intermediate directories if they do not already
// exist. It reads r in fixed-size chunks (8 KiB by default; see
// [WriteOptions.ChunkSize]) and otherwise behaves identically to
// [Core.Write].
func (c *Core) WriteStream(path string, r io.Reader, opts WriteOptions) error {
	p, err := vfs.NewPath(path)
	if err != nil {
		return err
	}

	stream, err := c.openOutputStream(p)
	if err != nil {
		return err
	}
	defer stream.Close()

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)

	// Hide any WriterTo on r so that CopyBuffer reads through buf.
	if _, err := io.CopyBuffer(stream, struct{ io.Reader }{r}, buf); err != nil {
		return err
	}

	if parent, ok := p.Parent(); ok {
		if err := c.ops.CreateDirectories(parent); err != nil {
			return err
		}
	}

	return stream.Commit()
}

// OpenOutputStream allocates a fresh temporary file with
// [vfs.Filesystem.CreateTempFile] and returns an [OutputStream] ready to
// accept writes. The temporary file lives in the filesystem's default
// temporary area, which is not necessarily on the same filesystem as path;
// when the two differ, [OutputStream.Commit] fails with
// [vfs.ErrNotSupported]. The target path is not modified until
// [OutputStream.Commit] is called.
func (c *Core) OpenOutputStream(path string) (*OutputStream, error) {
	p, err := vfs.NewPath(path)
	if err != nil {
		return nil, err
	}

	return c.openOutputStream(p)
}

func (c *Core) openOutputStream(target vfs.Path) (*OutputStream, error) {
	tmp, err := c.fs.CreateTempFile()
	if err != nil {
		return nil, err
	}

	file, err := c.fs.OpenFile(tmp)
	if err != nil {
		_ = c.fs.DeleteIfExists(tmp)

		return nil, err
	}

	return &OutputStream{
		fs:     c.fs,
		ops:    c.ops,
		target: target,
		tmp:    tmp,
		file:   file,
		buf:    bufio.NewWriter(file),
		state:  streamOpen,
	}, nil
}

type streamState int

const (
	streamOpen streamState = iota
	streamCommitted
	streamAborted
)

// OutputStream is a buffered write target that stages bytes in a temporary
// file and, on [OutputStream.Commit], fsyncs the file and atomically
// renames it into place.
//
// While an OutputStream is open, its target path is untouched. On commit,
// the target durably contains exactly the bytes written before commit. On
// abort (Close without Commit), the target path is unchanged and the
// temporary file is best-effort deleted.
//
// An OutputStream is not safe for concurrent use.
type OutputStream struct {
	fs     vfs.Filesystem
	ops    *durable.Operations
	target vfs.Path
	tmp    vfs.Path
	file   vfs.FileHandle
	buf    *bufio.Writer
	state  streamState
}

// ErrStreamNotOpen is returned by [OutputStream.Write] and
// [OutputStream.Commit] once the stream has left the OPEN state.
var ErrStreamNotOpen = errors.New("output stream is not open")

// Write buffers p into the temporary file backing the stream.
func (s *OutputStream) Write(p []byte) (int, error) {
	if s.state != streamOpen {
		return 0, ErrStreamNotOpen
	}

	return s.buf.Write(p)
}

// Commit flushes buffered bytes, fsyncs the temporary file, closes it, and
// atomically renames it into place at the target path. Commit may be
// called at most once.
//
// After Commit returns successfully, an external observer of the target
// path sees either the complete bytes written before commit, or (before
// this call) whatever was there before — never a partial file.
func (s *OutputStream) Commit() error {
	if s.state != streamOpen {
		return ErrStreamNotOpen
	}

	if err := s.buf.Flush(); err != nil {
		s.state = streamAborted
		_ = s.file.Close()

		return err
	}

	if err := s.file.Sync(); err != nil {
		s.state = streamAborted
		_ = s.file.Close()

		return err
	}

	if err := s.file.Close(); err != nil {
		s.state = streamAborted

		return err
	}

	if err := s.ops.MoveWithoutPromisingSourceDeletion(s.tmp, s.target); err != nil {
		s.state = streamAborted

		return err
	}

	s.state = streamCommitted

	return nil
}

// Close releases the temporary file handle if still open and best-effort
// deletes the temporary file. Safe to call after Commit (the temp file no
// longer exists; deletion silently no-ops) and after an aborted stream.
// Any error closing the underlying handle propagates; temp deletion errors
// do not.
func (s *OutputStream) Close() error {
	var closeErr error

	if s.state == streamOpen {
		closeErr = s.file.Close()
		s.state = streamAborted
	}

	_ = s.fs.DeleteIfExists(s.tmp)

	return closeErr
}
