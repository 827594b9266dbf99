// Package assets loads whole resources into dispatcher-managed buffers.
//
// A Loader resolves a path, reads the full content of the resource it names,
// and returns the bytes in a buffer obtained from an alloc.Dispatcher, so
// that host-registered allocation policies see asset buffers the same way
// they see every other runtime allocation. Paths of the form
// "archive.zip??/inner/file" read a member out of a zip bundle instead of a
// plain file.
package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/sarchlab/shiba/alloc"
)

// BundleSeparator splits a resource path into a zip-archive path and a
// member path inside that archive.
const BundleSeparator = "??/"

// A Loader reads named resources fully into memory. Buffers come from the
// loader's dispatcher and must be released with the same dispatcher's Free.
type Loader struct {
	dispatcher *alloc.Dispatcher
	fsys       fs.FS
}

// NewLoader creates a Loader that allocates through d.
func NewLoader(d *alloc.Dispatcher) *Loader {
	if d == nil {
		panic("loader must have a dispatcher")
	}

	return &Loader{dispatcher: d}
}

// Dispatcher returns the dispatcher the loader allocates through.
func (l *Loader) Dispatcher() *alloc.Dispatcher {
	return l.dispatcher
}

// SetFS substitutes fsys for the operating-system filesystem. Passing nil
// restores direct OS access. With a substitute in place, paths follow io/fs
// rules (slash-separated, unrooted).
func (l *Loader) SetFS(fsys fs.FS) {
	l.fsys = fsys
}

// ReadFile reads the entire resource named by path. The returned buffer is
// allocated through the loader's dispatcher; callers release it with Free on
// that dispatcher. An empty resource yields a nil buffer and a nil error.
// On failure nothing stays allocated and the buffer is nil.
func (l *Loader) ReadFile(path string) ([]byte, error) {
	if archive, member, ok := strings.Cut(path, BundleSeparator); ok {
		return l.readBundled(archive, member)
	}

	f, err := l.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return l.readOpened(f, path)
}

func (l *Loader) open(path string) (fs.File, error) {
	if l.fsys != nil {
		return l.fsys.Open(path)
	}

	return os.Open(path)
}

func (l *Loader) readOpened(f fs.File, path string) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("read %s: is a directory", path)
	}

	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	buf := l.dispatcher.AllocateTraced(int(size), alloc.Here())
	if buf == nil {
		return nil, fmt.Errorf("read %s: cannot allocate %d bytes", path, size)
	}

	if _, err := io.ReadFull(f, buf); err != nil {
		l.dispatcher.Free(buf)
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return buf, nil
}

func (l *Loader) readBundled(archive, member string) ([]byte, error) {
	f, err := l.open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", archive, err)
	}

	ra, size, err := readerAtFor(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", archive, err)
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open bundle %s: %w", archive, err)
	}

	inner, err := zr.Open(member)
	if err != nil {
		return nil, fmt.Errorf("open bundle %s: %s: %w", archive, member, err)
	}
	defer inner.Close()

	return l.readOpened(inner, archive+BundleSeparator+member)
}

// readerAtFor adapts an opened bundle for random access. Files that do not
// support ReadAt, such as members of another bundle, are buffered whole.
func readerAtFor(f fs.File, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := f.(io.ReaderAt); ok {
		return ra, size, nil
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, err
	}

	return bytes.NewReader(data), int64(len(data)), nil
}

// ErrNotExist reports whether err indicates a missing resource, for either a
// plain path or a bundle member.
func ErrNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
