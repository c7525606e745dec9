// Storage provides an interface for accessing the filesystem. This allows
// the disk manager to run against a real file or an in-memory buffer.
package pager

import (
	"io"
	"os"
	"path/filepath"

	"toydb/internal/engineerr"
	"toydb/page"
)

type storage interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Close() error
	Size() (int64, error)
}

type memoryStorage struct {
	buf []byte
}

func newMemoryStorage() storage {
	return &memoryStorage{}
}

func (mf *memoryStorage) growTo(n int) {
	for len(mf.buf) < n {
		mf.buf = append(mf.buf, make([]byte, page.PageSize)...)
	}
}

func (mf *memoryStorage) WriteAt(p []byte, off int64) (n int, err error) {
	mf.growTo(int(off) + len(p))
	copy(mf.buf[off:int(off)+len(p)], p)
	return len(p), nil
}

// ReadAt mirrors os.File's past-end-of-file behavior instead of growing the
// buffer: a read entirely past the current size returns (0, io.EOF), and a
// read that overruns the end returns the overlapping bytes plus io.EOF. A
// disk miss has to look the same whether the backing store is a real file
// or this in-memory stand-in, or HavePage/ReadPage would disagree with it.
func (mf *memoryStorage) ReadAt(p []byte, off int64) (n int, err error) {
	if off >= int64(len(mf.buf)) {
		return 0, io.EOF
	}
	end := off + int64(len(p))
	if end > int64(len(mf.buf)) {
		n := copy(p, mf.buf[off:])
		return n, io.EOF
	}
	return copy(p, mf.buf[off:end]), nil
}

func (mf *memoryStorage) Sync() error {
	return nil
}

func (mf *memoryStorage) Close() error {
	return nil
}

func (mf *memoryStorage) Size() (int64, error) {
	return int64(len(mf.buf)), nil
}

// dbFileName is the canonical page file name. The engine owns exactly this
// one file; there is no journal or write-ahead log (see SPEC_FULL.md, Open
// Question decisions).
const dbFileName = "toydb.db"

type fileStorage struct {
	file *os.File
}

func newFileStorage(dataDir string) (storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, engineerr.IO(err, "creating data directory")
	}
	fl, err := os.OpenFile(filepath.Join(dataDir, dbFileName), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, engineerr.IO(err, "opening database file")
	}
	return &fileStorage{file: fl}, nil
}

func (s *fileStorage) WriteAt(p []byte, off int64) (n int, err error) {
	return s.file.WriteAt(p, off)
}

func (s *fileStorage) ReadAt(p []byte, off int64) (n int, err error) {
	return s.file.ReadAt(p, off)
}

func (s *fileStorage) Sync() error {
	return s.file.Sync()
}

func (s *fileStorage) Close() error {
	return s.file.Close()
}

func (s *fileStorage) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *fileStorage) fd() uintptr {
	return s.file.Fd()
}
