package gofat

import (
	"io"
	"sync"

	"github.com/gofatfs/gofat/checkpoint"
)

// ByteSource is the positioned-read capability the core is built on top of.
// It is the one external collaborator of the FAT decode pipeline (spec.md
// §4.5): a disk image file, a raw block device, or any adapter exposing
// positioned reads can satisfy it. ReadAt must return exactly len(p) bytes
// read at the absolute position basePtr+relPtr, or an error; a short read
// without error is never valid.
//
// Position is logically non-destructive: concurrent callers sharing one
// ByteSource must see consistent bytes regardless of interleaving.
// FileByteSource satisfies that by holding the underlying handle under a
// mutex for the duration of each read; ReaderAtByteSource and
// InMemoryByteSource keep no cursor, so they need no lock.
type ByteSource interface {
	ReadAt(p []byte, basePtr, relPtr int64) (int, error)
}

// ReaderAtByteSource adapts anything that already implements io.ReaderAt
// (an *os.File, a *bytes.Reader, a memory-mapped region) directly - no
// cursor bookkeeping needed since io.ReaderAt is inherently positioned.
type ReaderAtByteSource struct {
	r io.ReaderAt
}

// NewReaderAtByteSource wraps r as a ByteSource.
func NewReaderAtByteSource(r io.ReaderAt) *ReaderAtByteSource {
	return &ReaderAtByteSource{r: r}
}

func (s *ReaderAtByteSource) ReadAt(p []byte, basePtr, relPtr int64) (int, error) {
	n, err := s.r.ReadAt(p, basePtr+relPtr)
	if err != nil && err != io.EOF {
		return n, checkpoint.Wrap(err, ErrIO)
	}
	if n < len(p) {
		return n, checkpoint.From(ErrTruncated)
	}
	return n, nil
}

// FileByteSource adapts a plain io.ReadSeeker that does not implement
// io.ReaderAt - e.g. a stream coming from something that only exposes
// Seek+Read. It saves and restores the cursor around every read so that
// multiple logical readers can share one handle without interfering with
// each other, as required by spec.md §4.5 and §5.
type FileByteSource struct {
	mu     sync.Mutex
	reader io.ReadSeeker
}

// NewFileByteSource wraps r as a ByteSource.
func NewFileByteSource(r io.ReadSeeker) *FileByteSource {
	return &FileByteSource{reader: r}
}

func (s *FileByteSource) ReadAt(p []byte, basePtr, relPtr int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.reader.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrIO)
	}

	if _, err := s.reader.Seek(basePtr+relPtr, io.SeekStart); err != nil {
		return 0, checkpoint.Wrap(err, ErrIO)
	}

	n, err := io.ReadFull(s.reader, p)

	// Restore the cursor even if the read failed, so sibling readers are
	// unaffected by this one's error.
	if _, seekErr := s.reader.Seek(saved, io.SeekStart); seekErr != nil && err == nil {
		err = seekErr
	}

	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return n, checkpoint.From(ErrTruncated)
	}
	if err != nil {
		return n, checkpoint.Wrap(err, ErrIO)
	}
	return n, nil
}

// InMemoryByteSource is a []byte-backed ByteSource. It backs most tests in
// this module and is convenient for embedding small synthetic volumes
// (configuration blobs, firmware images) without touching the filesystem.
type InMemoryByteSource struct {
	data []byte
}

// NewInMemoryByteSource wraps data as a ByteSource. data is never copied or
// mutated.
func NewInMemoryByteSource(data []byte) *InMemoryByteSource {
	return &InMemoryByteSource{data: data}
}

func (s *InMemoryByteSource) ReadAt(p []byte, basePtr, relPtr int64) (int, error) {
	off := basePtr + relPtr
	if off < 0 || off > int64(len(s.data)) {
		return 0, checkpoint.From(ErrTruncated)
	}

	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, checkpoint.From(ErrTruncated)
	}
	return n, nil
}
