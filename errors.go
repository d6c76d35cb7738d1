package gofat

import "errors"

// Sentinel errors surfaced by the core reader. None of these are retried
// internally; they always propagate to the caller. See spec.md §7.
var (
	// ErrBadBootSector is returned by Open* when the boot sector signature
	// is wrong or the geometry it describes is impossible.
	ErrBadBootSector = errors.New("gofat: bad boot sector")

	// ErrFATIndexOutOfBounds is returned when a FAT entry lookup would read
	// past the end of the allocation table.
	ErrFATIndexOutOfBounds = errors.New("gofat: fat index out of bounds")

	// ErrChainTooLong is returned when a cluster chain iteration exceeds the
	// volume's total cluster count, which can only happen if the chain
	// cycles back on itself (a corrupted FAT).
	ErrChainTooLong = errors.New("gofat: cluster chain too long, possible cycle")

	// ErrNotAFile is returned by Entry.Read on a directory entry.
	ErrNotAFile = errors.New("gofat: entry is not a file")

	// ErrNotADirectory is returned by Entry.Children on a file entry.
	ErrNotADirectory = errors.New("gofat: entry is not a directory")

	// ErrTruncated is returned when the underlying ByteSource returned
	// fewer bytes than requested.
	ErrTruncated = errors.New("gofat: short read from byte source")

	// ErrIO wraps an opaque failure from the underlying ByteSource.
	ErrIO = errors.New("gofat: byte source I/O error")

	// ErrReadOnly is returned by every mutating afero.Fs/afero.File method;
	// this reader never writes to the underlying medium (spec.md §1).
	ErrReadOnly = errors.New("gofat: filesystem is read-only")

	// ErrInvalidPath marks a malformed path. Volume.Open normalizes every
	// name with path.Clean and does not return it.
	ErrInvalidPath = errors.New("gofat: invalid path")

	// ErrNotExist is returned when a path component cannot be found.
	ErrNotExist = errors.New("gofat: no such file or directory")
)
