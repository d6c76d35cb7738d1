package gofat

import (
	"io/fs"

	"github.com/spf13/afero"
)

// GoFS wraps a Volume as an fs.FS, for callers that want the standard
// library's filesystem abstraction instead of afero's.
type GoFS struct {
	*Volume
}

// NewGoFS mounts src as the given variant and wraps it as an fs.FS.
func NewGoFS(src ByteSource, variant Variant) (GoFS, error) {
	vol, err := Open(src, variant)
	if err != nil {
		return GoFS{}, err
	}
	return GoFS{vol}, nil
}

// Open implements fs.FS.
func (g GoFS) Open(name string) (fs.File, error) {
	f, err := g.Volume.Open(name)
	if err != nil {
		return nil, err
	}
	return goFile{f}, nil
}

// goFile adapts an afero.File to fs.File/fs.ReadDirFile.
type goFile struct {
	afero.File
}

func (f goFile) Stat() (fs.FileInfo, error) { return f.File.Stat() }

func (f goFile) ReadDir(n int) ([]fs.DirEntry, error) {
	infos, err := f.File.Readdir(n)
	if err != nil {
		return nil, err
	}

	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = fs.FileInfoToDirEntry(info)
	}
	return entries, nil
}
