package gofat

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofatfs/gofat/checkpoint"
	"github.com/spf13/afero"
)

// Volume is a mounted FAT filesystem: the top-level handle produced by
// Open/OpenFAT12/OpenFAT16/OpenFAT32 (spec.md §6). It implements afero.Fs
// so existing tooling (afero.Walk, afero.IOFS, ...) can traverse it, even
// though it never permits any mutation (spec.md §1).
type Volume struct {
	src      ByteSource
	geometry Geometry
	fats     []*FATTable
}

// Open mounts a FAT volume from src for the given, explicitly chosen
// variant. There is no auto-detection (spec.md §4.1).
func Open(src ByteSource, variant Variant) (*Volume, error) {
	geometry, err := parseBootSector(src, variant)
	if err != nil {
		return nil, err
	}

	totalClusters := geometry.TotalClusters()

	fats := make([]*FATTable, geometry.FATCount)
	for i := range fats {
		offset := geometry.FATsOffset + uint32(i)*geometry.FATSize
		fats[i] = newFATTable(src, variant, offset, geometry.FATSize, totalClusters)
	}

	return &Volume{src: src, geometry: geometry, fats: fats}, nil
}

// OpenFAT12 mounts src as a FAT12 volume.
func OpenFAT12(src ByteSource) (*Volume, error) { return Open(src, FAT12) }

// OpenFAT16 mounts src as a FAT16 volume.
func OpenFAT16(src ByteSource) (*Volume, error) { return Open(src, FAT16) }

// OpenFAT32 mounts src as a FAT32 volume.
func OpenFAT32(src ByteSource) (*Volume, error) { return Open(src, FAT32) }

// Geometry returns the volume's derived geometry.
func (v *Volume) Geometry() Geometry { return v.geometry }

// Variant returns the volume's FAT dialect.
func (v *Volume) Variant() Variant { return v.geometry.Variant }

// Label returns the volume label, trimmed of trailing padding.
func (v *Volume) Label() string {
	return strings.TrimRight(v.geometry.Label, " \x00")
}

// PrimaryFAT returns the first allocation table. Per spec.md §1, mirrored
// FAT copies are constructed (so multi-FAT volumes mount correctly) but
// only the primary copy is ever consulted - it is authoritative.
func (v *Volume) PrimaryFAT() *FATTable {
	return v.fats[0]
}

func (v *Volume) newClusterChainReader(startCluster uint32) *ClusterChainReader {
	return newClusterChainReader(v.src, v.PrimaryFAT(), startCluster, v.geometry.ClusterSize, v.geometry.DataOffset)
}

// RootDirectory returns the volume's root directory: a fixed byte range for
// FAT12/16, a cluster-chained directory rooted at RootCluster for FAT32
// (spec.md §2, §4.4).
func (v *Volume) RootDirectory() (*Directory, error) {
	descriptor := variantDescriptors[v.geometry.Variant]

	if descriptor.hasFixedRoot {
		region := fixedRegion{
			src:    v.src,
			offset: int64(v.geometry.RootDirOffset),
			size:   int64(v.geometry.RootSize),
		}
		return &Directory{vol: v, region: region}, nil
	}

	chain := v.newClusterChainReader(v.geometry.RootCluster)
	return &Directory{vol: v, region: chainRegion{chain: chain}}, nil
}

// lookup resolves a slash-separated path (relative to the root) to its
// terminal Entry. It does not build any path-resolution primitive beyond
// repeated child-by-name lookup (spec.md §1 Non-goals).
func (v *Volume) lookup(cleanPath string) (*Entry, error) {
	dir, err := v.RootDirectory()
	if err != nil {
		return nil, err
	}

	if cleanPath == "" || cleanPath == "." {
		return nil, nil // caller handles the synthetic root case
	}

	parts := strings.Split(cleanPath, "/")
	var current *Entry

	for i, part := range parts {
		if part == "" {
			continue
		}

		entries, err := dir.Entries()
		if err != nil {
			return nil, err
		}

		var found *Entry
		for _, e := range entries {
			if strings.EqualFold(strings.TrimRight(e.Name(), " "), part) {
				found = e
				break
			}
		}
		if found == nil {
			return nil, checkpoint.From(ErrNotExist)
		}

		current = found

		if i == len(parts)-1 {
			break
		}

		if !found.IsDirectory() {
			return nil, checkpoint.From(ErrNotADirectory)
		}
		dir, err = found.Children()
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// --- afero.Fs ---

// Name implements afero.Fs.
func (v *Volume) Name() string { return "FAT" }

// Open implements afero.Fs. It never performs any mutation; every writing
// method below returns ErrReadOnly.
func (v *Volume) Open(name string) (afero.File, error) {
	clean := path.Clean("/" + filepath.ToSlash(name))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" {
		clean = "."
	}

	if clean == "." {
		return &openFile{vol: v, isDirectory: true, name: "/"}, nil
	}

	entry, err := v.lookup(clean)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrNotExist)
	}

	return &openFile{vol: v, entry: entry, isDirectory: entry.IsDirectory(), name: path.Base(clean)}, nil
}

// OpenFile implements afero.Fs; flag and perm are ignored since only
// read-only access is ever granted (spec.md §1).
func (v *Volume) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return v.Open(name)
}

// Stat implements afero.Fs.
func (v *Volume) Stat(name string) (os.FileInfo, error) {
	f, err := v.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Stat()
}

func (v *Volume) Create(name string) (afero.File, error)       { return nil, ErrReadOnly }
func (v *Volume) Mkdir(name string, perm os.FileMode) error    { return ErrReadOnly }
func (v *Volume) MkdirAll(path string, perm os.FileMode) error { return ErrReadOnly }
func (v *Volume) Remove(name string) error                     { return ErrReadOnly }
func (v *Volume) RemoveAll(path string) error                  { return ErrReadOnly }
func (v *Volume) Rename(oldname, newname string) error          { return ErrReadOnly }
func (v *Volume) Chmod(name string, mode os.FileMode) error     { return ErrReadOnly }
func (v *Volume) Chown(name string, uid, gid int) error         { return ErrReadOnly }
func (v *Volume) Chtimes(name string, a, m time.Time) error     { return ErrReadOnly }
