package gofat

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"
	"time"

	"github.com/gofatfs/gofat/checkpoint"
	"golang.org/x/text/encoding/unicode"
)

const rawRecordSize = 32

// rawDirRecord is the 32-byte on-disk directory record, common to every
// variant (spec.md §3).
type rawDirRecord struct {
	Name      [8]byte
	Ext       [3]byte
	DOSPerms  byte
	Flags     byte
	Reserved  byte
	CTime     uint16
	CDate     uint16
	ADate     uint16
	ClusterHi uint16
	MTime     uint16
	MDate     uint16
	ClusterLo uint16
	FileSize  uint32
}

// lfnSlot is the VFAT long-filename overlay on the same 32 bytes,
// identified by DOSPerms == 0x0F (spec.md §3).
type lfnSlot struct {
	SeqNumber byte
	Name5     [10]byte
	DOSPerms  byte
	Type      byte
	Checksum  byte
	Name6     [12]byte
	ClusterLo uint16
	Name2     [4]byte
}

const lfnDeletedSeq = 0xE5
const lfnSeqMask = 0x1F
const lfnMaxSeq = 0x4F

// byteRegion is the uniform input a Directory walks: either a fixed range
// of a ByteSource (the FAT12/16 root) or a ClusterChainReader (any
// subdirectory, and the FAT32 root), per spec.md §4.4.
type byteRegion interface {
	Read(size int, relPtr, basePtr int64) ([]byte, error)
	Size() (uint64, error)
}

// fixedRegion is a byteRegion over a fixed (base, size) window of a
// ByteSource - used for the FAT12/16 root directory, which is not
// cluster-chained.
type fixedRegion struct {
	src    ByteSource
	offset int64
	size   int64
}

func (f fixedRegion) Read(size int, relPtr, basePtr int64) ([]byte, error) {
	off := relPtr + basePtr
	if size == 0 {
		size = int(f.size - off)
	}
	buf := make([]byte, size)
	if _, err := f.src.ReadAt(buf, f.offset, off); err != nil {
		return nil, checkpoint.Wrap(err, ErrTruncated)
	}
	return buf, nil
}

func (f fixedRegion) Size() (uint64, error) {
	return uint64(f.size), nil
}

// chainRegion adapts a ClusterChainReader to byteRegion with base_ptr == 0,
// as spec.md §4.4 describes for subdirectories and the FAT32 root.
type chainRegion struct {
	chain *ClusterChainReader
}

func (c chainRegion) Read(size int, relPtr, basePtr int64) ([]byte, error) {
	return c.chain.Read(size, relPtr, basePtr)
}

func (c chainRegion) Size() (uint64, error) {
	return c.chain.Size()
}

// Directory walks a region of 32-byte directory records, yielding Entry
// values in on-disk order. Iteration is stateless per call to Entries and
// is therefore re-startable (spec.md §8).
type Directory struct {
	vol    *Volume
	region byteRegion
}

// Entry is a single name in a directory: either a readable file or an
// iterable subdirectory (spec.md §3).
type Entry struct {
	vol       *Volume
	name      string
	dosPerms  byte
	cluster   uint32
	size      uint32
	writeDate uint16
	writeTime uint16
}

func (e *Entry) Name() string      { return e.name }
func (e *Entry) IsReadOnly() bool  { return e.dosPerms&AttrReadOnly != 0 }
func (e *Entry) IsHidden() bool    { return e.dosPerms&AttrHidden != 0 }
func (e *Entry) IsSystem() bool    { return e.dosPerms&AttrSystem != 0 }
func (e *Entry) IsDirectory() bool { return e.dosPerms&AttrDirectory != 0 }
func (e *Entry) IsArchive() bool   { return e.dosPerms&AttrArchive != 0 }
func (e *Entry) Size() int64       { return int64(e.size) }

// ModTime decodes the entry's last-write date/time fields (spec.md §6).
func (e *Entry) ModTime() time.Time {
	return combineDateTime(e.writeDate, e.writeTime)
}

// Read reads up to size bytes starting at offset from the entry's content.
// size == 0 means "read to end of file". It fails with ErrNotAFile on a
// directory (spec.md §4.4).
func (e *Entry) Read(size int, offset int64) ([]byte, error) {
	if e.IsDirectory() {
		return nil, checkpoint.From(ErrNotAFile)
	}

	remaining := int64(e.size) - offset
	if remaining < 0 {
		remaining = 0
	}

	readSize := remaining
	if size != 0 && int64(size) < remaining {
		readSize = int64(size)
	}

	if readSize <= 0 {
		// Nothing left to read at or past EOF. readSize == 0 must never
		// reach ClusterChainReader.Read here, since it treats 0 as "read to
		// end of chain" and would expose cluster slack past FileSize.
		return []byte{}, nil
	}

	chain := e.vol.newClusterChainReader(e.cluster)
	return chain.Read(int(readSize), offset, 0)
}

// Children materializes the entry's subdirectory. It fails with
// ErrNotADirectory on a file (spec.md §4.4).
func (e *Entry) Children() (*Directory, error) {
	if !e.IsDirectory() {
		return nil, checkpoint.From(ErrNotADirectory)
	}

	chain := e.vol.newClusterChainReader(e.cluster)
	return &Directory{vol: e.vol, region: chainRegion{chain: chain}}, nil
}

// Entries parses and returns every live entry in the directory, in on-disk
// order. It is pure with respect to the underlying medium: calling it again
// produces an identical slice (spec.md §8).
func (d *Directory) Entries() ([]*Entry, error) {
	size, err := d.region.Size()
	if err != nil {
		return nil, err
	}
	count := int(size / rawRecordSize)

	type slot struct {
		raw  rawDirRecord
		lfn  *lfnSlot
		isLFN bool
	}

	slots := make([]slot, 0, count)

	for i := 0; i < count; i++ {
		data, err := d.region.Read(rawRecordSize, int64(i)*rawRecordSize, 0)
		if err != nil {
			return nil, err
		}

		perms := data[0x0B]

		if perms != AttrLongName {
			if data[0] == 0x00 {
				// Canonical end-of-directory sentinel: stop before any
				// record physically following Name[0]==0x00, regardless of
				// Ext (spec.md §9 - the non-standard `or Ext[0] != 0`
				// variant is intentionally not reproduced here).
				break
			}
		}

		if perms == AttrLongName {
			var l lfnSlot
			if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &l); err != nil {
				return nil, checkpoint.Wrap(err, ErrIO)
			}
			slots = append(slots, slot{lfn: &l, isLFN: true})
			continue
		}

		var r rawDirRecord
		if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &r); err != nil {
			return nil, checkpoint.Wrap(err, ErrIO)
		}
		slots = append(slots, slot{raw: r})
	}

	var entries []*Entry
	var run []*lfnSlot

	flushDiscard := func() { run = nil }

	for _, s := range slots {
		if s.isLFN {
			run = append(run, s.lfn)
			continue
		}

		// s is a terminating directory record for the run collected so far
		// (possibly empty).
		if s.raw.Name[0] == 0xE5 {
			// Deleted entry: skip it and drop any LFN run that led into it.
			flushDiscard()
			continue
		}

		name := buildName(run, s.raw)
		flushDiscard()

		if s.raw.DOSPerms&AttrVolumeID != 0 && s.raw.DOSPerms&AttrDirectory == 0 {
			// Volume label entries are not files or directories.
			continue
		}

		entries = append(entries, &Entry{
			vol:       nil, // set by caller (Directory.Entries wires it below)
			name:      name,
			dosPerms:  s.raw.DOSPerms,
			cluster:   uint32(s.raw.ClusterHi)<<16 | uint32(s.raw.ClusterLo),
			size:      s.raw.FileSize,
			writeDate: s.raw.MDate,
			writeTime: s.raw.MTime,
		})
	}

	// A trailing, unterminated LFN run (no directory record ever closed it)
	// is simply discarded by the loop above since nothing ever consumes it.

	for _, e := range entries {
		e.vol = d.vol
	}

	return entries, nil
}

// buildName assembles the display name for a terminating record and its
// preceding LFN run, per spec.md §4.4 steps 5-8.
func buildName(run []*lfnSlot, rec rawDirRecord) string {
	retained := make([]*lfnSlot, 0, len(run))
	for _, s := range run {
		if s.SeqNumber == lfnDeletedSeq {
			continue
		}
		if s.SeqNumber > lfnMaxSeq {
			continue
		}
		retained = append(retained, s)
	}

	if len(retained) == 0 {
		return decodeSFN(rec)
	}

	sort.Slice(retained, func(i, j int) bool {
		return retained[i].SeqNumber&lfnSeqMask < retained[j].SeqNumber&lfnSeqMask
	})

	if !lfnChecksumMatches(retained, rec) {
		return decodeSFN(rec)
	}

	var buf bytes.Buffer
	for _, s := range retained {
		buf.Write(s.Name5[:])
		buf.Write(s.Name6[:])
		buf.Write(s.Name2[:])
	}

	return decodeLFN(buf.Bytes())
}

// lfnChecksumMatches verifies every retained slot's Checksum field against
// the checksum derived from the terminating SFN record. The original
// implementation (and the teacher) compute this checksum but never compare
// it; spec.md's SUPPLEMENTED FEATURES calls for the comparison to actually
// gate whether the LFN is trusted.
func lfnChecksumMatches(slots []*lfnSlot, rec rawDirRecord) bool {
	checksum := sfnChecksum(rec)
	for _, s := range slots {
		if s.Checksum != checksum {
			return false
		}
	}
	return true
}

// sfnChecksum computes the VFAT LFN checksum of the 11-byte packed
// Name+Ext of a short directory record.
func sfnChecksum(rec rawDirRecord) byte {
	var raw [11]byte
	copy(raw[:8], rec.Name[:])
	copy(raw[8:], rec.Ext[:])

	var checksum byte
	for _, b := range raw {
		checksum = ((checksum & 1) << 7) | (checksum >> 1)
		checksum += b
	}
	return checksum
}

// decodeLFN decodes raw as UTF-16LE up to (not including) the first
// 0x0000 code unit. Invalid surrogates are replaced with U+FFFD via
// golang.org/x/text's decoder, per spec.md §4.4 step 8.
func decodeLFN(raw []byte) string {
	truncated := raw
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0x00 && raw[i+1] == 0x00 {
			truncated = raw[:i]
			break
		}
	}

	// A fresh decoder per call: the transform.Transformer holds pending
	// high-surrogate state that a shared decoder could race on.
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	// The unicode.UTF16 decoder already substitutes U+FFFD for unpaired
	// surrogates, so a transform error here would only ever be the
	// destination-buffer-too-short case, which Bytes() cannot hit.
	decoded, _ := decoder.Bytes(truncated)
	return string(decoded)
}

// decodeSFN decodes the 8.3 short name: Name and Ext are ASCII, space
// padded, and trimmed independently before being joined with a dot
// (omitted if Ext is empty after trimming), per spec.md §4.4 step 8 /
// §8 examples.
func decodeSFN(rec rawDirRecord) string {
	name := asciiUntilNUL(rec.Name[:])
	ext := asciiUntilNUL(rec.Ext[:])

	name = strings.TrimRight(name, " ")
	ext = strings.TrimRight(ext, " ")

	if ext == "" {
		return name
	}
	return name + "." + ext
}

func asciiUntilNUL(b []byte) string {
	for i, c := range b {
		if c == 0x00 {
			return string(b[:i])
		}
	}
	return string(b)
}
