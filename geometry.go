package gofat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gofatfs/gofat/checkpoint"
)

const bootSectorSize = 512

// commonBPB matches the BIOS Parameter Block fields shared by all three
// variants, bit-exact per spec.md §6. VariantData overlays either a
// fat1xExtendedBPB (FAT12/16) or a fat32ExtendedBPB (FAT32) on the same 54
// trailing bytes, the way the teacher's model.go does it.
type commonBPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	VariantData         [54]byte
}

type fat1xExtendedBPB struct {
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSig        byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

type fat32ExtendedBPB struct {
	FATSize32        uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSig        byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

// Geometry is the variant-independent projection of the boot sector that
// every other layer (FATTable, ClusterChainReader, Directory) is built on.
// See spec.md §3.
type Geometry struct {
	Variant Variant

	SectorSize        uint32
	SectorsPerCluster uint32
	ClusterSize       uint32
	ReservedSectors   uint32
	FATCount          uint32
	SectorsPerFAT     uint32
	FATSize           uint32
	FATsOffset        uint32
	DataOffset        uint32
	TotalSectors      uint32

	// FAT12/16 only.
	MaxRootEntries uint32
	RootSize       uint32
	RootDirOffset  uint32

	// FAT32 only.
	RootCluster uint32

	Label string
}

// TotalClusters returns the volume's total data-cluster count, used as the
// ChainTooLong safety cap (spec.md §4.2).
func (g Geometry) TotalClusters() uint32 {
	if g.TotalSectors == 0 || g.SectorsPerCluster == 0 {
		return 0
	}
	dataSectors := g.TotalSectors
	reserved := g.ReservedSectors + g.FATCount*g.SectorsPerFAT
	if g.Variant != FAT32 {
		reserved += g.RootSize / g.SectorSize
	}
	if dataSectors < reserved {
		return 0
	}
	return (dataSectors - reserved) / g.SectorsPerCluster
}

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// parseBootSector reads the 512-byte boot sector from src and projects it
// into a Geometry for the given variant. Variant selection is never
// inferred - it is a precondition supplied by the caller (Open/OpenFATxx),
// per spec.md §4.1.
func parseBootSector(src ByteSource, variant Variant) (Geometry, error) {
	raw := make([]byte, bootSectorSize)
	if _, err := src.ReadAt(raw, 0, 0); err != nil {
		return Geometry{}, checkpoint.Wrap(err, ErrBadBootSector)
	}

	if raw[510] != 0x55 || raw[511] != 0xAA {
		return Geometry{}, checkpoint.From(fmt.Errorf("%w: signature 0x%02X%02X at offset 0x1FE", ErrBadBootSector, raw[511], raw[510]))
	}

	var bpb commonBPB
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &bpb); err != nil {
		return Geometry{}, checkpoint.Wrap(err, ErrBadBootSector)
	}

	if !isPowerOfTwo(uint32(bpb.BytesPerSector)) {
		return Geometry{}, checkpoint.From(fmt.Errorf("%w: BytesPerSector %d is not a power of two", ErrBadBootSector, bpb.BytesPerSector))
	}
	if !isPowerOfTwo(uint32(bpb.SectorsPerCluster)) {
		return Geometry{}, checkpoint.From(fmt.Errorf("%w: SectorsPerCluster %d is not a power of two", ErrBadBootSector, bpb.SectorsPerCluster))
	}
	if bpb.NumFATs == 0 {
		return Geometry{}, checkpoint.From(fmt.Errorf("%w: FATCopies is zero", ErrBadBootSector))
	}

	g := Geometry{
		Variant:           variant,
		SectorSize:        uint32(bpb.BytesPerSector),
		SectorsPerCluster: uint32(bpb.SectorsPerCluster),
		ReservedSectors:   uint32(bpb.ReservedSectorCount),
		FATCount:          uint32(bpb.NumFATs),
	}
	g.ClusterSize = g.SectorSize * g.SectorsPerCluster
	g.FATsOffset = g.ReservedSectors * g.SectorSize

	if bpb.TotalSectors16 != 0 {
		g.TotalSectors = uint32(bpb.TotalSectors16)
	} else {
		g.TotalSectors = bpb.TotalSectors32
	}

	switch variant {
	case FAT32:
		var ext fat32ExtendedBPB
		if err := binary.Read(bytes.NewReader(bpb.VariantData[:]), binary.LittleEndian, &ext); err != nil {
			return Geometry{}, checkpoint.Wrap(err, ErrBadBootSector)
		}
		if ext.RootCluster < 2 {
			return Geometry{}, checkpoint.From(fmt.Errorf("%w: FAT32 RootCluster %d < 2", ErrBadBootSector, ext.RootCluster))
		}
		if ext.FATSize32 < 1 {
			return Geometry{}, checkpoint.From(fmt.Errorf("%w: FAT32 SectorsPerFAT is zero", ErrBadBootSector))
		}

		g.SectorsPerFAT = ext.FATSize32
		g.FATSize = g.SectorsPerFAT * g.SectorSize
		g.RootCluster = ext.RootCluster
		g.DataOffset = g.FATsOffset + g.FATCount*g.FATSize
		g.Label = string(ext.BSVolumeLabel[:])

	case FAT12, FAT16:
		var ext fat1xExtendedBPB
		if err := binary.Read(bytes.NewReader(bpb.VariantData[:]), binary.LittleEndian, &ext); err != nil {
			return Geometry{}, checkpoint.Wrap(err, ErrBadBootSector)
		}

		g.SectorsPerFAT = uint32(bpb.FATSize16)
		g.FATSize = g.SectorsPerFAT * g.SectorSize
		g.MaxRootEntries = uint32(bpb.RootEntryCount)
		g.RootSize = g.MaxRootEntries * 32
		g.RootDirOffset = g.FATsOffset + g.FATCount*g.FATSize
		g.DataOffset = g.RootDirOffset + g.RootSize
		g.Label = string(ext.BSVolumeLabel[:])

	default:
		return Geometry{}, checkpoint.From(fmt.Errorf("%w: unknown variant %v", ErrBadBootSector, variant))
	}

	return g, nil
}
