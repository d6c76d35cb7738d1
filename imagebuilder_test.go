package gofat

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// This file builds synthetic in-memory FAT images byte-by-byte for tests.
// The teacher's own tests (fs_test.go et al.) depended on generated
// testdata/*.img fixtures produced out-of-band by a real mkfs.fat and
// checked into the repo as a zip; those binaries aren't available in this
// environment, so every test in this module instead constructs minimal,
// deliberately small volumes in memory, mirroring the concrete end-to-end
// scenarios in spec.md §8.

type fat1xParams struct {
	bytesPerSector    uint16
	sectorsPerCluster byte
	reservedSectors   uint16
	numFATs           byte
	rootEntries       uint16
	totalSectors      uint16
	fatSize16         uint16
	volumeLabel       string
}

func buildFAT1xBootSector(p fat1xParams) []byte {
	buf := new(bytes.Buffer)

	bpb := commonBPB{
		BSJumpBoot:          [3]byte{0xEB, 0x3C, 0x90},
		BytesPerSector:      p.bytesPerSector,
		SectorsPerCluster:   p.sectorsPerCluster,
		ReservedSectorCount: p.reservedSectors,
		NumFATs:             p.numFATs,
		RootEntryCount:      p.rootEntries,
		TotalSectors16:      p.totalSectors,
		Media:               0xF8,
		FATSize16:           p.fatSize16,
	}

	ext := fat1xExtendedBPB{
		BSBootSig: 0x29,
	}
	copy(ext.BSVolumeLabel[:], padRight(p.volumeLabel, 11))
	copy(ext.BSFileSystemType[:], padRight("FAT16   ", 8))

	extBuf := new(bytes.Buffer)
	_ = binary.Write(extBuf, binary.LittleEndian, ext)
	copy(bpb.VariantData[:], extBuf.Bytes())

	_ = binary.Write(buf, binary.LittleEndian, bpb)

	sector := make([]byte, bootSectorSize)
	copy(sector, buf.Bytes())
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

type fat32Params struct {
	bytesPerSector    uint16
	sectorsPerCluster byte
	reservedSectors   uint16
	numFATs           byte
	totalSectors32    uint32
	fatSize32         uint32
	rootCluster       uint32
	volumeLabel       string
}

func buildFAT32BootSector(p fat32Params) []byte {
	buf := new(bytes.Buffer)

	bpb := commonBPB{
		BSJumpBoot:          [3]byte{0xEB, 0x58, 0x90},
		BytesPerSector:      p.bytesPerSector,
		SectorsPerCluster:   p.sectorsPerCluster,
		ReservedSectorCount: p.reservedSectors,
		NumFATs:             p.numFATs,
		RootEntryCount:      0,
		TotalSectors16:      0,
		Media:               0xF8,
		FATSize16:           0,
		TotalSectors32:      p.totalSectors32,
	}

	ext := fat32ExtendedBPB{
		FATSize32:   p.fatSize32,
		RootCluster: p.rootCluster,
		BSBootSig:   0x29,
	}
	copy(ext.BSVolumeLabel[:], padRight(p.volumeLabel, 11))
	copy(ext.BSFileSystemType[:], padRight("FAT32   ", 8))

	extBuf := new(bytes.Buffer)
	_ = binary.Write(extBuf, binary.LittleEndian, ext)
	copy(bpb.VariantData[:], extBuf.Bytes())

	_ = binary.Write(buf, binary.LittleEndian, bpb)

	sector := make([]byte, bootSectorSize)
	copy(sector, buf.Bytes())
	sector[510] = 0x55
	sector[511] = 0xAA
	return sector
}

func padRight(s string, n int) []byte {
	b := []byte(s)
	for len(b) < n {
		b = append(b, ' ')
	}
	return b[:n]
}

// buildFAT12Table packs entries (indices 0.. ) two per three bytes.
func buildFAT12Table(size int, entries map[uint32]uint32) []byte {
	table := make([]byte, size)
	for idx, val := range entries {
		byteOffset := (idx * 3) / 2
		existing := uint32(table[byteOffset]) | uint32(table[byteOffset+1])<<8
		if idx%2 == 0 {
			existing = (existing &^ 0x0FFF) | (val & 0x0FFF)
		} else {
			existing = (existing &^ 0xFFF0) | ((val & 0x0FFF) << 4)
		}
		table[byteOffset] = byte(existing)
		table[byteOffset+1] = byte(existing >> 8)
	}
	return table
}

func buildFAT16Table(size int, entries map[uint32]uint16) []byte {
	table := make([]byte, size)
	for idx, val := range entries {
		binary.LittleEndian.PutUint16(table[idx*2:], val)
	}
	return table
}

func buildFAT32Table(size int, entries map[uint32]uint32) []byte {
	table := make([]byte, size)
	for idx, val := range entries {
		binary.LittleEndian.PutUint32(table[idx*4:], val)
	}
	return table
}

// buildSFNRecord returns one 32-byte short-name directory record.
func buildSFNRecord(name, ext string, attr byte, cluster, size uint32) []byte {
	rec := rawDirRecord{
		DOSPerms:  attr,
		ClusterHi: uint16(cluster >> 16),
		ClusterLo: uint16(cluster & 0xFFFF),
		FileSize:  size,
	}
	copy(rec.Name[:], padRight(name, 8))
	copy(rec.Ext[:], padRight(ext, 3))

	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, rec)
	return buf.Bytes()
}

// deletedSFNRecord returns a 32-byte record whose Name[0] marks it deleted.
func deletedSFNRecord() []byte {
	r := buildSFNRecord("KEEPME", "TXT", AttrArchive, 5, 4)
	r[0] = 0xE5
	return r
}

// endOfDirectoryRecord returns the canonical 32-byte end-of-directory
// sentinel record.
func endOfDirectoryRecord() []byte {
	return make([]byte, rawRecordSize)
}

// buildLFNSlots returns the 32-byte LFN slot records (in on-disk,
// reverse-logical order - highest sequence first) needed to store name,
// checksummed against the given terminating SFN record bytes.
func buildLFNSlots(name string, sfnRecordBytes []byte) [][]byte {
	var rec rawDirRecord
	_ = binary.Read(bytes.NewReader(sfnRecordBytes), binary.LittleEndian, &rec)
	checksum := sfnChecksum(rec)

	units := utf16.Encode([]rune(name))
	units = append(units, 0x0000)
	for len(units)%13 != 0 {
		units = append(units, 0xFFFF)
	}

	slotCount := len(units) / 13
	slots := make([][]byte, slotCount)

	for i := 0; i < slotCount; i++ {
		seq := byte(i + 1)
		if i == slotCount-1 {
			seq |= 0x40
		}

		chunk := units[i*13 : i*13+13]

		slot := lfnSlot{
			SeqNumber: seq,
			DOSPerms:  AttrLongName,
			Checksum:  checksum,
		}
		putUTF16(slot.Name5[:], chunk[0:5])
		putUTF16(slot.Name6[:], chunk[5:11])
		putUTF16(slot.Name2[:], chunk[11:13])

		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.LittleEndian, slot)

		// On-disk order is highest sequence number first.
		slots[slotCount-1-i] = buf.Bytes()
	}

	return slots
}

func putUTF16(dst []byte, units []uint16) {
	for i, u := range units {
		binary.LittleEndian.PutUint16(dst[i*2:], u)
	}
}

// concatAll flattens a list of byte slices/records into one contiguous
// buffer, padding with end-of-directory zero records up to minSize bytes.
func concatAll(parts [][]byte, minSize int) []byte {
	buf := new(bytes.Buffer)
	for _, p := range parts {
		buf.Write(p)
	}
	for buf.Len() < minSize {
		buf.Write(endOfDirectoryRecord())
	}
	return buf.Bytes()
}
