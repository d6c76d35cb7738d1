package gofat

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFAT12VolumeImage assembles a complete, tiny FAT12 disk image with the
// same root/SUBDIR/NESTED.TXT/FILE.TXT layout as buildFAT16VolumeImage,
// matching spec.md §8 scenario 1 (a FAT12 single-cluster file, mounted
// end-to-end rather than exercised at the FAT-table layer alone).
func buildFAT12VolumeImage(t *testing.T, fileContent, nestedContent string) []byte {
	t.Helper()

	const (
		sectorSize   = 512
		clusterSize  = 512
		reservedSecs = 1
		fatSectors   = 1
		rootEntries  = 16
	)

	boot := buildFAT1xBootSector(fat1xParams{
		bytesPerSector:    sectorSize,
		sectorsPerCluster: 1,
		reservedSectors:   reservedSecs,
		numFATs:           1,
		rootEntries:       rootEntries,
		totalSectors:      6,
		fatSize16:         fatSectors,
		volumeLabel:       "TESTFAT12",
	})

	fat := buildFAT12Table(fatSectors*sectorSize, map[uint32]uint32{
		2: 0xFFF,
		3: 0xFFF,
		4: 0xFFF,
	})

	subdirRec := buildSFNRecord("SUBDIR", "", AttrDirectory, 3, 0)
	fileRec := buildSFNRecord("FILE", "TXT", AttrArchive, 2, uint32(len(fileContent)))
	root := concatAll([][]byte{subdirRec, fileRec}, rootEntries*32)

	fileData := make([]byte, clusterSize)
	copy(fileData, fileContent)

	nestedRec := buildSFNRecord("NESTED", "TXT", AttrArchive, 4, uint32(len(nestedContent)))
	subdirData := concatAll([][]byte{nestedRec}, clusterSize)

	nestedData := make([]byte, clusterSize)
	copy(nestedData, nestedContent)

	image := make([]byte, 0, len(boot)+len(fat)+len(root)+3*clusterSize)
	image = append(image, boot...)
	image = append(image, fat...)
	image = append(image, root...)
	image = append(image, fileData...)   // cluster 2
	image = append(image, subdirData...) // cluster 3
	image = append(image, nestedData...) // cluster 4

	return image
}

// buildFAT32VolumeImage assembles a complete, tiny FAT32 disk image with the
// same SUBDIR/NESTED.TXT/FILE.TXT layout, but with the root directory itself
// cluster-chained (hasFixedRoot == false), matching spec.md §8 scenario 3
// (FAT32 root enumeration over the cluster-chained root).
func buildFAT32VolumeImage(t *testing.T, fileContent, nestedContent string) []byte {
	t.Helper()

	const (
		sectorSize   = 512
		clusterSize  = 512
		reservedSecs = 1
		fatSectors   = 1
		rootCluster  = 2
	)

	boot := buildFAT32BootSector(fat32Params{
		bytesPerSector:    sectorSize,
		sectorsPerCluster: 1,
		reservedSectors:   reservedSecs,
		numFATs:           1,
		totalSectors32:    6,
		fatSize32:         fatSectors,
		rootCluster:       rootCluster,
		volumeLabel:       "TESTFAT32",
	})

	fat := buildFAT32Table(fatSectors*sectorSize, map[uint32]uint32{
		2: 0x0FFFFFFF, // root directory's own (single-cluster) chain
		3: 0x0FFFFFFF, // FILE.TXT
		4: 0x0FFFFFFF, // SUBDIR
		5: 0x0FFFFFFF, // NESTED.TXT
	})

	subdirRec := buildSFNRecord("SUBDIR", "", AttrDirectory, 4, 0)
	fileRec := buildSFNRecord("FILE", "TXT", AttrArchive, 3, uint32(len(fileContent)))
	rootData := concatAll([][]byte{subdirRec, fileRec}, clusterSize)

	fileData := make([]byte, clusterSize)
	copy(fileData, fileContent)

	nestedRec := buildSFNRecord("NESTED", "TXT", AttrArchive, 5, uint32(len(nestedContent)))
	subdirData := concatAll([][]byte{nestedRec}, clusterSize)

	nestedData := make([]byte, clusterSize)
	copy(nestedData, nestedContent)

	image := make([]byte, 0, len(boot)+len(fat)+4*clusterSize)
	image = append(image, boot...)
	image = append(image, fat...)
	image = append(image, rootData...)   // cluster 2
	image = append(image, fileData...)   // cluster 3
	image = append(image, subdirData...) // cluster 4
	image = append(image, nestedData...) // cluster 5

	return image
}

func TestVolume_FAT12_RootListsTopLevelEntries(t *testing.T) {
	image := buildFAT12VolumeImage(t, "hello from fat12\n", "nested fat12\n")
	vol, err := OpenFAT12(NewInMemoryByteSource(image))
	require.NoError(t, err)

	dir, err := vol.RootDirectory()
	require.NoError(t, err)

	entries, err := dir.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := []string{entries[0].Name(), entries[1].Name()}
	assert.ElementsMatch(t, []string{"SUBDIR", "FILE.TXT"}, names)
}

func TestVolume_FAT12_ReadsFileAndNestedFileByPath(t *testing.T) {
	image := buildFAT12VolumeImage(t, "hello from fat12\n", "nested fat12\n")
	vol, err := OpenFAT12(NewInMemoryByteSource(image))
	require.NoError(t, err)

	f, err := vol.Open("/FILE.TXT")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "hello from fat12\n", string(data))

	nf, err := vol.Open("SUBDIR/NESTED.TXT")
	require.NoError(t, err)
	defer nf.Close()
	nested, err := io.ReadAll(nf)
	require.NoError(t, err)
	assert.Equal(t, "nested fat12\n", string(nested))
}

func TestVolume_FAT32_RootIsClusterChainedAndListsEntries(t *testing.T) {
	vol := openTestVolumeFAT32(t, "hello from fat32\n", "nested fat32\n")

	assert.False(t, variantDescriptors[vol.Variant()].hasFixedRoot)

	dir, err := vol.RootDirectory()
	require.NoError(t, err)

	entries, err := dir.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := []string{entries[0].Name(), entries[1].Name()}
	assert.ElementsMatch(t, []string{"SUBDIR", "FILE.TXT"}, names)
}

func TestVolume_FAT32_ReadsFileAndNestedFileByPath(t *testing.T) {
	vol := openTestVolumeFAT32(t, "hello from fat32\n", "nested fat32\n")

	f, err := vol.Open("/FILE.TXT")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "hello from fat32\n", string(data))

	nf, err := vol.Open("SUBDIR/NESTED.TXT")
	require.NoError(t, err)
	defer nf.Close()
	nested, err := io.ReadAll(nf)
	require.NoError(t, err)
	assert.Equal(t, "nested fat32\n", string(nested))
}

func openTestVolumeFAT32(t *testing.T, fileContent, nestedContent string) *Volume {
	t.Helper()
	image := buildFAT32VolumeImage(t, fileContent, nestedContent)
	vol, err := OpenFAT32(NewInMemoryByteSource(image))
	require.NoError(t, err)
	return vol
}
