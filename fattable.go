package gofat

import (
	"fmt"

	"github.com/gofatfs/gofat/checkpoint"
)

// FATTable is a view over one copy of the allocation table. It is indexed
// by cluster number >= 2; entry width and encoding vary by variant
// (spec.md §4.2).
type FATTable struct {
	src           ByteSource
	variant       Variant
	baseOffset    uint32
	size          uint32
	totalClusters uint32
}

func newFATTable(src ByteSource, variant Variant, baseOffset, size, totalClusters uint32) *FATTable {
	return &FATTable{
		src:           src,
		variant:       variant,
		baseOffset:    baseOffset,
		size:          size,
		totalClusters: totalClusters,
	}
}

// Get decodes the FAT entry at idx. The decoding differs per variant:
//
//   - FAT12: packed 12-bit entries, two per three bytes. Even indices take
//     the low 12 bits of the little-endian u16 at floor(idx*1.5); odd
//     indices take the high 12 bits.
//   - FAT16: a plain u16_le at idx*2.
//   - FAT32: a u32_le at idx*4, masked to 28 bits (the top 4 are reserved).
func (t *FATTable) Get(idx uint32) (uint32, error) {
	switch t.variant {
	case FAT12:
		byteOffset := (idx * 3) / 2
		if byteOffset+2 > t.size {
			return 0, checkpoint.From(fmt.Errorf("%w: fat12 idx %d", ErrFATIndexOutOfBounds, idx))
		}

		buf := make([]byte, 2)
		if _, err := t.src.ReadAt(buf, int64(t.baseOffset), int64(byteOffset)); err != nil {
			return 0, checkpoint.Wrap(err, ErrFATIndexOutOfBounds)
		}
		packed := uint32(buf[0]) | uint32(buf[1])<<8

		if idx%2 == 0 {
			return packed & 0x0FFF, nil
		}
		return (packed >> 4) & 0x0FFF, nil

	case FAT16:
		byteOffset := idx * 2
		if byteOffset+2 > t.size {
			return 0, checkpoint.From(fmt.Errorf("%w: fat16 idx %d", ErrFATIndexOutOfBounds, idx))
		}

		buf := make([]byte, 2)
		if _, err := t.src.ReadAt(buf, int64(t.baseOffset), int64(byteOffset)); err != nil {
			return 0, checkpoint.Wrap(err, ErrFATIndexOutOfBounds)
		}
		return uint32(buf[0]) | uint32(buf[1])<<8, nil

	case FAT32:
		byteOffset := idx * 4
		if byteOffset+4 > t.size {
			return 0, checkpoint.From(fmt.Errorf("%w: fat32 idx %d", ErrFATIndexOutOfBounds, idx))
		}

		buf := make([]byte, 4)
		if _, err := t.src.ReadAt(buf, int64(t.baseOffset), int64(byteOffset)); err != nil {
			return 0, checkpoint.Wrap(err, ErrFATIndexOutOfBounds)
		}
		v := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return v & 0x0FFFFFFF, nil

	default:
		return 0, checkpoint.From(fmt.Errorf("%w: unknown variant", ErrFATIndexOutOfBounds))
	}
}

func (t *FATTable) inRange(v uint32) bool {
	d := variantDescriptors[t.variant]
	return v >= d.min && v <= d.max
}

// ClusterIter is a pull-based iterator over a cluster chain, starting at
// some cluster and following FATTable.Get until the value falls outside
// the variant's valid data range. It enforces the ChainTooLong safety cap
// (spec.md §4.2) so a cycle in a corrupted volume cannot loop forever.
type ClusterIter struct {
	table   *FATTable
	current uint32
	started bool
	done    bool
	count   uint32
	err     error
}

// Iter starts a lazy chain iteration at start. The first Next() call yields
// start itself; subsequent calls yield table.Get(previous), stopping
// before the first out-of-range value.
func (t *FATTable) Iter(start uint32) *ClusterIter {
	return &ClusterIter{table: t, current: start}
}

// Next advances the iterator and reports whether a cluster is available.
// Call Cluster() to read it, or Err() once Next returns false to
// distinguish clean end-of-chain from an error.
func (it *ClusterIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	if !it.started {
		it.started = true
		if !it.table.inRange(it.current) {
			it.done = true
			return false
		}
		it.count = 1
		return true
	}

	next, err := it.table.Get(it.current)
	if err != nil {
		it.err = err
		return false
	}

	if !it.table.inRange(next) {
		it.done = true
		return false
	}

	if it.table.totalClusters > 0 && it.count >= it.table.totalClusters {
		it.err = checkpoint.From(ErrChainTooLong)
		return false
	}

	it.current = next
	it.count++
	return true
}

// Cluster returns the cluster number of the most recent successful Next().
func (it *ClusterIter) Cluster() uint32 {
	return it.current
}

// Err returns the error that stopped iteration, if any. A clean
// end-of-chain (or an iterator that was never advanced) reports nil.
func (it *ClusterIter) Err() error {
	return it.err
}
