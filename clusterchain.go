package gofat

import (
	"github.com/gofatfs/gofat/checkpoint"
)

// ClusterChainReader exposes the (possibly non-contiguous) chain of
// clusters starting at startCluster as a single virtual byte stream
// (spec.md §4.3).
type ClusterChainReader struct {
	src          ByteSource
	table        *FATTable
	startCluster uint32
	clusterSize  uint32
	dataOffset   uint32
}

func newClusterChainReader(src ByteSource, table *FATTable, startCluster, clusterSize, dataOffset uint32) *ClusterChainReader {
	return &ClusterChainReader{
		src:          src,
		table:        table,
		startCluster: startCluster,
		clusterSize:  clusterSize,
		dataOffset:   dataOffset,
	}
}

// Size returns clusterSize * chain length.
func (r *ClusterChainReader) Size() (uint64, error) {
	var n uint64
	it := r.table.Iter(r.startCluster)
	for it.Next() {
		n += uint64(r.clusterSize)
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

// Read reads up to size bytes starting at absolute offset relPtr+basePtr in
// the virtual stream. size == 0 means "read to end of chain". basePtr is an
// additive virtual-offset bias used when layering a sub-region view (a
// directory occupying a chain) on top of this reader.
//
// Per spec.md §4.3, the `off mod clusterSize` bias is applied identically
// to every cluster touched by the read - this is only correct when
// off mod clusterSize == 0, or when the whole requested range lies inside
// one cluster. Callers in this module do pass unaligned offsets
// (Directory.Entries reads each 32-byte record at relPtr == i*32, and
// Entry.Read passes the caller's file offset); their results are exact
// as long as the range stays inside one cluster, which always holds for
// directory records. The bias is preserved rather than generalized, per
// the design note in spec.md §9.
func (r *ClusterChainReader) Read(size int, relPtr, basePtr int64) ([]byte, error) {
	off := relPtr + basePtr
	clusterSize := int64(r.clusterSize)
	bias := off % clusterSize

	result := make([]byte, 0, size)
	startIdx := off / clusterSize

	it := r.table.Iter(r.startCluster)
	i := int64(0)
	for it.Next() {
		cluster := it.Cluster()

		if i < startIdx {
			i++
			continue
		}
		if size != 0 && i*clusterSize >= off+int64(size) {
			break
		}

		remaining := clusterSize
		if size != 0 {
			if left := int64(size) - int64(len(result)); left < remaining {
				remaining = left
			}
		}

		physical := (int64(cluster) - 2) * clusterSize

		buf := make([]byte, remaining)
		if _, err := r.src.ReadAt(buf, int64(r.dataOffset), physical+bias); err != nil {
			return result, checkpoint.Wrap(err, ErrTruncated)
		}

		result = append(result, buf...)
		i++
	}

	if err := it.Err(); err != nil {
		return result, err
	}

	return result, nil
}
