// Package format houses the byte-exact layout of a clustered storage medium.
// The goal is to keep encoding and decoding focused and allocation-free so
// higher-level packages can orchestrate the structures without caring about
// offsets.
//
// Medium layout (all integers little-endian):
//
//	[header: 13 bytes][directory: listingCount * 16 bytes][clusters: totalClusters * (clusterSize + 9) bytes]
package format

const (
	// Version is the only header version this package understands.
	Version = 1

	// HeaderSize is the size of the storage header in bytes.
	// Layout:
	//   0x00  version        u8
	//   0x01  clusterSize    u32
	//   0x05  totalClusters  u32
	//   0x09  listingCount   u32
	HeaderSize = 13

	HeaderVersionOffset       = 0x00
	HeaderClusterSizeOffset   = 0x01
	HeaderTotalClustersOffset = 0x05
	HeaderListingCountOffset  = 0x09

	// ListingSize is the size of one directory entry.
	// Layout:
	//   0x00  startCluster  i32 (-1 when empty)
	//   0x04  endCluster    i32 (-1 when empty)
	//   0x08  logicalSize   u64
	ListingSize = 16

	ListingStartOffset = 0x00
	ListingEndOffset   = 0x04
	ListingSizeOffset  = 0x08

	// EnvelopeSize is the per-cluster metadata preceding the payload.
	// Layout:
	//   0x00  traits  u8
	//   0x01  prev    i32 (-1 = none)
	//   0x05  next    i32 (-1 = none)
	EnvelopeSize = 9

	EnvelopeTraitsOffset = 0x00
	EnvelopePrevOffset   = 0x01
	EnvelopeNextOffset   = 0x05

	// MaxClusterSize is the largest payload a single cluster may carry (16 MiB).
	MaxClusterSize = 1 << 24

	// MaxClusters is the largest cluster count addressable by an i32 link.
	MaxClusters = 1<<31 - 1

	// NilCluster marks an absent link or an empty stream.
	NilCluster int32 = -1

	// DefaultClusterSize is used when a caller does not choose one.
	DefaultClusterSize = 256
)

// ClusterStride returns the physical size of one cluster (envelope + payload).
func ClusterStride(clusterSize uint32) int {
	return int(clusterSize) + EnvelopeSize
}

// ListingOffset returns the absolute offset of directory entry i.
func ListingOffset(i int) int {
	return HeaderSize + i*ListingSize
}

// ClusterRegionOffset returns the absolute offset of cluster 0 for a medium
// whose directory holds listingCount entries.
func ClusterRegionOffset(listingCount uint32) int {
	return HeaderSize + int(listingCount)*ListingSize
}

// ClusterOffset returns the absolute offset of cluster i's envelope.
func ClusterOffset(h Header, i int32) int {
	return ClusterRegionOffset(h.ListingCount) + int(i)*ClusterStride(h.ClusterSize)
}

// MediumSize returns the exact byte length a medium described by h occupies.
func MediumSize(h Header) int64 {
	return int64(ClusterRegionOffset(h.ListingCount)) + int64(h.TotalClusters)*int64(ClusterStride(h.ClusterSize))
}
