package format

import "fmt"

// Header is the decoded storage header.
type Header struct {
	Version       uint8
	ClusterSize   uint32
	TotalClusters uint32
	ListingCount  uint32
}

// NewHeader returns the header of an empty medium.
func NewHeader(clusterSize uint32) Header {
	return Header{Version: Version, ClusterSize: clusterSize}
}

// ParseHeader decodes the header at the start of b. It performs no semantic
// validation; see Header.Validate.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header: %w (have %d bytes, need %d)", ErrTruncated, len(b), HeaderSize)
	}
	return Header{
		Version:       b[HeaderVersionOffset],
		ClusterSize:   ReadU32(b, HeaderClusterSizeOffset),
		TotalClusters: ReadU32(b, HeaderTotalClustersOffset),
		ListingCount:  ReadU32(b, HeaderListingCountOffset),
	}, nil
}

// Put encodes h into the first HeaderSize bytes of b.
func (h Header) Put(b []byte) {
	b[HeaderVersionOffset] = h.Version
	PutU32(b, HeaderClusterSizeOffset, h.ClusterSize)
	PutU32(b, HeaderTotalClustersOffset, h.TotalClusters)
	PutU32(b, HeaderListingCountOffset, h.ListingCount)
}

// HeaderProblem describes why a header cannot describe a medium of a given size.
type HeaderProblem struct {
	Field  string
	Offset int
	Reason string
}

func (p *HeaderProblem) Error() string {
	return fmt.Sprintf("%s: %s", p.Field, p.Reason)
}

// Validate checks h against the physical medium length. A header of a
// non-empty medium must describe exactly the bytes present.
//
// The listing count is only checked indirectly: a wrong count moves the
// cluster region boundary, which is detected when the region no longer
// divides into whole envelopes. Shifts that happen to stay aligned go
// unnoticed here and surface later as chain corruption.
func (h Header) Validate(mediumSize int64) *HeaderProblem {
	if h.Version != Version {
		return &HeaderProblem{"version", HeaderVersionOffset, fmt.Sprintf("unrecognized version %d", h.Version)}
	}
	if h.ClusterSize == 0 {
		return &HeaderProblem{"clusterSize", HeaderClusterSizeOffset, "cluster size is zero"}
	}
	if h.ClusterSize > MaxClusterSize {
		return &HeaderProblem{"clusterSize", HeaderClusterSizeOffset,
			fmt.Sprintf("cluster size %d exceeds maximum %d", h.ClusterSize, MaxClusterSize)}
	}
	regionStart := int64(ClusterRegionOffset(h.ListingCount))
	if regionStart > mediumSize {
		return &HeaderProblem{"listingCount", HeaderListingCountOffset,
			fmt.Sprintf("directory of %d listings does not fit in %d bytes", h.ListingCount, mediumSize)}
	}
	region := mediumSize - regionStart
	stride := int64(ClusterStride(h.ClusterSize))
	if region%stride != 0 {
		return &HeaderProblem{"clusterSize", HeaderClusterSizeOffset,
			fmt.Sprintf("cluster region of %d bytes is not a multiple of envelope size %d", region, stride)}
	}
	present := region / stride
	switch {
	case h.TotalClusters == 0 && present > 0:
		return &HeaderProblem{"totalClusters", HeaderTotalClustersOffset,
			fmt.Sprintf("total clusters is zero but %d envelopes are present", present)}
	case int64(h.TotalClusters) > present:
		return &HeaderProblem{"totalClusters", HeaderTotalClustersOffset,
			fmt.Sprintf("total clusters %d exceeds the %d envelopes present", h.TotalClusters, present)}
	case int64(h.TotalClusters) < present:
		return &HeaderProblem{"totalClusters", HeaderTotalClustersOffset,
			fmt.Sprintf("total clusters %d is less than the %d envelopes present", h.TotalClusters, present)}
	}
	return nil
}
