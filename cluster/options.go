package cluster

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/internal/logger"
	"github.com/joshuapare/clusterkit/pkg/types"
)

// CachePolicy selects whether directory entries or stream contents are kept
// in memory between accesses. Policies change performance only, never results.
type CachePolicy int

const (
	// CacheNone re-derives everything from the medium on every access.
	CacheNone CachePolicy = iota
	// CacheRemember materializes once and keeps the value until a mutating
	// operation invalidates it.
	CacheRemember
)

func (p CachePolicy) String() string {
	switch p {
	case CacheNone:
		return "none"
	case CacheRemember:
		return "remember"
	default:
		return fmt.Sprintf("CachePolicy(%d)", int(p))
	}
}

// ParseCachePolicy maps "none" and "remember" to a CachePolicy.
func ParseCachePolicy(s string) (CachePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CacheNone, nil
	case "remember":
		return CacheRemember, nil
	default:
		return CacheNone, fmt.Errorf("cluster: unknown cache policy %q", s)
	}
}

// Compaction selects what happens to clusters returned to the free pool.
type Compaction int

const (
	// CompactOnFree relocates the highest used clusters into freed slots and
	// shrinks the medium, so the cluster region never keeps holes.
	CompactOnFree Compaction = iota
	// TrimTail keeps interior free clusters for reuse and only shrinks the
	// medium when the highest clusters are free.
	TrimTail
)

func (c Compaction) String() string {
	switch c {
	case CompactOnFree:
		return "compact"
	case TrimTail:
		return "trim"
	default:
		return fmt.Sprintf("Compaction(%d)", int(c))
	}
}

// ParseCompaction maps "compact" and "trim" to a Compaction.
func ParseCompaction(s string) (Compaction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compact":
		return CompactOnFree, nil
	case "trim":
		return TrimTail, nil
	default:
		return CompactOnFree, fmt.Errorf("cluster: unknown compaction %q", s)
	}
}

// Options configures a Storage. The zero value is usable.
type Options struct {
	// ClusterSize is the payload size of a cluster for a newly initialized
	// medium. Ignored when loading an existing one. Default 256.
	ClusterSize uint32

	ListingCache CachePolicy
	ContentCache CachePolicy
	Compaction   Compaction

	// MaxClusters bounds the cluster count of a fixed-capacity medium.
	// Zero means bounded only by the format.
	MaxClusters uint32

	// Logger receives debug records for structural changes and warnings for
	// detected corruption. Nil uses the process-wide logger.
	Logger *slog.Logger
}

func (o Options) normalize() (Options, error) {
	if o.ClusterSize == 0 {
		o.ClusterSize = format.DefaultClusterSize
	}
	if o.ClusterSize > format.MaxClusterSize {
		return o, types.Preconditionf("cluster size %d exceeds maximum %d", o.ClusterSize, format.MaxClusterSize)
	}
	if o.MaxClusters == 0 || o.MaxClusters > format.MaxClusters {
		o.MaxClusters = format.MaxClusters
	}
	o.Logger = logger.Or(o.Logger)
	return o, nil
}
