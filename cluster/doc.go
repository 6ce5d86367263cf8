// Package cluster implements clustered stream storage: many independent,
// variable-length byte streams multiplexed inside one medium.
//
// # Layout
//
// A medium holds a header, a directory of listings and a cluster region:
//
//	[header 13B][listing 0]...[listing N-1][cluster 0]...[cluster T-1]
//
// Every cluster is a 9-byte envelope (traits, prev, next) followed by a
// fixed payload window. A listing names the first and last cluster of its
// stream's chain plus the stream's logical length in bytes.
//
// # Allocation
//
// Growing a stream takes the lowest free clusters first and only then
// extends the cluster region. Freed clusters are reclaimed according to
// Options.Compaction: CompactOnFree moves the highest used clusters into the
// holes and truncates the medium; TrimTail keeps holes for later reuse.
//
// # Corruption
//
// Load validates the header against the medium length. Chains are validated
// lazily, when a stream is first read or written. Every detected violation
// is returned as a types.ErrCorrupt and logged at warn level; nothing is
// repaired.
//
// # Usage
//
//	s, err := cluster.New(medium.NewMemory(nil), cluster.Options{ClusterSize: 64})
//	if err != nil {
//	    return err
//	}
//	w, _ := s.Add()
//	w.Write([]byte("hello"))
//	w.Close()
//	data, _ := s.ReadAll(0)
package cluster
