// Package types defines the shared vocabulary of clusterkit: the typed error
// taxonomy every package returns, and the range-oriented list interface
// implemented by paged and transactional lists.
//
// Errors carry a stable ErrKind so callers can branch on intent:
//
//	if errors.Is(err, types.ErrCorrupt) {
//	    // the medium is unusable for the affected region
//	}
//
// This package has no dependencies beyond the standard library.
package types
